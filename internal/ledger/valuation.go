package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// PriceLookup resolves daily prices.
type PriceLookup interface {
	// PriceOn returns the latest price of ticker on or before date.
	PriceOn(ticker string, date time.Time) (model.PricePoint, bool)
	// Earliest returns the first known price of ticker.
	Earliest(ticker string) (model.PricePoint, bool)
}

// Price resolutions reported on valuation lines.
const (
	ResolutionExact    = "exact"
	ResolutionForward  = "forward-fill"
	ResolutionEarliest = "earliest"
	ResolutionMissing  = "missing"
)

// PriceTable is an in-memory PriceLookup over series fetched once per ticker.
type PriceTable struct {
	series map[string][]model.PricePoint
}

// NewPriceTable builds a table from per-ticker series. Each series is copied
// and sorted by date; later duplicates of a date win.
func NewPriceTable(series map[string][]model.PricePoint) *PriceTable {
	t := &PriceTable{series: make(map[string][]model.PricePoint, len(series))}
	for ticker, points := range series {
		t.Add(ticker, points)
	}
	return t
}

// Add replaces the series of ticker.
func (t *PriceTable) Add(ticker string, points []model.PricePoint) {
	sorted := make([]model.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Price <= 0 {
			continue
		}
		p.Date = model.Day(p.Date)
		p.Ticker = ticker
		sorted = append(sorted, p)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	deduped := sorted[:0]
	for _, p := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	t.series[ticker] = deduped
}

// Series returns the stored series of ticker.
func (t *PriceTable) Series(ticker string) []model.PricePoint {
	return t.series[ticker]
}

// PriceOn implements PriceLookup. Prices after date are never used.
func (t *PriceTable) PriceOn(ticker string, date time.Time) (model.PricePoint, bool) {
	points := t.series[ticker]
	date = model.Day(date)
	i := sort.Search(len(points), func(i int) bool { return points[i].Date.After(date) })
	if i == 0 {
		return model.PricePoint{}, false
	}
	return points[i-1], true
}

// Earliest implements PriceLookup.
func (t *PriceTable) Earliest(ticker string) (model.PricePoint, bool) {
	points := t.series[ticker]
	if len(points) == 0 {
		return model.PricePoint{}, false
	}
	return points[0], true
}

// Valuation is the value of a set of positions on a date.
type Valuation struct {
	Date          time.Time
	Cash          float64
	HoldingsValue float64
	Total         float64
	Lines         []model.ValuationLine
	// Warnings carries *apperrors.NoPriceDataError for every position valued
	// from the earliest known price or at zero.
	Warnings []error
}

// ValueAt prices positions on date. Missing prices never fail the valuation:
// a position falls back to the latest earlier price, then the earliest known
// price, then contributes nothing. Positions first acquired after date
// contribute nothing. Cash is added only when includeCash is set.
func ValueAt(date time.Time, positions []model.Position, cash float64, includeCash bool, prices PriceLookup) Valuation {
	date = model.Day(date)
	v := Valuation{Date: date}

	holdings := decimal.Zero
	for _, p := range positions {
		if p.Closed || p.Quantity <= QuantityEpsilon {
			continue
		}
		if !p.FirstAcquired.IsZero() && p.FirstAcquired.After(date) {
			continue
		}

		line := model.ValuationLine{
			Ticker:    p.Ticker,
			Quantity:  p.Quantity,
			CostBasis: p.CostBasis,
		}

		point, ok := prices.PriceOn(p.Ticker, date)
		switch {
		case ok && point.Date.Equal(date):
			line.Resolution = ResolutionExact
		case ok:
			line.Resolution = ResolutionForward
		default:
			if point, ok = prices.Earliest(p.Ticker); ok {
				line.Resolution = ResolutionEarliest
				v.Warnings = append(v.Warnings, &apperrors.NoPriceDataError{Ticker: p.Ticker, Date: date, Fallback: "earliest"})
			} else {
				line.Resolution = ResolutionMissing
				v.Warnings = append(v.Warnings, &apperrors.NoPriceDataError{Ticker: p.Ticker, Date: date, Fallback: "zero"})
			}
		}

		if ok {
			value := decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(point.Price))
			line.Price = point.Price
			line.PriceDate = point.Date
			line.Value = value.InexactFloat64()
			holdings = holdings.Add(value)
		}
		v.Lines = append(v.Lines, line)
	}

	v.HoldingsValue = holdings.InexactFloat64()
	if includeCash {
		v.Cash = cash
		holdings = holdings.Add(decimal.NewFromFloat(cash))
	}
	v.Total = holdings.InexactFloat64()
	return v
}
