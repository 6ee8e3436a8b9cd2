package ledger

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// TaxOptions configures the tax estimator.
type TaxOptions struct {
	Rates       model.TaxRates
	AccountType model.AccountType
	// IncludeReinvestedDividends counts the cash equivalent of dividend_reinvest
	// entries (shares × price) as dividend income.
	IncludeReinvestedDividends bool
}

// DefaultTaxOptions returns options for a taxable account with reinvested
// dividends counted as income.
func DefaultTaxOptions(rates model.TaxRates) TaxOptions {
	return TaxOptions{
		Rates:                      rates,
		AccountType:                model.AccountTaxable,
		IncludeReinvestedDividends: true,
	}
}

// EstimateTax summarizes realized gains and dividend income for the calendar
// year and applies the rate schedule. Lots are rebuilt from every transaction
// up to the end of the year, so an oversold ticker is an error here. IRA
// accounts return Taxable=false without computing anything.
func EstimateTax(txs []model.Transaction, year int, opts TaxOptions) (model.TaxSummary, error) {
	summary := model.TaxSummary{
		Year:          year,
		Taxable:       opts.AccountType.Taxable(),
		Rates:         opts.Rates,
		GainsByTicker: []model.TickerGains{},
	}
	if !summary.Taxable {
		return summary, nil
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	book, err := TrackLots(txs, end)
	if err != nil {
		return model.TaxSummary{}, err
	}

	byTicker := make(map[string]*tickerAcc)
	var short, long decimal.Decimal
	for _, e := range book.Events() {
		if e.SaleDate.Before(start) || e.SaleDate.After(end) {
			continue
		}
		acc, ok := byTicker[e.Ticker]
		if !ok {
			acc = &tickerAcc{}
			byTicker[e.Ticker] = acc
		}
		acc.add(e)

		gain := decimal.NewFromFloat(e.Gain)
		if e.HoldingPeriod == model.LongTerm {
			long = long.Add(gain)
		} else {
			short = short.Add(gain)
		}
	}

	tickers := make([]string, 0, len(byTicker))
	for ticker := range byTicker {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	for _, ticker := range tickers {
		summary.GainsByTicker = append(summary.GainsByTicker, byTicker[ticker].summarize(ticker))
	}

	dividends := decimal.Zero
	for _, tx := range txs {
		if tx.Date.Before(start) || tx.Date.After(end) {
			continue
		}
		switch {
		case tx.Type == model.TransactionDividend:
			dividends = dividends.Add(decimal.NewFromFloat(tx.Amount))
		case tx.Type == model.TransactionDividendReinvest && opts.IncludeReinvestedDividends:
			dividends = dividends.Add(reinvestedValue(tx))
		}
	}

	summary.ShortTermGains = short.InexactFloat64()
	summary.LongTermGains = long.InexactFloat64()
	summary.RealizedGainsYTD = short.Add(long).InexactFloat64()
	summary.DividendIncomeYTD = dividends.InexactFloat64()
	summary.EstimatedTaxDue = taxDue(short, long, dividends, opts.Rates).InexactFloat64()
	return summary, nil
}

// reinvestedValue is the cash equivalent of a reinvested dividend.
func reinvestedValue(tx model.Transaction) decimal.Decimal {
	if tx.Price != nil {
		return decimal.NewFromFloat(tx.Quantity).Mul(decimal.NewFromFloat(*tx.Price))
	}
	return decimal.NewFromFloat(tx.Amount).Abs()
}

func taxDue(short, long, dividends decimal.Decimal, rates model.TaxRates) decimal.Decimal {
	return short.Mul(decimal.NewFromFloat(rates.ShortTermCapitalGains)).
		Add(long.Mul(decimal.NewFromFloat(rates.LongTermCapitalGains))).
		Add(dividends.Mul(decimal.NewFromFloat(rates.QualifiedDividends)))
}

type tickerAcc struct {
	short, long     decimal.Decimal
	proceeds, cost  decimal.Decimal
	hasShort, hasLT bool
	events          []model.RealizedGainEvent
}

func (a *tickerAcc) add(e model.RealizedGainEvent) {
	gain := decimal.NewFromFloat(e.Gain)
	if e.HoldingPeriod == model.LongTerm {
		a.long = a.long.Add(gain)
		a.hasLT = true
	} else {
		a.short = a.short.Add(gain)
		a.hasShort = true
	}
	a.proceeds = a.proceeds.Add(decimal.NewFromFloat(e.Proceeds))
	a.cost = a.cost.Add(decimal.NewFromFloat(e.CostBasis))
	a.events = append(a.events, e)
}

func (a *tickerAcc) summarize(ticker string) model.TickerGains {
	return model.TickerGains{
		Ticker:        ticker,
		ShortTermGain: a.short.InexactFloat64(),
		LongTermGain:  a.long.InexactFloat64(),
		RealizedGain:  a.short.Add(a.long).InexactFloat64(),
		Proceeds:      a.proceeds.InexactFloat64(),
		CostBasis:     a.cost.InexactFloat64(),
		TermType:      a.termType(),
		Events:        a.events,
	}
}

// termType is mixed when both sums are nonzero. When only one is nonzero it
// names that one; when neither is, it follows which kinds of events occurred.
func (a *tickerAcc) termType() model.TermType {
	shortNZ, longNZ := !a.short.IsZero(), !a.long.IsZero()
	switch {
	case shortNZ && longNZ:
		return model.TermMixed
	case shortNZ:
		return model.TermShort
	case longNZ:
		return model.TermLong
	case a.hasShort && a.hasLT:
		return model.TermMixed
	case a.hasLT:
		return model.TermLong
	default:
		return model.TermShort
	}
}

// SaleRequest describes a hypothetical sale.
type SaleRequest struct {
	Ticker string
	Shares float64
	Price  float64
	Date   time.Time
}

// EstimateSaleImpact previews the realized gain and tax of a sale without
// committing it. position is the current aggregate of the ticker; selling
// more than it holds is an *apperrors.InsufficientLotsError whatever the lots
// say. When the open lots cannot cover the shares, the estimate falls back to
// the aggregate's average cost and a single blended holding period and is
// flagged Approximate.
func EstimateSaleImpact(lots *LotBook, position model.Position, req SaleRequest, opts TaxOptions) (model.TaxImpact, error) {
	impact := model.TaxImpact{
		Ticker:   req.Ticker,
		Shares:   req.Shares,
		Price:    req.Price,
		SaleDate: model.Day(req.Date),
		Taxable:  opts.AccountType.Taxable(),
	}
	if !impact.Taxable {
		return impact, nil
	}

	if position.Closed || req.Shares-position.Quantity > QuantityEpsilon {
		available := position.Quantity
		if position.Closed {
			available = 0
		}
		return model.TaxImpact{}, &apperrors.InsufficientLotsError{
			Ticker: req.Ticker, Date: impact.SaleDate, Requested: req.Shares, Available: available,
		}
	}

	var short, long, proceeds, cost decimal.Decimal
	events, err := lots.Preview(req.Ticker, req.Shares, req.Price, req.Date)
	switch {
	case err == nil:
		for _, e := range events {
			gain := decimal.NewFromFloat(e.Gain)
			if e.HoldingPeriod == model.LongTerm {
				long = long.Add(gain)
			} else {
				short = short.Add(gain)
			}
			proceeds = proceeds.Add(decimal.NewFromFloat(e.Proceeds))
			cost = cost.Add(decimal.NewFromFloat(e.CostBasis))
		}
		impact.Lots = events

	case errors.Is(err, apperrors.ErrInsufficientLots):
		shares := decimal.NewFromFloat(req.Shares)
		proceeds = shares.Mul(decimal.NewFromFloat(req.Price))
		cost = shares.Mul(decimal.NewFromFloat(position.AverageCost))
		gain := proceeds.Sub(cost)
		if model.ClassifyHoldingPeriod(blendedAcquisition(lots, position), req.Date) == model.LongTerm {
			long = gain
		} else {
			short = gain
		}
		impact.Approximate = true

	default:
		return model.TaxImpact{}, err
	}

	impact.Proceeds = proceeds.InexactFloat64()
	impact.CostBasis = cost.InexactFloat64()
	impact.ShortTermGain = short.InexactFloat64()
	impact.LongTermGain = long.InexactFloat64()
	impact.RealizedGain = short.Add(long).InexactFloat64()
	impact.EstimatedTax = taxDue(short, long, decimal.Zero, opts.Rates).InexactFloat64()
	return impact, nil
}

// blendedAcquisition is the quantity-weighted mean acquisition date of the
// open lots of pos, or its first acquisition date when no lot is open.
func blendedAcquisition(book *LotBook, pos model.Position) time.Time {
	open := book.Open(pos.Ticker)
	if len(open) == 0 {
		return pos.FirstAcquired
	}
	var weighted, total float64
	for _, l := range open {
		weighted += l.RemainingQuantity * float64(l.AcquiredOn.Unix())
		total += l.RemainingQuantity
	}
	return model.Day(time.Unix(int64(weighted/total), 0))
}
