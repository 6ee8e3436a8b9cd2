package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/ledger"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/repository"
)

// DefaultPeriod is used when a performance request names no period.
const DefaultPeriod = "1y"

// PerformanceService builds growth indices for portfolios and benchmarks.
type PerformanceService struct {
	portfolioRepo   *repository.PortfolioRepository
	transactionRepo *repository.TransactionRepository
	snapshotService *SnapshotService
	priceService    *PriceService
	logger          *log.Logger
	now             func() time.Time
}

// NewPerformanceService creates a new PerformanceService with the provided dependencies.
func NewPerformanceService(
	portfolioRepo *repository.PortfolioRepository,
	transactionRepo *repository.TransactionRepository,
	snapshotService *SnapshotService,
	priceService *PriceService,
	logger *log.Logger,
) *PerformanceService {
	return &PerformanceService{
		portfolioRepo:   portfolioRepo,
		transactionRepo: transactionRepo,
		snapshotService: snapshotService,
		priceService:    priceService,
		logger:          logger,
		now:             time.Now,
	}
}

// PeriodStart returns the first day of period ending on end.
// Returns a *apperrors.ValidationError for an unknown period.
func PeriodStart(period string, end time.Time, firstTrade time.Time) (time.Time, error) {
	end = model.Day(end)
	switch period {
	case "1m":
		return end.AddDate(0, -1, 0), nil
	case "3m":
		return end.AddDate(0, -3, 0), nil
	case "6m":
		return end.AddDate(0, -6, 0), nil
	case "ytd":
		return time.Date(end.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), nil
	case "1y":
		return end.AddDate(-1, 0, 0), nil
	case "3y":
		return end.AddDate(-3, 0, 0), nil
	case "5y":
		return end.AddDate(-5, 0, 0), nil
	case "max":
		return model.Day(firstTrade), nil
	}
	return time.Time{}, apperrors.NewValidationError("period", "must be one of 1m, 3m, 6m, ytd, 1y, 3y, 5y, max")
}

// GetPerformanceSeries returns the daily growth index of a portfolio over
// period, optionally alongside a benchmark ticker normalized to the same base.
//
// The range starts no earlier than the first transaction. Time-weighted mode
// is used when every day before a deposit has a consistent snapshot to
// revalue; otherwise the series falls back to simple returns over cost basis.
// Only cash transactions count as external flows, except for holdings-only
// portfolios where the cash side of each trade does.
func (s *PerformanceService) GetPerformanceSeries(ctx context.Context, portfolioID, period, benchmark string) (model.PerformanceSeries, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = DefaultPeriod
	}
	benchmark = strings.ToUpper(strings.TrimSpace(benchmark))

	if _, err := s.portfolioRepo.GetPortfolioOnID(ctx, portfolioID); err != nil {
		return model.PerformanceSeries{}, err
	}

	txs, err := s.transactionRepo.GetTransactions(ctx, portfolioID)
	if err != nil {
		return model.PerformanceSeries{}, err
	}

	end := model.Day(s.now())
	var firstTrade time.Time
	if len(txs) > 0 {
		firstTrade = txs[0].Date
	}
	start, err := PeriodStart(period, end, firstTrade)
	if err != nil {
		return model.PerformanceSeries{}, err
	}

	series := model.PerformanceSeries{
		PortfolioID: portfolioID,
		Period:      period,
		Benchmark:   benchmark,
		Mode:        model.ReturnTimeWeighted,
		Points:      []model.PerformancePoint{},
	}
	if len(txs) == 0 {
		series.StartDate, series.EndDate = end, end
		series.Notes = append(series.Notes, "portfolio has no transactions")
		return series, nil
	}
	if start.Before(firstTrade) {
		start = firstTrade
	}
	if end.Before(start) {
		end = start
	}
	series.StartDate, series.EndDate = start, end
	series.Days = model.DaysBetween(start, end)

	rng, err := s.snapshotService.GetSnapshots(ctx, portfolioID, txs, start, end)
	if err != nil {
		return model.PerformanceSeries{}, err
	}

	tickers := rangeTickers(rng.Snapshots)
	if benchmark != "" {
		tickers = append(tickers, benchmark)
	}
	prices, err := s.priceService.LoadPrices(ctx, tickers, end)
	if err != nil {
		return model.PerformanceSeries{}, err
	}

	includeCash := hasCashTransactions(txs)
	var flows ledger.CashFlows
	if includeCash {
		flows = ledger.FlowsFromTransactions(txs)
	} else {
		flows = ledger.TradeFlowsFromTransactions(txs)
	}

	n := len(rng.Dates)
	values := make([]float64, n)
	holdings := make([]float64, n)
	costs := make([]float64, n)
	missing := make(map[string]bool)
	for i, d := range rng.Dates {
		snap := rng.Snapshots[i]
		v := ledger.ValueAt(d, snap.OpenPositions(), snap.CashBalance, includeCash, prices)
		values[i] = v.Total
		holdings[i] = v.HoldingsValue
		for _, p := range snap.OpenPositions() {
			costs[i] += p.CostBasis
		}
		for _, w := range v.Warnings {
			var noPrice *apperrors.NoPriceDataError
			if errors.As(w, &noPrice) {
				missing[noPrice.Ticker] = true
			}
		}
	}

	series.Mode = ledger.SelectReturnMode(rng.Dates, flows, rng.Complete)
	var index []float64
	if series.Mode == model.ReturnTimeWeighted {
		res := ledger.TimeWeightedIndex(rng.Dates, values, flows, func(i int) (float64, bool) {
			if !rng.Complete(rng.Dates[i]) {
				return 0, false
			}
			snap := rng.Snapshots[i]
			return ledger.ValueAt(rng.Dates[i+1], snap.OpenPositions(), snap.CashBalance, includeCash, prices).Total, true
		})
		index = res.Index
		if len(res.FallbackDays) > 0 {
			series.Notes = append(series.Notes, fmt.Sprintf("%d deposit day(s) could not be revalued and used the withdrawal formula", len(res.FallbackDays)))
		}
		if res.CarriedForward > 0 {
			series.Notes = append(series.Notes, fmt.Sprintf("index carried forward on %d day(s) without positive value", res.CarriedForward))
		}
	} else {
		index = ledger.SimpleReturnIndex(holdings, costs)
		series.Notes = append(series.Notes, "snapshot history is incomplete; simple returns over cost basis are shown")
	}

	var benchIndex, benchValues []float64
	if benchmark != "" {
		benchValues = make([]float64, n)
		for i, d := range rng.Dates {
			if p, ok := prices.PriceOn(benchmark, d); ok {
				benchValues[i] = p.Price
			}
		}
		benchIndex = ledger.NormalizeBenchmark(benchValues)
		if len(prices.Series(benchmark)) == 0 {
			series.Notes = append(series.Notes, "no stored prices for benchmark "+benchmark)
		}
		series.BenchmarkTotalReturn = ledger.TotalReturn(benchIndex)
		series.BenchmarkAnnualizedReturn = ledger.Annualize(series.BenchmarkTotalReturn, series.Days)
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for t := range missing {
			names = append(names, t)
		}
		sort.Strings(names)
		series.Notes = append(series.Notes, "valued without a price on some days: "+strings.Join(names, ", "))
	}

	series.Points = make([]model.PerformancePoint, n)
	for i, d := range rng.Dates {
		pt := model.PerformancePoint{
			Date:      d,
			Value:     values[i],
			CostBasis: costs[i],
			Flow:      flows.On(d),
			Index:     index[i],
		}
		if benchIndex != nil {
			pt.Benchmark = benchValues[i]
			pt.BenchmarkIndex = benchIndex[i]
		}
		series.Points[i] = pt
	}
	series.TotalReturn = ledger.TotalReturn(index)
	series.AnnualizedReturn = ledger.Annualize(series.TotalReturn, series.Days)

	s.logger.Debug().
		Str("portfolio_id", portfolioID).
		Str("period", period).
		Str("mode", string(series.Mode)).
		Int("days", n).
		Float64("total_return", series.TotalReturn).
		Msg("performance series built")
	return series, nil
}

func rangeTickers(snapshots []model.Snapshot) []string {
	seen := make(map[string]bool)
	var tickers []string
	for _, snap := range snapshots {
		for _, t := range snap.Tickers() {
			if !seen[t] {
				seen[t] = true
				tickers = append(tickers, t)
			}
		}
	}
	return tickers
}
