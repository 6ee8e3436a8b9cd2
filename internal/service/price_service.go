package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/ledger"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/repository"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/yahoo"
)

// refreshConcurrency bounds the tickers fetched at once. The Yahoo client's
// own limiter still paces the actual requests.
const refreshConcurrency = 4

// PriceService handles price storage and retrieval from the external provider.
type PriceService struct {
	priceRepo       *repository.PriceRepository
	transactionRepo *repository.TransactionRepository
	yahooClient     yahoo.Client
	logger          *log.Logger
	now             func() time.Time
}

// NewPriceService creates a new PriceService. yahooClient may be nil, in
// which case only stored prices are served and refreshes fail.
func NewPriceService(
	priceRepo *repository.PriceRepository,
	transactionRepo *repository.TransactionRepository,
	yahooClient yahoo.Client,
	logger *log.Logger,
) *PriceService {
	return &PriceService{
		priceRepo:       priceRepo,
		transactionRepo: transactionRepo,
		yahooClient:     yahooClient,
		logger:          logger,
		now:             time.Now,
	}
}

// LoadPrices reads the full stored history of tickers up to endDate, in one
// query, into a lookup table for valuation. Tickers with no stored prices
// are simply absent; the valuator reports them.
func (s *PriceService) LoadPrices(ctx context.Context, tickers []string, endDate time.Time) (*ledger.PriceTable, error) {
	series, err := s.priceRepo.GetPrices(ctx, tickers, time.Time{}, endDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrievePrices, err)
	}
	return ledger.NewPriceTable(series), nil
}

// GetPrices returns the stored prices of ticker between startDate and endDate.
func (s *PriceService) GetPrices(ctx context.Context, ticker string, startDate, endDate time.Time) ([]model.PricePoint, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, apperrors.ErrInvalidTicker
	}
	series, err := s.priceRepo.GetPrices(ctx, []string{ticker}, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if prices, ok := series[ticker]; ok {
		return prices, nil
	}
	return []model.PricePoint{}, nil
}

// LatestPrice returns the newest stored price of ticker on or before asOf.
// Returns apperrors.ErrPriceNotFound when there is none.
func (s *PriceService) LatestPrice(ctx context.Context, ticker string, asOf time.Time) (model.PricePoint, error) {
	return s.priceRepo.GetLatestPrice(ctx, ticker, asOf)
}

// StorePrices validates and upserts manually supplied prices.
func (s *PriceService) StorePrices(ctx context.Context, prices []model.PricePoint) (int, error) {
	verr := &apperrors.ValidationError{}
	for i := range prices {
		p := &prices[i]
		p.Ticker = strings.ToUpper(strings.TrimSpace(p.Ticker))
		p.Date = model.Day(p.Date)
		field := fmt.Sprintf("prices[%d]", i)
		if p.Ticker == "" {
			verr.Add(field+".ticker", "is required")
		}
		if p.Date.IsZero() {
			verr.Add(field+".date", "is required")
		}
		if !(p.Price > 0) {
			verr.Add(field+".price", "must be positive")
		}
	}
	if err := verr.OrNil(); err != nil {
		return 0, err
	}
	return s.priceRepo.UpsertPrices(ctx, prices)
}

// RefreshPrices fetches the missing daily closes of tickers from the price
// provider, from the day after the newest stored price (or the first trade
// of the ticker) through today. An empty tickers list refreshes every ticker
// any portfolio has traded.
//
// A failing ticker is recorded in the result and logged; it does not abort
// the batch. Only cancellation of ctx does.
func (s *PriceService) RefreshPrices(ctx context.Context, tickers []string) (model.PriceRefreshResult, error) {
	if s.yahooClient == nil {
		return model.PriceRefreshResult{}, fmt.Errorf("%w: no price provider configured", apperrors.ErrFailedToRefreshPrices)
	}

	firstDates, err := s.transactionRepo.GetTickerFirstDates(ctx)
	if err != nil {
		return model.PriceRefreshResult{}, err
	}

	if len(tickers) == 0 {
		for ticker := range firstDates {
			tickers = append(tickers, ticker)
		}
	}
	tickers = normalizeTickers(tickers)

	result := model.PriceRefreshResult{
		Updated: []model.UpdatedTicker{},
		Errors:  []model.PriceRefreshError{},
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for _, ticker := range tickers {
		g.Go(func() error {
			added, err := s.refreshTicker(gctx, ticker, firstDates[ticker])
			if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn().Str("ticker", ticker).Err(err).Msg("price refresh failed")
				result.Errors = append(result.Errors, model.PriceRefreshError{Ticker: ticker, Error: err.Error()})
				return nil
			}
			result.Updated = append(result.Updated, model.UpdatedTicker{Ticker: ticker, PricesAdded: added})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.PriceRefreshResult{}, err
	}

	sort.Slice(result.Updated, func(i, j int) bool { return result.Updated[i].Ticker < result.Updated[j].Ticker })
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Ticker < result.Errors[j].Ticker })
	result.TotalUpdated = len(result.Updated)
	result.TotalErrors = len(result.Errors)
	result.Success = result.TotalUpdated > 0 || result.TotalErrors == 0

	s.logger.Info().
		Int("tickers", len(tickers)).
		Int("updated", result.TotalUpdated).
		Int("errors", result.TotalErrors).
		Msg("price refresh finished")
	return result, nil
}

func (s *PriceService) refreshTicker(ctx context.Context, ticker string, firstTrade time.Time) (int, error) {
	today := model.Day(s.now())

	start := firstTrade
	latest, err := s.priceRepo.GetLatestPriceDate(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if !latest.IsZero() {
		start = latest.AddDate(0, 0, 1)
	}
	if start.IsZero() {
		start = today.AddDate(0, 0, -7)
	}
	if start.After(today) {
		return 0, nil
	}

	raw, err := s.yahooClient.QueryYahooSymbolByDateRange(ctx, ticker, start, today)
	if err != nil {
		return 0, err
	}
	chart, err := s.yahooClient.ParseChart(raw)
	if err != nil {
		return 0, err
	}

	points := chart.PricePoints(ticker)
	if len(points) == 0 {
		return 0, nil
	}
	return s.priceRepo.UpsertPrices(ctx, points)
}

func normalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
