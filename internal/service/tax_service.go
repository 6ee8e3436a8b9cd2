package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/ledger"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/repository"
)

// TaxService estimates realized-gain and dividend taxes with the configured rate schedule.
type TaxService struct {
	portfolioRepo   *repository.PortfolioRepository
	transactionRepo *repository.TransactionRepository
	priceService    *PriceService
	rates           model.TaxRates
	logger          *log.Logger
	now             func() time.Time
}

// NewTaxService creates a new TaxService applying rates to every portfolio.
func NewTaxService(
	portfolioRepo *repository.PortfolioRepository,
	transactionRepo *repository.TransactionRepository,
	priceService *PriceService,
	rates model.TaxRates,
	logger *log.Logger,
) *TaxService {
	return &TaxService{
		portfolioRepo:   portfolioRepo,
		transactionRepo: transactionRepo,
		priceService:    priceService,
		rates:           rates,
		logger:          logger,
		now:             time.Now,
	}
}

// Rates returns the configured rate schedule.
func (s *TaxService) Rates() model.TaxRates {
	return s.rates
}

func (s *TaxService) options(p model.Portfolio) ledger.TaxOptions {
	opts := ledger.DefaultTaxOptions(s.rates)
	opts.AccountType = p.AccountType
	return opts
}

// GetTaxSummary returns realized gains, dividend income and estimated tax due
// for a calendar year. year 0 means the current year. IRA portfolios report
// Taxable=false with nothing computed.
func (s *TaxService) GetTaxSummary(ctx context.Context, portfolioID string, year int) (model.TaxSummary, error) {
	p, err := s.portfolioRepo.GetPortfolioOnID(ctx, portfolioID)
	if err != nil {
		return model.TaxSummary{}, err
	}
	if year == 0 {
		year = s.now().UTC().Year()
	}
	if year < 1900 || year > 9999 {
		return model.TaxSummary{}, apperrors.NewValidationError("year", "must be a four-digit year")
	}

	txs, err := s.transactionRepo.GetTransactions(ctx, portfolioID)
	if err != nil {
		return model.TaxSummary{}, err
	}

	summary, err := ledger.EstimateTax(txs, year, s.options(p))
	if err != nil {
		return model.TaxSummary{}, err
	}
	summary.PortfolioID = portfolioID

	s.logger.Debug().
		Str("portfolio_id", portfolioID).
		Int("year", year).
		Float64("realized", summary.RealizedGainsYTD).
		Float64("tax_due", summary.EstimatedTaxDue).
		Msg("tax summary computed")
	return summary, nil
}

// EstimateTaxImpact previews the tax of selling shares of ticker today.
// When price is nil the latest stored price is used; a ticker with no stored
// price then needs an explicit one.
//
// Lots come from a lenient replay, so a ledger with incomplete lot history
// still yields an estimate, flagged Approximate.
func (s *TaxService) EstimateTaxImpact(ctx context.Context, portfolioID, ticker string, shares float64, price *float64) (model.TaxImpact, error) {
	verr := &apperrors.ValidationError{}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		verr.Add("ticker", "is required")
	}
	if !(shares > 0) {
		verr.Add("shares", "must be positive")
	}
	if price != nil && !(*price >= 0) {
		verr.Add("price", "must not be negative")
	}
	if err := verr.OrNil(); err != nil {
		return model.TaxImpact{}, err
	}

	p, err := s.portfolioRepo.GetPortfolioOnID(ctx, portfolioID)
	if err != nil {
		return model.TaxImpact{}, err
	}
	today := model.Day(s.now())

	salePrice := 0.0
	if price != nil {
		salePrice = *price
	} else {
		latest, err := s.priceService.LatestPrice(ctx, ticker, today)
		if errors.Is(err, apperrors.ErrPriceNotFound) {
			return model.TaxImpact{}, apperrors.NewValidationError("price", "is required: no stored price for "+ticker)
		}
		if err != nil {
			return model.TaxImpact{}, err
		}
		salePrice = latest.Price
	}

	txs, err := s.transactionRepo.GetTransactionsUntil(ctx, portfolioID, today)
	if err != nil {
		return model.TaxImpact{}, err
	}
	state, err := ledger.Replay(txs, today, ledger.Lenient())
	if err != nil {
		return model.TaxImpact{}, err
	}

	position, ok := state.Position(ticker)
	if !ok {
		position = model.Position{Ticker: ticker, Closed: true}
	}

	impact, err := ledger.EstimateSaleImpact(state.Lots, position, ledger.SaleRequest{
		Ticker: ticker,
		Shares: shares,
		Price:  salePrice,
		Date:   today,
	}, s.options(p))
	if err != nil {
		return model.TaxImpact{}, err
	}
	impact.PortfolioID = portfolioID

	if impact.Approximate {
		s.logger.Warn().
			Str("portfolio_id", portfolioID).
			Str("ticker", ticker).
			Msg("tax impact estimated from average cost")
	}
	return impact, nil
}
