package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/ledger"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/repository"
)

// PortfolioService handles portfolio-related business logic operations.
// It owns the derived aggregates: holdings and cash balance are only ever
// written by RecomputeAggregates, from a full replay of the ledger.
type PortfolioService struct {
	db              *sql.DB
	portfolioRepo   *repository.PortfolioRepository
	transactionRepo *repository.TransactionRepository
	priceService    *PriceService
	logger          *log.Logger
}

// NewPortfolioService creates a new PortfolioService with the provided dependencies.
func NewPortfolioService(
	db *sql.DB,
	portfolioRepo *repository.PortfolioRepository,
	transactionRepo *repository.TransactionRepository,
	priceService *PriceService,
	logger *log.Logger,
) *PortfolioService {
	return &PortfolioService{
		db:              db,
		portfolioRepo:   portfolioRepo,
		transactionRepo: transactionRepo,
		priceService:    priceService,
		logger:          logger,
	}
}

// PortfolioInput carries the writable fields of a portfolio.
type PortfolioInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	AccountType string            `json:"accountType"`
	IsArchived  bool              `json:"isArchived"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (in PortfolioInput) toModel() (model.Portfolio, error) {
	verr := &apperrors.ValidationError{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		verr.Add("name", "is required")
	} else if len(name) > 100 {
		verr.Add("name", "must be at most 100 characters")
	}

	accountType := model.AccountType(strings.ToLower(strings.TrimSpace(in.AccountType)))
	if accountType == "" {
		accountType = model.AccountTaxable
	}
	if !accountType.Valid() {
		verr.Add("accountType", "must be taxable or ira")
	}
	if err := verr.OrNil(); err != nil {
		return model.Portfolio{}, err
	}

	return model.Portfolio{
		Name:        name,
		Description: in.Description,
		AccountType: accountType,
		IsArchived:  in.IsArchived,
		Metadata:    in.Metadata,
	}, nil
}

// GetAllPortfolios retrieves all portfolios, archived ones included.
func (s *PortfolioService) GetAllPortfolios(ctx context.Context) ([]model.Portfolio, error) {
	return s.portfolioRepo.GetPortfolios(ctx, model.PortfolioFilter{IncludeArchived: true})
}

// GetPortfolios retrieves the portfolios matching filter.
func (s *PortfolioService) GetPortfolios(ctx context.Context, filter model.PortfolioFilter) ([]model.Portfolio, error) {
	return s.portfolioRepo.GetPortfolios(ctx, filter)
}

// GetPortfolio retrieves a single portfolio by ID.
// Returns apperrors.ErrPortfolioNotFound when it does not exist.
func (s *PortfolioService) GetPortfolio(ctx context.Context, portfolioID string) (model.Portfolio, error) {
	return s.portfolioRepo.GetPortfolioOnID(ctx, portfolioID)
}

// CreatePortfolio validates in and stores a new, empty portfolio.
func (s *PortfolioService) CreatePortfolio(ctx context.Context, in PortfolioInput) (model.Portfolio, error) {
	p, err := in.toModel()
	if err != nil {
		return model.Portfolio{}, err
	}
	if err := s.portfolioRepo.InsertPortfolio(ctx, &p); err != nil {
		return model.Portfolio{}, err
	}
	s.logger.Info().Str("portfolio_id", p.ID).Str("account_type", string(p.AccountType)).Msg("portfolio created")
	return p, nil
}

// UpdatePortfolio replaces the descriptive fields of a portfolio.
func (s *PortfolioService) UpdatePortfolio(ctx context.Context, portfolioID string, in PortfolioInput) (model.Portfolio, error) {
	p, err := in.toModel()
	if err != nil {
		return model.Portfolio{}, err
	}
	p.ID = portfolioID
	if err := s.portfolioRepo.UpdatePortfolio(ctx, p); err != nil {
		return model.Portfolio{}, err
	}
	return s.portfolioRepo.GetPortfolioOnID(ctx, portfolioID)
}

// DeletePortfolio removes a portfolio together with its ledger and derived data.
func (s *PortfolioService) DeletePortfolio(ctx context.Context, portfolioID string) error {
	if err := s.portfolioRepo.DeletePortfolio(ctx, portfolioID); err != nil {
		return err
	}
	s.logger.Info().Str("portfolio_id", portfolioID).Msg("portfolio deleted")
	return nil
}

// RecomputeAggregates replays the full ledger of a portfolio and persists the
// resulting holdings and cash balance. Replay is strict: a ledger with a sell
// no lot covers is rejected with an *apperrors.InsufficientLotsError and the
// stored aggregates are left as they were.
func (s *PortfolioService) RecomputeAggregates(ctx context.Context, portfolioID string) (model.Aggregate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Aggregate{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	agg, err := s.recomputeAggregatesTx(ctx, tx, portfolioID)
	if err != nil {
		return model.Aggregate{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Aggregate{}, fmt.Errorf("failed to commit aggregates: %w", err)
	}
	return agg, nil
}

// recomputeAggregatesTx is RecomputeAggregates inside an open transaction, so
// ledger writes and the aggregates derived from them commit together.
func (s *PortfolioService) recomputeAggregatesTx(ctx context.Context, tx *sql.Tx, portfolioID string) (model.Aggregate, error) {
	if _, err := s.portfolioRepo.WithTx(tx).GetPortfolioOnID(ctx, portfolioID); err != nil {
		return model.Aggregate{}, err
	}

	txs, err := s.transactionRepo.WithTx(tx).GetTransactions(ctx, portfolioID)
	if err != nil {
		return model.Aggregate{}, err
	}

	state, err := ledger.Replay(txs, ledgerEnd(txs))
	if err != nil {
		return model.Aggregate{}, err
	}

	agg := aggregateFromState(portfolioID, state)
	if err := s.portfolioRepo.WithTx(tx).SaveAggregate(ctx, agg); err != nil {
		return model.Aggregate{}, err
	}

	s.logger.Info().
		Str("portfolio_id", portfolioID).
		Int("transactions", len(txs)).
		Int("holdings", len(agg.Holdings)).
		Float64("cash_balance", agg.CashBalance).
		Msg("aggregates recomputed")
	return agg, nil
}

func aggregateFromState(portfolioID string, state ledger.State) model.Aggregate {
	agg := model.Aggregate{
		PortfolioID:  portfolioID,
		AsOf:         state.AsOf,
		CashBalance:  state.CashBalance,
		Holdings:     []model.Holding{},
		RealizedGain: state.RealizedGain(),
	}
	for _, p := range state.OpenPositions() {
		agg.Holdings = append(agg.Holdings, model.Holding{
			PortfolioID:   portfolioID,
			Ticker:        p.Ticker,
			Quantity:      p.Quantity,
			CostBasis:     p.CostBasis,
			AverageCost:   p.AverageCost,
			FirstAcquired: p.FirstAcquired,
		})
	}
	return agg
}

// GetHoldings returns the stored aggregate holdings of a portfolio.
func (s *PortfolioService) GetHoldings(ctx context.Context, portfolioID string) ([]model.Holding, error) {
	if _, err := s.portfolioRepo.GetPortfolioOnID(ctx, portfolioID); err != nil {
		return nil, err
	}
	return s.portfolioRepo.GetHoldings(ctx, portfolioID)
}

// GetPortfolioValue values a portfolio on date from a lenient replay and the
// stored prices. Positions priced from a fallback are reported in Warnings;
// a missing price never fails the valuation.
//
// Cash is included only for portfolios that record cash transactions
// anywhere in their ledger, so every date of one portfolio is valued the same
// way. A holdings-only ledger has no meaningful cash balance to add.
func (s *PortfolioService) GetPortfolioValue(ctx context.Context, portfolioID string, date time.Time) (model.PortfolioValue, error) {
	if _, err := s.portfolioRepo.GetPortfolioOnID(ctx, portfolioID); err != nil {
		return model.PortfolioValue{}, err
	}
	date = model.Day(date)

	// The full ledger; Replay ignores entries after date.
	txs, err := s.transactionRepo.GetTransactions(ctx, portfolioID)
	if err != nil {
		return model.PortfolioValue{}, err
	}

	state, err := ledger.Replay(txs, date, ledger.Lenient())
	if err != nil {
		return model.PortfolioValue{}, err
	}
	for ticker, short := range state.Unmatched {
		s.logger.Warn().Str("portfolio_id", portfolioID).Str("ticker", ticker).Float64("unmatched", short).Msg("sell exceeds open lots")
	}

	open := state.OpenPositions()
	prices, err := s.priceService.LoadPrices(ctx, positionTickers(open), date)
	if err != nil {
		return model.PortfolioValue{}, err
	}

	valuation := ledger.ValueAt(date, open, state.CashBalance, hasCashTransactions(txs), prices)

	value := model.PortfolioValue{
		PortfolioID:   portfolioID,
		Date:          date,
		CashBalance:   valuation.Cash,
		HoldingsValue: valuation.HoldingsValue,
		TotalValue:    valuation.Total,
		Lines:         valuation.Lines,
	}
	if value.Lines == nil {
		value.Lines = []model.ValuationLine{}
	}
	for _, line := range valuation.Lines {
		value.TotalCost += line.CostBasis
	}
	value.Unrealized = value.HoldingsValue - value.TotalCost
	for _, w := range valuation.Warnings {
		s.logger.Warn().Str("portfolio_id", portfolioID).Err(w).Msg("price fallback")
		value.Warnings = append(value.Warnings, w.Error())
	}
	return value, nil
}

// GetOpenLots returns the open FIFO lots of a portfolio, optionally narrowed
// to one ticker, rebuilt from the full ledger. An oversold ledger yields an
// *apperrors.InsufficientLotsError.
func (s *PortfolioService) GetOpenLots(ctx context.Context, portfolioID, ticker string) ([]model.Lot, error) {
	if _, err := s.portfolioRepo.GetPortfolioOnID(ctx, portfolioID); err != nil {
		return nil, err
	}

	txs, err := s.transactionRepo.GetTransactions(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	book, err := ledger.TrackLots(txs, ledgerEnd(txs))
	if err != nil {
		return nil, err
	}

	lots := []model.Lot{}
	if ticker != "" {
		return append(lots, book.Open(strings.ToUpper(ticker))...), nil
	}
	for _, t := range book.Tickers() {
		lots = append(lots, book.Open(t)...)
	}
	return lots, nil
}

// ledgerEnd is today, or the latest transaction date when the ledger holds
// future-dated entries.
func ledgerEnd(txs []model.Transaction) time.Time {
	return ledgerEndFrom(txs, time.Now())
}

func positionTickers(positions []model.Position) []string {
	tickers := make([]string, 0, len(positions))
	for _, p := range positions {
		tickers = append(tickers, p.Ticker)
	}
	return tickers
}

func hasCashTransactions(txs []model.Transaction) bool {
	for _, tx := range txs {
		if tx.Type == model.TransactionCash {
			return true
		}
	}
	return false
}
