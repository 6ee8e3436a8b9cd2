package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/cursor"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/repository"
)

// Page sizes for transaction listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// TransactionService handles writes to and reads from the ledger.
//
// Every write runs in one database transaction together with the aggregate
// recompute and the snapshot invalidation it triggers. The recompute replays
// strictly, so a write that would leave a sell uncovered by lots is rolled
// back and reported as an *apperrors.InsufficientLotsError.
type TransactionService struct {
	db               *sql.DB
	transactionRepo  *repository.TransactionRepository
	portfolioService *PortfolioService
	snapshotService  *SnapshotService
	cursorCodec      *cursor.Codec
	logger           *log.Logger
}

// NewTransactionService creates a new TransactionService with the provided dependencies.
func NewTransactionService(
	db *sql.DB,
	transactionRepo *repository.TransactionRepository,
	portfolioService *PortfolioService,
	snapshotService *SnapshotService,
	cursorCodec *cursor.Codec,
	logger *log.Logger,
) *TransactionService {
	return &TransactionService{
		db:               db,
		transactionRepo:  transactionRepo,
		portfolioService: portfolioService,
		snapshotService:  snapshotService,
		cursorCodec:      cursorCodec,
		logger:           logger,
	}
}

// GetTransaction retrieves a single transaction by ID.
func (s *TransactionService) GetTransaction(ctx context.Context, transactionID string) (model.Transaction, error) {
	return s.transactionRepo.GetTransaction(ctx, transactionID)
}

// GetTransactions returns the whole ledger of a portfolio in replay order.
func (s *TransactionService) GetTransactions(ctx context.Context, portfolioID string) ([]model.Transaction, error) {
	if _, err := s.portfolioService.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	return s.transactionRepo.GetTransactions(ctx, portfolioID)
}

// ListTransactions returns one page of a portfolio's ledger in insertion
// order. token is the NextCursor of the previous page, or empty for the first.
func (s *TransactionService) ListTransactions(ctx context.Context, portfolioID string, filter model.TransactionFilter, token string, limit int) (model.TransactionPage, error) {
	if _, err := s.portfolioService.GetPortfolio(ctx, portfolioID); err != nil {
		return model.TransactionPage{}, err
	}

	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	var afterSeq int64
	if token != "" {
		pos, err := s.cursorCodec.Decode(token)
		if err != nil {
			return model.TransactionPage{}, err
		}
		if pos.PortfolioID != portfolioID {
			return model.TransactionPage{}, apperrors.ErrInvalidCursor
		}
		afterSeq = pos.AfterSeq
	}

	txs, more, err := s.transactionRepo.ListPage(ctx, portfolioID, afterSeq, limit, filter)
	if err != nil {
		return model.TransactionPage{}, err
	}

	page := model.TransactionPage{Transactions: txs}
	if more {
		next, err := s.cursorCodec.Encode(cursor.Position{PortfolioID: portfolioID, AfterSeq: txs[len(txs)-1].Seq})
		if err != nil {
			return model.TransactionPage{}, err
		}
		page.NextCursor = next
	}
	return page, nil
}

// CreateTransaction validates in and appends it to the ledger of portfolioID.
func (s *TransactionService) CreateTransaction(ctx context.Context, portfolioID string, in model.TransactionInput) (model.Transaction, error) {
	t, err := model.NewTransaction(portfolioID, in)
	if err != nil {
		return model.Transaction{}, err
	}

	txs := []model.Transaction{t}
	err = s.write(ctx, portfolioID, t.Date, func(repo *repository.TransactionRepository) error {
		return repo.InsertTransactions(ctx, txs)
	})
	if err != nil {
		return model.Transaction{}, err
	}

	s.logger.Info().
		Str("portfolio_id", portfolioID).
		Str("transaction_id", txs[0].ID).
		Str("type", string(txs[0].Type)).
		Str("ticker", txs[0].Ticker).
		Msg("transaction created")
	return txs[0], nil
}

// UpdateTransaction replaces a transaction's fields, keeping its ID, its
// portfolio and its insertion sequence.
func (s *TransactionService) UpdateTransaction(ctx context.Context, transactionID string, in model.TransactionInput) (model.Transaction, error) {
	existing, err := s.transactionRepo.GetTransaction(ctx, transactionID)
	if err != nil {
		return model.Transaction{}, err
	}

	t, err := model.NewTransaction(existing.PortfolioID, in)
	if err != nil {
		return model.Transaction{}, err
	}
	t.ID = existing.ID
	t.Seq = existing.Seq
	t.CreatedAt = existing.CreatedAt

	affected := existing.Date
	if t.Date.Before(affected) {
		affected = t.Date
	}

	err = s.write(ctx, existing.PortfolioID, affected, func(repo *repository.TransactionRepository) error {
		return repo.UpdateTransaction(ctx, t)
	})
	if err != nil {
		return model.Transaction{}, err
	}

	s.logger.Info().Str("portfolio_id", t.PortfolioID).Str("transaction_id", t.ID).Msg("transaction updated")
	return t, nil
}

// DeleteTransaction removes a transaction from the ledger.
func (s *TransactionService) DeleteTransaction(ctx context.Context, transactionID string) error {
	existing, err := s.transactionRepo.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}

	err = s.write(ctx, existing.PortfolioID, existing.Date, func(repo *repository.TransactionRepository) error {
		return repo.DeleteTransaction(ctx, transactionID)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("portfolio_id", existing.PortfolioID).Str("transaction_id", transactionID).Msg("transaction deleted")
	return nil
}

// ImportTransactions appends an already-parsed batch to the ledger of
// portfolioID. The batch is all or nothing: one invalid entry, or a sell the
// resulting ledger cannot cover, rejects every entry. Entries keep their
// order in the batch as their insertion order.
func (s *TransactionService) ImportTransactions(ctx context.Context, portfolioID string, inputs []model.TransactionInput) (model.ImportResult, error) {
	if len(inputs) == 0 {
		return model.ImportResult{}, apperrors.NewValidationError("transactions", "must not be empty")
	}

	verr := &apperrors.ValidationError{}
	txs := make([]model.Transaction, 0, len(inputs))
	var earliest time.Time
	for i, in := range inputs {
		t, err := model.NewTransaction(portfolioID, in)
		var fieldErr *apperrors.ValidationError
		if errors.As(err, &fieldErr) {
			for field, msg := range fieldErr.Fields {
				verr.Add(fmt.Sprintf("transactions[%d].%s", i, field), msg)
			}
			continue
		}
		if earliest.IsZero() || t.Date.Before(earliest) {
			earliest = t.Date
		}
		txs = append(txs, t)
	}
	if err := verr.OrNil(); err != nil {
		return model.ImportResult{}, err
	}

	var agg model.Aggregate
	err := s.writeWithAggregate(ctx, portfolioID, earliest, func(repo *repository.TransactionRepository) error {
		return repo.InsertTransactions(ctx, txs)
	}, &agg)
	if err != nil {
		return model.ImportResult{}, err
	}

	s.logger.Info().Str("portfolio_id", portfolioID).Int("imported", len(txs)).Msg("transactions imported")
	return model.ImportResult{
		Imported: len(txs),
		FirstSeq: txs[0].Seq,
		LastSeq:  txs[len(txs)-1].Seq,
		AsOf:     agg.AsOf,
	}, nil
}

func (s *TransactionService) write(ctx context.Context, portfolioID string, affected time.Time, mutate func(*repository.TransactionRepository) error) error {
	return s.writeWithAggregate(ctx, portfolioID, affected, mutate, nil)
}

// writeWithAggregate applies mutate, recomputes the aggregates and
// invalidates snapshots from affected onward, all in one transaction.
func (s *TransactionService) writeWithAggregate(ctx context.Context, portfolioID string, affected time.Time, mutate func(*repository.TransactionRepository) error, out *model.Aggregate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := s.portfolioService.portfolioRepo.WithTx(tx).GetPortfolioOnID(ctx, portfolioID); err != nil {
		return err
	}
	if err := mutate(s.transactionRepo.WithTx(tx)); err != nil {
		return err
	}

	agg, err := s.portfolioService.recomputeAggregatesTx(ctx, tx, portfolioID)
	if err != nil {
		var lotsErr *apperrors.InsufficientLotsError
		if errors.As(err, &lotsErr) {
			s.logger.Warn().Str("portfolio_id", portfolioID).Err(err).Msg("ledger write rejected")
		}
		return err
	}
	if err := s.snapshotService.invalidateTx(ctx, tx, portfolioID, affected); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	if out != nil {
		*out = agg
	}
	return nil
}
