package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/ledger"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/repository"
)

// SnapshotService maintains the materialized daily snapshots of each portfolio.
//
// Snapshots are a cache: every one of them is reproducible from the ledger,
// so any write to the ledger deletes the snapshots from the affected date
// onward and readers fall back to replay for days that are not stored.
type SnapshotService struct {
	db              *sql.DB
	snapshotRepo    *repository.SnapshotRepository
	transactionRepo *repository.TransactionRepository
	portfolioRepo   *repository.PortfolioRepository
	logger          *log.Logger
	now             func() time.Time
}

// NewSnapshotService creates a new SnapshotService with the provided dependencies.
func NewSnapshotService(
	db *sql.DB,
	snapshotRepo *repository.SnapshotRepository,
	transactionRepo *repository.TransactionRepository,
	portfolioRepo *repository.PortfolioRepository,
	logger *log.Logger,
) *SnapshotService {
	return &SnapshotService{
		db:              db,
		snapshotRepo:    snapshotRepo,
		transactionRepo: transactionRepo,
		portfolioRepo:   portfolioRepo,
		logger:          logger,
		now:             time.Now,
	}
}

// Materialize rebuilds the daily snapshots of a portfolio from its first
// transaction through today in one pass over the ledger, replacing whatever
// was stored. It returns the number of snapshots written. Running it twice
// stores the same rows.
func (s *SnapshotService) Materialize(ctx context.Context, portfolioID string) (int, error) {
	if _, err := s.portfolioRepo.GetPortfolioOnID(ctx, portfolioID); err != nil {
		return 0, err
	}

	txs, err := s.transactionRepo.GetTransactions(ctx, portfolioID)
	if err != nil {
		return 0, err
	}

	var snapshots []model.Snapshot
	if len(txs) > 0 {
		dates := dailyDates(txs[0].Date, ledgerEndFrom(txs, s.now()))
		snapshots, err = ledger.SnapshotSeries(portfolioID, txs, dates)
		if err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	repo := s.snapshotRepo.WithTx(tx)
	if _, err := repo.DeleteSnapshotsFrom(ctx, portfolioID, time.Time{}); err != nil {
		return 0, err
	}
	if err := repo.UpsertSnapshots(ctx, snapshots); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshots: %w", err)
	}

	s.logger.Info().Str("portfolio_id", portfolioID).Int("snapshots", len(snapshots)).Msg("snapshots materialized")
	return len(snapshots), nil
}

// invalidateTx deletes the snapshots of a portfolio dated on or after from.
func (s *SnapshotService) invalidateTx(ctx context.Context, tx *sql.Tx, portfolioID string, from time.Time) error {
	n, err := s.snapshotRepo.WithTx(tx).DeleteSnapshotsFrom(ctx, portfolioID, from)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Debug().Str("portfolio_id", portfolioID).Str("from", model.DateKey(from)).Int64("deleted", n).Msg("snapshots invalidated")
	}
	return nil
}

// SnapshotRange is the snapshot of every day in a range plus which of those
// days could be trusted for revaluation.
type SnapshotRange struct {
	Dates     []time.Time
	Snapshots []model.Snapshot
	// Stored reports, per date key, whether the snapshot was read from storage.
	Stored map[string]bool
}

// Complete reports whether the snapshot of date is present and consistent:
// stored, or replayed from a ledger whose sells were all covered by lots.
func (r SnapshotRange) Complete(date time.Time) bool {
	key := model.DateKey(date)
	for i, d := range r.Dates {
		if model.DateKey(d) == key {
			return !r.Snapshots[i].Incomplete
		}
	}
	return false
}

// GetSnapshots returns one snapshot per day from startDate through endDate.
// Stored snapshots are used where present; the remaining days are replayed
// from the ledger in a single pass.
func (s *SnapshotService) GetSnapshots(ctx context.Context, portfolioID string, txs []model.Transaction, startDate, endDate time.Time) (SnapshotRange, error) {
	dates := dailyDates(startDate, endDate)
	res := SnapshotRange{
		Dates:  dates,
		Stored: make(map[string]bool),
	}

	stored := make(map[string]model.Snapshot)
	err := s.snapshotRepo.GetSnapshots(ctx, portfolioID, startDate, endDate, func(snap model.Snapshot) error {
		stored[model.DateKey(snap.Date)] = snap
		return nil
	})
	if err != nil {
		return SnapshotRange{}, err
	}

	var replayed []model.Snapshot
	if len(stored) < len(dates) {
		replayed, err = ledger.SnapshotSeries(portfolioID, txs, dates)
		if err != nil {
			return SnapshotRange{}, err
		}
	}

	res.Snapshots = make([]model.Snapshot, len(dates))
	for i, d := range dates {
		key := model.DateKey(d)
		if snap, ok := stored[key]; ok {
			res.Snapshots[i] = snap
			res.Stored[key] = true
			continue
		}
		res.Snapshots[i] = replayed[i]
	}
	return res, nil
}

// dailyDates returns every calendar day from start through end.
func dailyDates(start, end time.Time) []time.Time {
	start, end = model.Day(start), model.Day(end)
	if end.Before(start) {
		return nil
	}
	dates := make([]time.Time, 0, model.DaysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

func ledgerEndFrom(txs []model.Transaction, now time.Time) time.Time {
	end := model.Day(now)
	for _, tx := range txs {
		if tx.Date.After(end) {
			end = tx.Date
		}
	}
	return end
}
