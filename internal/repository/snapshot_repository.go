package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// SnapshotRepository provides data access methods for the snapshot table.
// Snapshots are a cache over the ledger and may be deleted at any time.
type SnapshotRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewSnapshotRepository creates a new repository instance.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *SnapshotRepository) WithTx(tx *sql.Tx) *SnapshotRepository {
	return &SnapshotRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *SnapshotRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func scanSnapshot(scan func(dest ...any) error) (model.Snapshot, error) {
	var s model.Snapshot
	var dateStr, positions, calculatedAtStr string

	err := scan(
		&s.ID,
		&s.PortfolioID,
		&dateStr,
		&s.CashBalance,
		&positions,
		&s.Incomplete,
		&calculatedAtStr,
	)
	if err != nil {
		return model.Snapshot{}, err
	}

	if s.Date, err = ParseTime(dateStr); err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to parse date: %w", err)
	}
	if s.CalculatedAt, err = ParseTime(calculatedAtStr); err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to parse calculated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(positions), &s.Positions); err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to decode positions: %w", err)
	}
	return s, nil
}

// GetSnapshots streams the stored snapshots of a portfolio between startDate
// and endDate (inclusive) in date order, calling callback for each.
//
// The callback pattern allows the caller to process records one at a time
// without loading the entire range into memory.
func (r *SnapshotRepository) GetSnapshots(
	ctx context.Context,
	portfolioID string,
	startDate, endDate time.Time,
	callback func(snapshot model.Snapshot) error,
) error {
	rows, err := r.getQuerier().QueryContext(ctx, `
		SELECT id, portfolio_id, date, cash_balance, positions, incomplete, calculated_at
		FROM snapshot
		WHERE portfolio_id = ?
		AND date >= ?
		AND date <= ?
		ORDER BY date ASC
	`, portfolioID, formatDate(startDate), formatDate(endDate))
	if err != nil {
		return fmt.Errorf("failed to query snapshot table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSnapshot(rows.Scan)
		if err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if err := callback(s); err != nil {
			return err
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}
	return nil
}

// GetSnapshot returns the stored snapshot of a portfolio on date.
// Returns ErrSnapshotNotFound if none is stored.
func (r *SnapshotRepository) GetSnapshot(ctx context.Context, portfolioID string, date time.Time) (model.Snapshot, error) {
	row := r.getQuerier().QueryRowContext(ctx, `
		SELECT id, portfolio_id, date, cash_balance, positions, incomplete, calculated_at
		FROM snapshot
		WHERE portfolio_id = ?
		AND date = ?
	`, portfolioID, formatDate(date))

	s, err := scanSnapshot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, apperrors.ErrSnapshotNotFound
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return s, nil
}

// UpsertSnapshots stores snapshots, replacing any already stored for the same
// portfolio and date.
func (r *SnapshotRepository) UpsertSnapshots(ctx context.Context, snapshots []model.Snapshot) error {
	q := r.getQuerier()
	now := time.Now().UTC()

	for _, s := range snapshots {
		positions, err := json.Marshal(s.Positions)
		if err != nil {
			return fmt.Errorf("failed to encode positions: %w", err)
		}
		if s.Positions == nil {
			positions = []byte("[]")
		}
		calculatedAt := s.CalculatedAt
		if calculatedAt.IsZero() {
			calculatedAt = now
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO snapshot (id, portfolio_id, date, cash_balance, positions, incomplete, calculated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (portfolio_id, date) DO UPDATE SET
				cash_balance = excluded.cash_balance,
				positions = excluded.positions,
				incomplete = excluded.incomplete,
				calculated_at = excluded.calculated_at
		`,
			uuid.New().String(),
			s.PortfolioID,
			formatDate(s.Date),
			s.CashBalance,
			string(positions),
			s.Incomplete,
			formatTimestamp(calculatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert snapshot: %w", err)
		}
	}
	return nil
}

// DeleteSnapshotsFrom removes the snapshots of a portfolio dated on or after
// date and returns how many were removed.
func (r *SnapshotRepository) DeleteSnapshotsFrom(ctx context.Context, portfolioID string, date time.Time) (int64, error) {
	result, err := r.getQuerier().ExecContext(ctx,
		`DELETE FROM snapshot WHERE portfolio_id = ? AND date >= ?`,
		portfolioID, formatDate(date),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// GetLatestSnapshotDate returns the date of the newest stored snapshot, or the
// zero time when none is stored.
func (r *SnapshotRepository) GetLatestSnapshotDate(ctx context.Context, portfolioID string) (time.Time, error) {
	var latest sql.NullString
	err := r.getQuerier().QueryRowContext(ctx,
		`SELECT MAX(date) FROM snapshot WHERE portfolio_id = ?`, portfolioID,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return parseNullTime(latest)
}
