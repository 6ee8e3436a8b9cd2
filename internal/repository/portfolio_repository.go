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

// PortfolioRepository provides data access methods for the portfolio and holding tables.
type PortfolioRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPortfolioRepository creates a new PortfolioRepository with the provided database connection.
func NewPortfolioRepository(db *sql.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *PortfolioRepository) WithTx(tx *sql.Tx) *PortfolioRepository {
	return &PortfolioRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *PortfolioRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const portfolioColumns = `id, name, description, account_type, is_archived, metadata, cash_balance, aggregates_updated_at, created_at`

func scanPortfolio(scan func(dest ...any) error) (model.Portfolio, error) {
	var p model.Portfolio
	var metadata, createdAtStr string
	var updatedAt sql.NullString

	err := scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.AccountType,
		&p.IsArchived,
		&metadata,
		&p.CashBalance,
		&updatedAt,
		&createdAtStr,
	)
	if err != nil {
		return model.Portfolio{}, err
	}

	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &p.Metadata); err != nil {
			return model.Portfolio{}, fmt.Errorf("failed to decode portfolio metadata: %w", err)
		}
	}

	if updatedAt.Valid {
		t, err := ParseTime(updatedAt.String)
		if err != nil {
			return model.Portfolio{}, fmt.Errorf("failed to parse aggregates_updated_at: %w", err)
		}
		p.AggregatesUpdatedAt = &t
	}

	p.CreatedAt, err = ParseTime(createdAtStr)
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return p, nil
}

// GetPortfolios retrieves portfolios from the database based on filter criteria.
// Returns an empty slice if no portfolios match the filter criteria.
func (r *PortfolioRepository) GetPortfolios(ctx context.Context, filter model.PortfolioFilter) ([]model.Portfolio, error) {
	query := `
		SELECT ` + portfolioColumns + `
		FROM portfolio
		WHERE 1=1
	`
	var args []any

	if !filter.IncludeArchived {
		query += " AND is_archived = ?"
		args = append(args, 0)
	}
	query += " ORDER BY created_at ASC, name ASC"

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios table: %w", err)
	}
	defer rows.Close()

	portfolios := []model.Portfolio{}
	for rows.Next() {
		p, err := scanPortfolio(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio table results: %w", err)
		}
		portfolios = append(portfolios, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios table: %w", err)
	}
	return portfolios, nil
}

// GetPortfolioOnID retrieves a portfolio by ID.
// Returns ErrPortfolioNotFound if it does not exist.
func (r *PortfolioRepository) GetPortfolioOnID(ctx context.Context, portfolioID string) (model.Portfolio, error) {
	row := r.getQuerier().QueryRowContext(ctx, `
		SELECT `+portfolioColumns+`
		FROM portfolio
		WHERE id = ?
	`, portfolioID)

	p, err := scanPortfolio(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Portfolio{}, apperrors.ErrPortfolioNotFound
	}
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("failed to query portfolio: %w", err)
	}
	return p, nil
}

// InsertPortfolio stores p with a fresh ID, written back into p.
func (r *PortfolioRepository) InsertPortfolio(ctx context.Context, p *model.Portfolio) error {
	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return err
	}

	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC().Truncate(time.Second)
	if p.AccountType == "" {
		p.AccountType = model.AccountTaxable
	}

	_, err = r.getQuerier().ExecContext(ctx, `
		INSERT INTO portfolio (id, name, description, account_type, is_archived, metadata, cash_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`,
		p.ID,
		p.Name,
		p.Description,
		string(p.AccountType),
		p.IsArchived,
		metadata,
		formatTimestamp(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert portfolio: %w", err)
	}
	return nil
}

// UpdatePortfolio overwrites the descriptive fields of p. Derived columns are untouched.
// Returns ErrPortfolioNotFound if no record with the given ID exists.
func (r *PortfolioRepository) UpdatePortfolio(ctx context.Context, p model.Portfolio) error {
	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return err
	}

	result, err := r.getQuerier().ExecContext(ctx, `
		UPDATE portfolio
		SET name = ?, description = ?, account_type = ?, is_archived = ?, metadata = ?
		WHERE id = ?
	`,
		p.Name,
		p.Description,
		string(p.AccountType),
		p.IsArchived,
		metadata,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	return expectOneRow(result, apperrors.ErrPortfolioNotFound)
}

// DeletePortfolio removes a portfolio; its ledger and derived rows cascade.
// Returns ErrPortfolioNotFound if no record with the given ID exists.
func (r *PortfolioRepository) DeletePortfolio(ctx context.Context, portfolioID string) error {
	result, err := r.getQuerier().ExecContext(ctx, `DELETE FROM portfolio WHERE id = ?`, portfolioID)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	return expectOneRow(result, apperrors.ErrPortfolioNotFound)
}

// SaveAggregate replaces the stored holdings and cash balance of a portfolio
// with agg. Closed positions are not stored.
func (r *PortfolioRepository) SaveAggregate(ctx context.Context, agg model.Aggregate) error {
	q := r.getQuerier()
	now := time.Now().UTC()

	result, err := q.ExecContext(ctx, `
		UPDATE portfolio
		SET cash_balance = ?, aggregates_updated_at = ?
		WHERE id = ?
	`, agg.CashBalance, formatTimestamp(now), agg.PortfolioID)
	if err != nil {
		return fmt.Errorf("failed to update portfolio cash balance: %w", err)
	}
	if err := expectOneRow(result, apperrors.ErrPortfolioNotFound); err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM holding WHERE portfolio_id = ?`, agg.PortfolioID); err != nil {
		return fmt.Errorf("failed to clear holdings: %w", err)
	}

	for _, h := range agg.Holdings {
		_, err := q.ExecContext(ctx, `
			INSERT INTO holding (portfolio_id, ticker, quantity, cost_basis, average_cost, first_acquired, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			agg.PortfolioID,
			h.Ticker,
			h.Quantity,
			h.CostBasis,
			h.AverageCost,
			nullDate(h.FirstAcquired),
			formatTimestamp(now),
		)
		if err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Ticker, err)
		}
	}
	return nil
}

// GetHoldings returns the stored holdings of a portfolio ordered by ticker.
func (r *PortfolioRepository) GetHoldings(ctx context.Context, portfolioID string) ([]model.Holding, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `
		SELECT portfolio_id, ticker, quantity, cost_basis, average_cost, first_acquired, updated_at
		FROM holding
		WHERE portfolio_id = ?
		ORDER BY ticker ASC
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holding table: %w", err)
	}
	defer rows.Close()

	holdings := []model.Holding{}
	for rows.Next() {
		var h model.Holding
		var firstAcquired sql.NullString
		var updatedAtStr string

		err := rows.Scan(
			&h.PortfolioID,
			&h.Ticker,
			&h.Quantity,
			&h.CostBasis,
			&h.AverageCost,
			&firstAcquired,
			&updatedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding table results: %w", err)
		}
		if h.FirstAcquired, err = parseNullTime(firstAcquired); err != nil {
			return nil, fmt.Errorf("failed to parse first_acquired: %w", err)
		}
		if h.UpdatedAt, err = ParseTime(updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		holdings = append(holdings, h)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holding table: %w", err)
	}
	return holdings, nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode portfolio metadata: %w", err)
	}
	return string(b), nil
}
