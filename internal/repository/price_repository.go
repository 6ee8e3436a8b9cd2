package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// PriceRepository provides data access methods for the price table.
type PriceRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPriceRepository creates a new PriceRepository with the provided database connection.
func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *PriceRepository) WithTx(tx *sql.Tx) *PriceRepository {
	return &PriceRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *PriceRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetPrices retrieves daily prices for tickers between startDate and endDate
// (inclusive). A zero startDate means from the first stored price.
//
// Returns a map of ticker -> []PricePoint sorted by date ascending. Tickers
// without prices are absent from the map.
func (r *PriceRepository) GetPrices(ctx context.Context, tickers []string, startDate, endDate time.Time) (map[string][]model.PricePoint, error) {
	if len(tickers) == 0 {
		return make(map[string][]model.PricePoint), nil
	}
	if !startDate.IsZero() && startDate.After(endDate) {
		return nil, fmt.Errorf("startDate (%s) must be before or equal to endDate (%s): %w",
			formatDate(startDate), formatDate(endDate), apperrors.ErrInvalidDateRange)
	}

	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `
		SELECT ticker, date, price, source
		FROM price
		WHERE ticker IN (` + placeholders(len(tickers)) + `)
		AND date >= ?
		AND date <= ?
		ORDER BY ticker ASC, date ASC
	`

	args := make([]any, 0, len(tickers)+2)
	for _, t := range tickers {
		args = append(args, t)
	}
	start := "0001-01-01"
	if !startDate.IsZero() {
		start = formatDate(startDate)
	}
	args = append(args, start, formatDate(endDate))

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price table: %w", err)
	}
	defer rows.Close()

	pricesByTicker := make(map[string][]model.PricePoint)
	for rows.Next() {
		var p model.PricePoint
		var dateStr string

		if err := rows.Scan(&p.Ticker, &dateStr, &p.Price, &p.Source); err != nil {
			return nil, fmt.Errorf("failed to scan price table results: %w", err)
		}
		p.Date, err = ParseTime(dateStr)
		if err != nil || p.Date.IsZero() {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}
		pricesByTicker[p.Ticker] = append(pricesByTicker[p.Ticker], p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price table: %w", err)
	}
	return pricesByTicker, nil
}

// GetLatestPrice returns the newest price of ticker dated on or before asOf.
// Returns ErrPriceNotFound when there is none.
func (r *PriceRepository) GetLatestPrice(ctx context.Context, ticker string, asOf time.Time) (model.PricePoint, error) {
	var p model.PricePoint
	var dateStr string

	err := r.getQuerier().QueryRowContext(ctx, `
		SELECT ticker, date, price, source
		FROM price
		WHERE ticker = ?
		AND date <= ?
		ORDER BY date DESC
		LIMIT 1
	`, ticker, formatDate(asOf)).Scan(&p.Ticker, &dateStr, &p.Price, &p.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PricePoint{}, apperrors.ErrPriceNotFound
	}
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("failed to query price: %w", err)
	}

	p.Date, err = ParseTime(dateStr)
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("failed to parse date: %w", err)
	}
	return p, nil
}

// GetLatestPriceDate returns the date of the newest stored price of ticker,
// or the zero time when none is stored.
func (r *PriceRepository) GetLatestPriceDate(ctx context.Context, ticker string) (time.Time, error) {
	var latest sql.NullString
	err := r.getQuerier().QueryRowContext(ctx,
		`SELECT MAX(date) FROM price WHERE ticker = ?`, ticker,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest price date: %w", err)
	}
	return parseNullTime(latest)
}

// UpsertPrices stores prices, replacing any stored for the same ticker and
// date, and returns how many rows were new.
func (r *PriceRepository) UpsertPrices(ctx context.Context, prices []model.PricePoint) (int, error) {
	q := r.getQuerier()
	added := 0

	for _, p := range prices {
		source := p.Source
		if source == "" {
			source = "manual"
		}

		var exists int
		err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM price WHERE ticker = ? AND date = ?`,
			p.Ticker, formatDate(p.Date),
		).Scan(&exists)
		if err != nil {
			return added, fmt.Errorf("failed to check price: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO price (ticker, date, price, source)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (ticker, date) DO UPDATE SET
				price = excluded.price,
				source = excluded.source
		`, p.Ticker, formatDate(p.Date), p.Price, source)
		if err != nil {
			return added, fmt.Errorf("failed to upsert price: %w", err)
		}
		if exists == 0 {
			added++
		}
	}
	return added, nil
}
