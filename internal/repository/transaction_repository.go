package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// TransactionRepository provides data access methods for the transaction table.
// The table is the ledger: every other stored row is derived from it.
type TransactionRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewTransactionRepository creates a new TransactionRepository with the provided database connection.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *TransactionRepository) WithTx(tx *sql.Tx) *TransactionRepository {
	return &TransactionRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *TransactionRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const transactionColumns = `id, portfolio_id, seq, type, ticker, date, quantity, price, amount, notes, created_at`

func scanTransaction(scan func(dest ...any) error) (model.Transaction, error) {
	var t model.Transaction
	var dateStr, createdAtStr string
	var price sql.NullFloat64

	err := scan(
		&t.ID,
		&t.PortfolioID,
		&t.Seq,
		&t.Type,
		&t.Ticker,
		&dateStr,
		&t.Quantity,
		&price,
		&t.Amount,
		&t.Notes,
		&createdAtStr,
	)
	if err != nil {
		return model.Transaction{}, err
	}

	t.Date, err = ParseTime(dateStr)
	if err != nil || t.Date.IsZero() {
		return model.Transaction{}, fmt.Errorf("failed to parse date: %w", err)
	}
	t.CreatedAt, err = ParseTime(createdAtStr)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if price.Valid {
		t.Price = model.Float64Ptr(price.Float64)
	}
	return t, nil
}

func (r *TransactionRepository) query(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction table: %w", err)
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction table results: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction table: %w", err)
	}
	return transactions, nil
}

// GetTransactions returns every transaction of a portfolio in replay order:
// by date, then by insertion sequence.
func (r *TransactionRepository) GetTransactions(ctx context.Context, portfolioID string) ([]model.Transaction, error) {
	return r.query(ctx, `
		SELECT `+transactionColumns+`
		FROM "transaction"
		WHERE portfolio_id = ?
		ORDER BY date ASC, seq ASC
	`, portfolioID)
}

// GetTransactionsUntil returns the transactions dated on or before asOf, in replay order.
func (r *TransactionRepository) GetTransactionsUntil(ctx context.Context, portfolioID string, asOf time.Time) ([]model.Transaction, error) {
	return r.query(ctx, `
		SELECT `+transactionColumns+`
		FROM "transaction"
		WHERE portfolio_id = ?
		AND date <= ?
		ORDER BY date ASC, seq ASC
	`, portfolioID, formatDate(asOf))
}

// ListPage returns up to limit transactions with seq greater than afterSeq,
// ordered by seq, matching filter. It fetches one extra row so the caller can
// tell whether another page exists.
func (r *TransactionRepository) ListPage(ctx context.Context, portfolioID string, afterSeq int64, limit int, filter model.TransactionFilter) ([]model.Transaction, bool, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM "transaction"
		WHERE portfolio_id = ?
		AND seq > ?
	`
	args := []any{portfolioID, afterSeq}

	if filter.Ticker != "" {
		query += " AND ticker = ?"
		args = append(args, filter.Ticker)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if !filter.From.IsZero() {
		query += " AND date >= ?"
		args = append(args, formatDate(filter.From))
	}
	if !filter.To.IsZero() {
		query += " AND date <= ?"
		args = append(args, formatDate(filter.To))
	}
	query += " ORDER BY seq ASC LIMIT ?"
	args = append(args, limit+1)

	transactions, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	if len(transactions) > limit {
		return transactions[:limit], true, nil
	}
	return transactions, false, nil
}

// GetTransaction retrieves a single transaction.
// Returns ErrTransactionNotFound if it does not exist.
func (r *TransactionRepository) GetTransaction(ctx context.Context, transactionID string) (model.Transaction, error) {
	row := r.getQuerier().QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM "transaction"
		WHERE id = ?
	`, transactionID)

	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, apperrors.ErrTransactionNotFound
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to scan transaction table results: %w", err)
	}
	return t, nil
}

// GetOldestTransactionDate returns the date of the earliest transaction of a
// portfolio, or the zero time when it has none.
func (r *TransactionRepository) GetOldestTransactionDate(ctx context.Context, portfolioID string) (time.Time, error) {
	var oldest sql.NullString
	err := r.getQuerier().QueryRowContext(ctx,
		`SELECT MIN(date) FROM "transaction" WHERE portfolio_id = ?`, portfolioID,
	).Scan(&oldest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query oldest transaction: %w", err)
	}
	return parseNullTime(oldest)
}

// GetTickers returns every distinct ticker traded in any portfolio.
func (r *TransactionRepository) GetTickers(ctx context.Context) ([]string, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `
		SELECT DISTINCT ticker
		FROM "transaction"
		WHERE ticker != ''
		ORDER BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	tickers := []string{}
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, ticker)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}
	return tickers, nil
}

// GetTickerFirstDates returns, for every ticker traded in any portfolio, the
// date it was first traded.
func (r *TransactionRepository) GetTickerFirstDates(ctx context.Context) (map[string]time.Time, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `
		SELECT ticker, MIN(date)
		FROM "transaction"
		WHERE ticker != ''
		GROUP BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticker dates: %w", err)
	}
	defer rows.Close()

	firstDates := make(map[string]time.Time)
	for rows.Next() {
		var ticker, dateStr string
		if err := rows.Scan(&ticker, &dateStr); err != nil {
			return nil, fmt.Errorf("failed to scan ticker dates: %w", err)
		}
		date, err := ParseTime(dateStr)
		if err != nil {
			return nil, err
		}
		firstDates[ticker] = date
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticker dates: %w", err)
	}
	return firstDates, nil
}

// InsertTransactions appends txs to the ledger of their portfolio. Each gets a
// fresh ID and the next insertion sequence number; the assigned values are
// written back into the slice. Run inside a transaction so the sequence
// numbers stay gap-free under concurrent writers.
func (r *TransactionRepository) InsertTransactions(ctx context.Context, txs []model.Transaction) error {
	q := r.getQuerier()
	next := make(map[string]int64)
	now := time.Now().UTC()

	for i := range txs {
		t := &txs[i]
		seq, ok := next[t.PortfolioID]
		if !ok {
			var maxSeq sql.NullInt64
			err := q.QueryRowContext(ctx,
				`SELECT MAX(seq) FROM "transaction" WHERE portfolio_id = ?`, t.PortfolioID,
			).Scan(&maxSeq)
			if err != nil {
				return fmt.Errorf("failed to read transaction sequence: %w", err)
			}
			seq = maxSeq.Int64
		}
		seq++
		next[t.PortfolioID] = seq

		t.ID = uuid.New().String()
		t.Seq = seq
		t.CreatedAt = now

		var price any
		if t.Price != nil {
			price = *t.Price
		}

		_, err := q.ExecContext(ctx, `
			INSERT INTO "transaction" (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			t.ID,
			t.PortfolioID,
			t.Seq,
			string(t.Type),
			t.Ticker,
			formatDate(t.Date),
			t.Quantity,
			price,
			t.Amount,
			t.Notes,
			formatTimestamp(t.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}
	return nil
}

// UpdateTransaction overwrites the mutable fields of t, keeping its ID and sequence.
// Returns ErrTransactionNotFound if no record with the given ID exists.
func (r *TransactionRepository) UpdateTransaction(ctx context.Context, t model.Transaction) error {
	var price any
	if t.Price != nil {
		price = *t.Price
	}

	result, err := r.getQuerier().ExecContext(ctx, `
		UPDATE "transaction"
		SET type = ?, ticker = ?, date = ?, quantity = ?, price = ?, amount = ?, notes = ?
		WHERE id = ?
	`,
		string(t.Type),
		t.Ticker,
		formatDate(t.Date),
		t.Quantity,
		price,
		t.Amount,
		t.Notes,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return expectOneRow(result, apperrors.ErrTransactionNotFound)
}

// DeleteTransaction removes a transaction by its ID.
// Returns ErrTransactionNotFound if no record with the given ID exists.
func (r *TransactionRepository) DeleteTransaction(ctx context.Context, transactionID string) error {
	result, err := r.getQuerier().ExecContext(ctx, `DELETE FROM "transaction" WHERE id = ?`, transactionID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectOneRow(result, apperrors.ErrTransactionNotFound)
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
