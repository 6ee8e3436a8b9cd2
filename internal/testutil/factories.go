package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// PortfolioBuilder provides a fluent interface for creating test portfolios.
//
// Example usage:
//
//	// Simple creation with defaults
//	portfolio := testutil.NewPortfolio().Build(t, db)
//
//	// Customized portfolio
//	portfolio := testutil.NewPortfolio().
//	    WithName("Retirement").
//	    IRA().
//	    Build(t, db)
type PortfolioBuilder struct {
	ID          string
	Name        string
	Description string
	AccountType model.AccountType
	IsArchived  bool
}

// NewPortfolio creates a PortfolioBuilder with sensible defaults.
func NewPortfolio() *PortfolioBuilder {
	return &PortfolioBuilder{
		ID:          MakeID(),
		Name:        MakePortfolioName("Test Portfolio"),
		Description: "Test description",
		AccountType: model.AccountTaxable,
	}
}

// WithID sets a custom ID.
func (b *PortfolioBuilder) WithID(id string) *PortfolioBuilder {
	b.ID = id
	return b
}

// WithName sets a custom name.
func (b *PortfolioBuilder) WithName(name string) *PortfolioBuilder {
	b.Name = name
	return b
}

// WithDescription sets a custom description.
func (b *PortfolioBuilder) WithDescription(desc string) *PortfolioBuilder {
	b.Description = desc
	return b
}

// IRA makes the portfolio a tax-advantaged account.
func (b *PortfolioBuilder) IRA() *PortfolioBuilder {
	b.AccountType = model.AccountIRA
	return b
}

// Archived marks the portfolio as archived.
func (b *PortfolioBuilder) Archived() *PortfolioBuilder {
	b.IsArchived = true
	return b
}

// Build creates the portfolio in the database and returns it.
func (b *PortfolioBuilder) Build(t *testing.T, db *sql.DB) model.Portfolio {
	t.Helper()

	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO portfolio (id, name, description, account_type, is_archived, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.ID, b.Name, b.Description, string(b.AccountType), b.IsArchived, now.Format(time.RFC3339))
	require.NoError(t, err, "create test portfolio")

	return model.Portfolio{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		AccountType: b.AccountType,
		IsArchived:  b.IsArchived,
		CreatedAt:   now,
	}
}

// CreatePortfolio creates a portfolio with the given name and default values.
//
// Example usage:
//
//	portfolio := testutil.CreatePortfolio(t, db, "My Portfolio")
func CreatePortfolio(t *testing.T, db *sql.DB, name string) model.Portfolio {
	t.Helper()
	return NewPortfolio().WithName(name).Build(t, db)
}

// CreatePortfolios creates multiple portfolios with unique names.
func CreatePortfolios(t *testing.T, db *sql.DB, count int) []model.Portfolio {
	t.Helper()

	portfolios := make([]model.Portfolio, count)
	for i := range count {
		portfolios[i] = NewPortfolio().Build(t, db)
	}
	return portfolios
}

// CreateArchivedPortfolio creates an archived portfolio.
func CreateArchivedPortfolio(t *testing.T, db *sql.DB, name string) model.Portfolio {
	t.Helper()
	return NewPortfolio().WithName(name).Archived().Build(t, db)
}

// TransactionBuilder provides a fluent interface for writing ledger entries
// straight into the transaction table. It bypasses validation and the
// aggregate recompute, so tests can also build ledgers the services would
// reject.
//
// Example usage:
//
//	testutil.NewTransaction(portfolio.ID).Buy("AAPL", 10, 150).On("2023-01-01").Build(t, db)
//	testutil.NewTransaction(portfolio.ID).Deposit(5000).On("2023-01-01").Build(t, db)
type TransactionBuilder struct {
	ID          string
	PortfolioID string
	Type        model.TransactionType
	Ticker      string
	Date        time.Time
	Quantity    float64
	Price       *float64
	Amount      float64
	Notes       string
}

// NewTransaction creates a TransactionBuilder for a $1000 deposit today.
func NewTransaction(portfolioID string) *TransactionBuilder {
	return &TransactionBuilder{
		ID:          MakeID(),
		PortfolioID: portfolioID,
		Type:        model.TransactionCash,
		Date:        Today(),
		Amount:      1000,
	}
}

// Buy makes the entry a purchase of qty shares at price, paid from cash.
func (b *TransactionBuilder) Buy(ticker string, qty, price float64) *TransactionBuilder {
	b.Type = model.TransactionBuy
	b.Ticker = ticker
	b.Quantity = qty
	b.Price = model.Float64Ptr(price)
	b.Amount = -qty * price
	return b
}

// Sell makes the entry a sale of qty shares at price.
func (b *TransactionBuilder) Sell(ticker string, qty, price float64) *TransactionBuilder {
	b.Type = model.TransactionSell
	b.Ticker = ticker
	b.Quantity = -qty
	b.Price = model.Float64Ptr(price)
	b.Amount = qty * price
	return b
}

// Dividend makes the entry a cash dividend of amount.
func (b *TransactionBuilder) Dividend(ticker string, amount float64) *TransactionBuilder {
	b.Type = model.TransactionDividend
	b.Ticker = ticker
	b.Quantity = 0
	b.Price = nil
	b.Amount = amount
	return b
}

// Reinvest makes the entry a dividend reinvested as qty shares at price.
func (b *TransactionBuilder) Reinvest(ticker string, qty, price float64) *TransactionBuilder {
	b.Type = model.TransactionDividendReinvest
	b.Ticker = ticker
	b.Quantity = qty
	b.Price = model.Float64Ptr(price)
	b.Amount = 0
	return b
}

// Deposit makes the entry an external cash deposit.
func (b *TransactionBuilder) Deposit(amount float64) *TransactionBuilder {
	b.Type = model.TransactionCash
	b.Ticker = ""
	b.Quantity = 0
	b.Price = nil
	b.Amount = amount
	return b
}

// Withdraw makes the entry an external cash withdrawal.
func (b *TransactionBuilder) Withdraw(amount float64) *TransactionBuilder {
	return b.Deposit(-amount)
}

// On sets the date from a YYYY-MM-DD string. Panics on malformed input.
func (b *TransactionBuilder) On(date string) *TransactionBuilder {
	d, err := model.ParseDate(date)
	if err != nil {
		panic("testutil: invalid date " + date)
	}
	b.Date = d
	return b
}

// WithNotes sets the notes.
func (b *TransactionBuilder) WithNotes(notes string) *TransactionBuilder {
	b.Notes = notes
	return b
}

// Build appends the transaction to its portfolio's ledger with the next
// insertion sequence number and returns it.
func (b *TransactionBuilder) Build(t *testing.T, db *sql.DB) model.Transaction {
	t.Helper()

	var maxSeq sql.NullInt64
	err := db.QueryRow(`SELECT MAX(seq) FROM "transaction" WHERE portfolio_id = ?`, b.PortfolioID).Scan(&maxSeq)
	require.NoError(t, err, "read transaction sequence")

	tx := model.Transaction{
		ID:          b.ID,
		PortfolioID: b.PortfolioID,
		Seq:         maxSeq.Int64 + 1,
		Type:        b.Type,
		Ticker:      b.Ticker,
		Date:        model.Day(b.Date),
		Quantity:    b.Quantity,
		Price:       b.Price,
		Amount:      b.Amount,
		Notes:       b.Notes,
		CreatedAt:   time.Now().UTC(),
	}

	var price any
	if tx.Price != nil {
		price = *tx.Price
	}
	_, err = db.Exec(`
		INSERT INTO "transaction" (id, portfolio_id, seq, type, ticker, date, quantity, price, amount, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, tx.PortfolioID, tx.Seq, string(tx.Type), tx.Ticker, model.DateKey(tx.Date),
		tx.Quantity, price, tx.Amount, tx.Notes, tx.CreatedAt.Format(time.RFC3339))
	require.NoError(t, err, "create test transaction")
	return tx
}

// PriceBuilder provides a fluent interface for storing daily closes.
//
// Example usage:
//
//	testutil.NewPrice("AAPL").On("2023-01-03").At(125.07).Build(t, db)
//	testutil.NewPrice("AAPL").Daily("2023-01-03", 100, 101, 102).Build(t, db)
type PriceBuilder struct {
	Ticker string
	Source string
	Points []model.PricePoint
	date   time.Time
}

// NewPrice creates a PriceBuilder for ticker with manual source.
func NewPrice(ticker string) *PriceBuilder {
	return &PriceBuilder{Ticker: ticker, Source: "manual", date: Today()}
}

// On sets the date of the next At call.
func (b *PriceBuilder) On(date string) *PriceBuilder {
	d, err := model.ParseDate(date)
	if err != nil {
		panic("testutil: invalid date " + date)
	}
	b.date = d
	return b
}

// At records a close on the current date and moves to the next day.
func (b *PriceBuilder) At(price float64) *PriceBuilder {
	b.Points = append(b.Points, model.PricePoint{Ticker: b.Ticker, Date: b.date, Price: price, Source: b.Source})
	b.date = b.date.AddDate(0, 0, 1)
	return b
}

// Daily records one close per consecutive calendar day starting at start.
func (b *PriceBuilder) Daily(start string, prices ...float64) *PriceBuilder {
	b.On(start)
	for _, p := range prices {
		b.At(p)
	}
	return b
}

// Build stores the closes and returns them.
func (b *PriceBuilder) Build(t *testing.T, db *sql.DB) []model.PricePoint {
	t.Helper()

	for _, p := range b.Points {
		_, err := db.Exec(`
			INSERT INTO price (ticker, date, price, source) VALUES (?, ?, ?, ?)
			ON CONFLICT(ticker, date) DO UPDATE SET price = excluded.price, source = excluded.source
		`, p.Ticker, model.DateKey(p.Date), p.Price, p.Source)
		require.NoError(t, err, "create test price")
	}
	return b.Points
}
