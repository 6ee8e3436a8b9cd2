package testutil

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/cursor"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/logging"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/repository"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/service"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/yahoo"
)

// TestTaxRates is the rate schedule used by test services: 30% short-term,
// 15% long-term and 10% on dividends, round enough to check by hand.
var TestTaxRates = model.TaxRates{
	ShortTermCapitalGains: 0.30,
	LongTermCapitalGains:  0.15,
	QualifiedDividends:    0.10,
}

// Services bundles every service wired against one database, the way the
// server wires them.
type Services struct {
	Portfolio   *service.PortfolioService
	Transaction *service.TransactionService
	Snapshot    *service.SnapshotService
	Price       *service.PriceService
	Performance *service.PerformanceService
	Tax         *service.TaxService
	System      *service.SystemService
}

// NewTestServices wires all services against db. yahooClient may be nil.
func NewTestServices(t *testing.T, db *sql.DB, yahooClient yahoo.Client) *Services {
	t.Helper()

	logger := logging.Nop()
	portfolioRepo := repository.NewPortfolioRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	priceRepo := repository.NewPriceRepository(db)

	codec, err := cursor.NewCodec("", time.Hour)
	require.NoError(t, err, "cursor codec")

	priceService := service.NewPriceService(priceRepo, transactionRepo, yahooClient, logger)
	portfolioService := service.NewPortfolioService(db, portfolioRepo, transactionRepo, priceService, logger)
	snapshotService := service.NewSnapshotService(db, snapshotRepo, transactionRepo, portfolioRepo, logger)

	return &Services{
		Portfolio:   portfolioService,
		Transaction: service.NewTransactionService(db, transactionRepo, portfolioService, snapshotService, codec, logger),
		Snapshot:    snapshotService,
		Price:       priceService,
		Performance: service.NewPerformanceService(portfolioRepo, transactionRepo, snapshotService, priceService, logger),
		Tax:         service.NewTaxService(portfolioRepo, transactionRepo, priceService, TestTaxRates, logger),
		System:      service.NewSystemService(db, map[string]bool{"price_refresh": yahooClient != nil}),
	}
}

// NewTestPortfolioService creates a PortfolioService backed by db.
func NewTestPortfolioService(t *testing.T, db *sql.DB) *service.PortfolioService {
	t.Helper()
	return NewTestServices(t, db, nil).Portfolio
}

// NewTestTransactionService creates a TransactionService backed by db.
func NewTestTransactionService(t *testing.T, db *sql.DB) *service.TransactionService {
	t.Helper()
	return NewTestServices(t, db, nil).Transaction
}

// NewTestSnapshotService creates a SnapshotService backed by db.
func NewTestSnapshotService(t *testing.T, db *sql.DB) *service.SnapshotService {
	t.Helper()
	return NewTestServices(t, db, nil).Snapshot
}

// NewTestPriceService creates a PriceService backed by db and the given
// price provider, usually a *MockYahooClient.
func NewTestPriceService(t *testing.T, db *sql.DB, yahooClient yahoo.Client) *service.PriceService {
	t.Helper()
	return NewTestServices(t, db, yahooClient).Price
}

// NewTestPerformanceService creates a PerformanceService backed by db.
func NewTestPerformanceService(t *testing.T, db *sql.DB) *service.PerformanceService {
	t.Helper()
	return NewTestServices(t, db, nil).Performance
}

// NewTestTaxService creates a TaxService backed by db using TestTaxRates.
func NewTestTaxService(t *testing.T, db *sql.DB) *service.TaxService {
	t.Helper()
	return NewTestServices(t, db, nil).Tax
}

// NewTestSystemService creates a SystemService backed by db.
func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()
	return NewTestServices(t, db, nil).System
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeTicker generates a unique ticker symbol for testing.
//
// Example usage:
//
//	ticker := testutil.MakeTicker("AAPL")
//	// Returns: "AAPL1A2B"
func MakeTicker(base string) string {
	if base == "" {
		base = "TEST"
	}
	return base + randomAlphanumeric(4)
}

// MakePortfolioName generates a unique portfolio name for testing.
//
// Example usage:
//
//	name := testutil.MakePortfolioName("MyPortfolio")
//	// Returns: "MyPortfolio ABC123"
func MakePortfolioName(base string) string {
	if base == "" {
		base = "Portfolio"
	}
	return base + " " + randomAlphanumeric(6)
}

// Today returns the current UTC calendar date.
func Today() time.Time {
	return model.Day(time.Now())
}

// DaysAgo returns the UTC calendar date n days before today as YYYY-MM-DD.
// Services measure periods from the wall clock, so tests that depend on
// "today" build their ledgers relative to it.
func DaysAgo(n int) string {
	return model.DateKey(Today().AddDate(0, 0, -n))
}

// Date parses a YYYY-MM-DD date and fails the test on error.
func Date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err, "test date %q", s)
	return d
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
