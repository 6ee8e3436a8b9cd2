package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/testutil"
)

func buyInput(ticker, date string, qty, price float64) model.TransactionInput {
	return model.TransactionInput{
		Type: "buy", Ticker: ticker, Date: date,
		Quantity: qty, Price: model.Float64Ptr(price), Amount: -qty * price,
	}
}

func sellInput(ticker, date string, qty, price float64) model.TransactionInput {
	return model.TransactionInput{
		Type: "sell", Ticker: ticker, Date: date,
		Quantity: -qty, Price: model.Float64Ptr(price), Amount: qty * price,
	}
}

func depositInput(date string, amount float64) model.TransactionInput {
	return model.TransactionInput{Type: "cash", Date: date, Amount: amount}
}

// TestTransactionService_CreateTransaction tests appending to the ledger.
//
// WHY: Every write must leave the aggregates equal to a full replay, in the
// same database transaction, and a sell the lots cannot cover must not be
// stored at all.
func TestTransactionService_CreateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id and sequence and recomputes aggregates", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svcs := testutil.NewTestServices(t, db, nil)
		p := testutil.NewPortfolio().Build(t, db)

		// Execute
		first, err := svcs.Transaction.CreateTransaction(ctx, p.ID, depositInput("2023-01-01", 2000))
		require.NoError(t, err)
		second, err := svcs.Transaction.CreateTransaction(ctx, p.ID, buyInput("aapl", "2023-01-02", 10, 150))
		require.NoError(t, err)

		// Assert
		assert.NotEmpty(t, first.ID)
		assert.NotEmpty(t, second.ID)
		assert.Equal(t, int64(1), first.Seq)
		assert.Equal(t, int64(2), second.Seq)
		assert.Equal(t, "AAPL", second.Ticker, "ticker upper-cased")

		portfolio, err := svcs.Portfolio.GetPortfolio(ctx, p.ID)
		require.NoError(t, err)
		assert.InDelta(t, 500, portfolio.CashBalance, tolerance)

		holdings, err := svcs.Portfolio.GetHoldings(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, holdings, 1)
		assert.InDelta(t, 10, holdings[0].Quantity, tolerance)
	})

	t.Run("rejects invalid input with field errors", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		p := testutil.NewPortfolio().Build(t, db)

		_, err := svc.CreateTransaction(ctx, p.ID, model.TransactionInput{Type: "sell", Ticker: "AAPL", Date: "2023-13-01", Quantity: 5})

		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "date")
		assert.Contains(t, verr.Fields, "quantity")
		testutil.AssertRowCount(t, db, `"transaction"`, 0)
	})

	t.Run("rejects a dividend without a ticker", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		p := testutil.NewPortfolio().Build(t, db)

		_, err := svc.CreateTransaction(ctx, p.ID, model.TransactionInput{Type: "dividend", Date: "2023-03-01", Amount: 12.5})

		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "ticker")
		testutil.AssertRowCount(t, db, `"transaction"`, 0)
	})

	t.Run("rolls back a sell the lots cannot cover", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		p := testutil.NewPortfolio().Build(t, db)

		_, err := svc.CreateTransaction(ctx, p.ID, buyInput("AAPL", "2023-01-02", 5, 100))
		require.NoError(t, err, "setup buy")

		_, err = svc.CreateTransaction(ctx, p.ID, sellInput("AAPL", "2023-01-03", 6, 110))

		require.ErrorIs(t, err, apperrors.ErrInsufficientLots)
		testutil.AssertRowCount(t, db, `"transaction"`, 1)
	})

	t.Run("rejects a backdated sell that strands a later one", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		p := testutil.NewPortfolio().Build(t, db)

		_, err := svc.CreateTransaction(ctx, p.ID, buyInput("AAPL", "2023-01-02", 10, 100))
		require.NoError(t, err, "setup buy")
		_, err = svc.CreateTransaction(ctx, p.ID, sellInput("AAPL", "2023-03-01", 10, 120))
		require.NoError(t, err, "setup sell")

		_, err = svc.CreateTransaction(ctx, p.ID, sellInput("AAPL", "2023-02-01", 1, 110))
		assert.ErrorIs(t, err, apperrors.ErrInsufficientLots)
	})

	t.Run("unknown portfolio", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)

		_, err := svc.CreateTransaction(ctx, testutil.MakeID(), depositInput("2023-01-01", 10))
		assert.ErrorIs(t, err, apperrors.ErrPortfolioNotFound)
	})
}

// TestTransactionService_UpdateAndDelete tests edits to existing entries.
//
// WHY: Edits change history, so they must invalidate every snapshot from the
// earlier of the old and new dates and keep the entry's insertion order.
func TestTransactionService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("update keeps identity and invalidates from the earlier date", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svcs := testutil.NewTestServices(t, db, nil)
		p := testutil.NewPortfolio().Build(t, db)

		testutil.NewTransaction(p.ID).Deposit(1000).On(testutil.DaysAgo(20)).Build(t, db)
		buy := testutil.NewTransaction(p.ID).Buy("AAPL", 2, 100).On(testutil.DaysAgo(10)).Build(t, db)
		_, err := svcs.Snapshot.Materialize(ctx, p.ID)
		require.NoError(t, err)
		testutil.AssertRowCount(t, db, "snapshot", 21)

		// Execute: move the buy 5 days earlier
		updated, err := svcs.Transaction.UpdateTransaction(ctx, buy.ID, buyInput("AAPL", testutil.DaysAgo(15), 3, 100))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, buy.ID, updated.ID)
		assert.Equal(t, buy.Seq, updated.Seq)
		// Days 20..16 survive.
		testutil.AssertRowCount(t, db, "snapshot", 5)

		holdings, err := svcs.Portfolio.GetHoldings(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, holdings, 1)
		assert.InDelta(t, 3, holdings[0].Quantity, tolerance)
	})

	t.Run("delete recomputes and reports unknown ids", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svcs := testutil.NewTestServices(t, db, nil)
		p := testutil.NewPortfolio().Build(t, db)

		created, err := svcs.Transaction.CreateTransaction(ctx, p.ID, buyInput("AAPL", "2023-01-02", 5, 100))
		require.NoError(t, err)

		require.NoError(t, svcs.Transaction.DeleteTransaction(ctx, created.ID))
		holdings, err := svcs.Portfolio.GetHoldings(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, holdings)

		err = svcs.Transaction.DeleteTransaction(ctx, created.ID)
		assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
	})

	t.Run("deleting a buy that covers a sell is rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		p := testutil.NewPortfolio().Build(t, db)

		buy, err := svc.CreateTransaction(ctx, p.ID, buyInput("AAPL", "2023-01-02", 5, 100))
		require.NoError(t, err)
		_, err = svc.CreateTransaction(ctx, p.ID, sellInput("AAPL", "2023-01-05", 5, 100))
		require.NoError(t, err)

		err = svc.DeleteTransaction(ctx, buy.ID)
		assert.ErrorIs(t, err, apperrors.ErrInsufficientLots)
		testutil.AssertRowCount(t, db, `"transaction"`, 2)
	})
}

// TestTransactionService_ListTransactions tests cursor pagination.
//
// WHY: Cursors are opaque and signed; walking every page must visit each
// entry exactly once, and a cursor from another portfolio must be refused.
func TestTransactionService_ListTransactions(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestTransactionService(t, db)
	p := testutil.NewPortfolio().Build(t, db)
	other := testutil.NewPortfolio().Build(t, db)

	for range 7 {
		testutil.NewTransaction(p.ID).Deposit(100).On("2023-01-01").Build(t, db)
	}
	testutil.NewTransaction(p.ID).Buy("AAPL", 1, 100).On("2023-01-02").Build(t, db)
	testutil.NewTransaction(other.ID).Deposit(100).On("2023-01-01").Build(t, db)

	t.Run("walks every page once", func(t *testing.T) {
		seen := map[int64]bool{}
		token := ""
		pages := 0
		for {
			page, err := svc.ListTransactions(ctx, p.ID, model.TransactionFilter{}, token, 3)
			require.NoError(t, err)
			pages++
			for _, tx := range page.Transactions {
				assert.False(t, seen[tx.Seq], "sequence %d returned twice", tx.Seq)
				seen[tx.Seq] = true
			}
			if page.NextCursor == "" {
				break
			}
			token = page.NextCursor
		}
		assert.Len(t, seen, 8)
		assert.Equal(t, 3, pages)
	})

	t.Run("filters by type", func(t *testing.T) {
		page, err := svc.ListTransactions(ctx, p.ID, model.TransactionFilter{Type: model.TransactionBuy}, "", 0)
		require.NoError(t, err)
		assert.Len(t, page.Transactions, 1)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("refuses another portfolio's cursor", func(t *testing.T) {
		page, err := svc.ListTransactions(ctx, p.ID, model.TransactionFilter{}, "", 1)
		require.NoError(t, err)

		_, err = svc.ListTransactions(ctx, other.ID, model.TransactionFilter{}, page.NextCursor, 1)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCursor)
	})

	t.Run("refuses a tampered cursor", func(t *testing.T) {
		_, err := svc.ListTransactions(ctx, p.ID, model.TransactionFilter{}, "not-a-cursor", 1)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCursor)
	})
}

// TestTransactionService_ImportTransactions tests bulk import.
//
// WHY: A bulk import is all or nothing. A half-imported statement would leave
// the ledger in a state nobody intended.
func TestTransactionService_ImportTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("imports in order and recomputes once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svcs := testutil.NewTestServices(t, db, nil)
		p := testutil.NewPortfolio().Build(t, db)

		result, err := svcs.Transaction.ImportTransactions(ctx, p.ID, []model.TransactionInput{
			depositInput("2023-01-01", 3000),
			buyInput("AAPL", "2023-01-02", 10, 100),
			sellInput("AAPL", "2023-01-03", 4, 110),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, result.Imported)
		assert.Equal(t, int64(1), result.FirstSeq)
		assert.Equal(t, int64(3), result.LastSeq)

		portfolio, err := svcs.Portfolio.GetPortfolio(ctx, p.ID)
		require.NoError(t, err)
		assert.InDelta(t, 3000-1000+440, portfolio.CashBalance, tolerance)
	})

	t.Run("one invalid entry rejects the batch", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		p := testutil.NewPortfolio().Build(t, db)

		_, err := svc.ImportTransactions(ctx, p.ID, []model.TransactionInput{
			depositInput("2023-01-01", 3000),
			{Type: "transfer", Date: "2023-01-02"},
		})

		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "transactions[1].type")
		testutil.AssertRowCount(t, db, `"transaction"`, 0)
	})

	t.Run("an uncovered sell rejects the batch", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		p := testutil.NewPortfolio().Build(t, db)

		_, err := svc.ImportTransactions(ctx, p.ID, []model.TransactionInput{
			buyInput("AAPL", "2023-01-02", 1, 100),
			sellInput("AAPL", "2023-01-03", 2, 100),
		})
		require.ErrorIs(t, err, apperrors.ErrInsufficientLots)
		testutil.AssertRowCount(t, db, `"transaction"`, 0)
	})

	t.Run("empty batch", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		p := testutil.NewPortfolio().Build(t, db)

		_, err := svc.ImportTransactions(ctx, p.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}
