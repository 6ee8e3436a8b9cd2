package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/testutil"
)

// TestPriceService_RefreshPrices tests fetching closes from the price provider.
//
// WHY: A single failing ticker must not cost every other ticker its prices,
// and a refresh must only ask for days not already stored.
func TestPriceService_RefreshPrices(t *testing.T) {
	ctx := context.Background()

	t.Run("stores closes for every traded ticker", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		mock := testutil.NewMockYahooClient()
		svc := testutil.NewTestPriceService(t, db, mock)
		p := testutil.NewPortfolio().Build(t, db)
		testutil.NewTransaction(p.ID).Buy("AAPL", 1, 100).On(testutil.DaysAgo(30)).Build(t, db)
		testutil.NewTransaction(p.ID).Buy("MSFT", 1, 100).On(testutil.DaysAgo(30)).Build(t, db)

		// Execute
		result, err := svc.RefreshPrices(ctx, nil)

		// Assert
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 2, result.TotalUpdated)
		assert.Zero(t, result.TotalErrors)
		require.NotEmpty(t, result.Updated)
		assert.Equal(t, "AAPL", result.Updated[0].Ticker)
		assert.Equal(t, 5, result.Updated[0].PricesAdded)
		assert.Equal(t, 2, mock.QueryCount())
		testutil.AssertRowCount(t, db, "price", 10)
	})

	t.Run("records per-ticker failures without aborting", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		mock := testutil.NewMockYahooClient().WithSymbolError("BAD", errors.New("symbol delisted"))
		svc := testutil.NewTestPriceService(t, db, mock)

		result, err := svc.RefreshPrices(ctx, []string{"good", "BAD", "GOOD"})
		require.NoError(t, err)
		require.Equal(t, 1, result.TotalUpdated)
		require.Equal(t, 1, result.TotalErrors)
		assert.Equal(t, "BAD", result.Errors[0].Ticker)
		assert.True(t, result.Success, "partial success counts as success")
	})

	t.Run("second refresh adds nothing new", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		mock := testutil.NewMockYahooClient()
		svc := testutil.NewTestPriceService(t, db, mock)

		_, err := svc.RefreshPrices(ctx, []string{"AAPL"})
		require.NoError(t, err, "first refresh")
		result, err := svc.RefreshPrices(ctx, []string{"AAPL"})
		require.NoError(t, err, "second refresh")
		require.NotEmpty(t, result.Updated)
		assert.Zero(t, result.Updated[0].PricesAdded)
		testutil.AssertRowCount(t, db, "price", 5)
	})

	t.Run("no provider configured", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestPriceService(t, db, nil)

		_, err := svc.RefreshPrices(ctx, []string{"AAPL"})
		assert.ErrorIs(t, err, apperrors.ErrFailedToRefreshPrices)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestPriceService(t, db, testutil.NewMockYahooClient())

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := svc.RefreshPrices(cctx, []string{"AAPL"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// TestPriceService_StorePrices tests manual price entry.
//
// WHY: Manual prices feed valuation directly; a zero or negative close would
// silently zero out a position.
func TestPriceService_StorePrices(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestPriceService(t, db, nil)

	t.Run("validates every entry", func(t *testing.T) {
		_, err := svc.StorePrices(ctx, []model.PricePoint{
			{Ticker: "AAPL", Date: testutil.Date(t, "2023-01-02"), Price: 0},
			{Ticker: "", Date: testutil.Date(t, "2023-01-02"), Price: 10},
		})

		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Fields, 2)
		testutil.AssertRowCount(t, db, "price", 0)
	})

	t.Run("stores and reads back", func(t *testing.T) {
		added, err := svc.StorePrices(ctx, []model.PricePoint{
			{Ticker: "aapl", Date: testutil.Date(t, "2023-01-02"), Price: 125},
			{Ticker: "AAPL", Date: testutil.Date(t, "2023-01-03"), Price: 126},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, added)

		prices, err := svc.GetPrices(ctx, "AAPL", testutil.Date(t, "2023-01-01"), testutil.Date(t, "2023-01-31"))
		require.NoError(t, err)
		require.Len(t, prices, 2)
		assert.InDelta(t, 126, prices[1].Price, tolerance)

		latest, err := svc.LatestPrice(ctx, "AAPL", testutil.Date(t, "2023-06-01"))
		require.NoError(t, err)
		assert.InDelta(t, 126, latest.Price, tolerance)
	})

	t.Run("no price before date", func(t *testing.T) {
		_, err := svc.LatestPrice(ctx, "AAPL", testutil.Date(t, "2022-01-01"))
		assert.ErrorIs(t, err, apperrors.ErrPriceNotFound)
	})
}
