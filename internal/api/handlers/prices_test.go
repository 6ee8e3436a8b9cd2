package handlers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/handlers"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/testutil"
)

func TestPriceHandler_StoreAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := handlers.NewPriceHandler(testutil.NewTestPriceService(t, db, nil))

	t.Run("stores manual closes", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/price", nil, map[string]any{
			"prices": []map[string]any{
				{"ticker": "vti", "date": "2023-01-03", "price": 190.5},
				{"ticker": "VTI", "date": "2023-01-04", "price": 191.25},
			},
		})
		w := httptest.NewRecorder()
		handler.StorePrices(w, req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		got := testutil.DecodeJSON[handlers.StoredPricesResponse](t, w)
		assert.Equal(t, 2, got.Stored)
	})

	t.Run("reads a range back", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/price/vti", map[string]string{
			"start": "2023-01-01",
			"end":   "2023-01-31",
		})
		w := httptest.NewRecorder()
		handler.Prices(w, testutil.WithURLParams(req, map[string]string{"ticker": "vti"}))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		points := testutil.DecodeJSON[[]model.PricePoint](t, w)
		require.Len(t, points, 2)
		assert.InDelta(t, 190.5, points[0].Price, 1e-9)
		assert.InDelta(t, 191.25, points[1].Price, 1e-9)
	})

	t.Run("start after end is 400", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/price/VTI", map[string]string{
			"start": "2023-02-01",
			"end":   "2023-01-01",
		})
		w := httptest.NewRecorder()
		handler.Prices(w, testutil.WithURLParams(req, map[string]string{"ticker": "VTI"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed entries are reported by index", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/price", nil, map[string]any{
			"prices": []map[string]any{
				{"ticker": "VTI", "date": "2023-01-05", "price": 192},
				{"ticker": "VTI", "date": "Jan 6", "price": 193},
			},
		})
		w := httptest.NewRecorder()
		handler.StorePrices(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		body := testutil.DecodeJSON[errorBody](t, w)
		assert.Contains(t, body.Details, "prices[1].date")
		testutil.AssertRowCount(t, db, "price", 2)
	})
}

func TestPriceHandler_RefreshPrices(t *testing.T) {
	t.Run("refreshes the requested tickers", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		mock := testutil.NewMockYahooClient()
		handler := handlers.NewPriceHandler(testutil.NewTestPriceService(t, db, mock))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/price/refresh", nil, map[string]any{"tickers": []string{"AAPL"}})
		w := httptest.NewRecorder()
		handler.RefreshPrices(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		result := testutil.DecodeJSON[model.PriceRefreshResult](t, w)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.TotalUpdated)
		assert.Equal(t, 1, mock.QueryCount())
	})

	t.Run("empty body refreshes every traded ticker", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		mock := testutil.NewMockYahooClient()
		handler := handlers.NewPriceHandler(testutil.NewTestPriceService(t, db, mock))
		p := testutil.NewPortfolio().Build(t, db)
		testutil.NewTransaction(p.ID).Buy("MSFT", 1, 250).On(testutil.DaysAgo(30)).Build(t, db)

		w := httptest.NewRecorder()
		handler.RefreshPrices(w, httptest.NewRequest(http.MethodPost, "/api/price/refresh", bytes.NewReader(nil)))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		result := testutil.DecodeJSON[model.PriceRefreshResult](t, w)
		require.Len(t, result.Updated, 1)
		assert.Equal(t, "MSFT", result.Updated[0].Ticker)
	})

	t.Run("no provider is 500", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewPriceHandler(testutil.NewTestPriceService(t, db, nil))

		w := httptest.NewRecorder()
		handler.RefreshPrices(w, httptest.NewRequest(http.MethodPost, "/api/price/refresh", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
