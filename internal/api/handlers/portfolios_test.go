package handlers_test

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/handlers"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/response"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/testutil"
)

type errorBody struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details"`
}

func setupPortfolioHandler(t *testing.T) (*handlers.PortfolioHandler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svcs := testutil.NewTestServices(t, db, nil)
	return handlers.NewPortfolioHandler(svcs.Portfolio, svcs.Snapshot), db
}

func withID(id string) map[string]string {
	return map[string]string{"uuid": id}
}

// TestPortfolioHandler_Portfolios tests the GET /api/portfolio endpoint.
func TestPortfolioHandler_Portfolios(t *testing.T) {
	t.Run("returns 200 with empty array", func(t *testing.T) {
		handler, _ := setupPortfolioHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
		w := httptest.NewRecorder()
		handler.Portfolios(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Empty(t, testutil.DecodeJSON[[]model.Portfolio](t, w))
	})

	t.Run("archived portfolios only with include_archived", func(t *testing.T) {
		handler, db := setupPortfolioHandler(t)
		testutil.CreatePortfolio(t, db, "Active")
		testutil.CreateArchivedPortfolio(t, db, "Old")

		w := httptest.NewRecorder()
		handler.Portfolios(w, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))
		assert.Len(t, testutil.DecodeJSON[[]model.Portfolio](t, w), 1, "active only")

		w = httptest.NewRecorder()
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/portfolio", map[string]string{"include_archived": "true"})
		handler.Portfolios(w, req)
		assert.Len(t, testutil.DecodeJSON[[]model.Portfolio](t, w), 2)
	})

	t.Run("returns 500 on database error", func(t *testing.T) {
		handler, db := setupPortfolioHandler(t)
		db.Close()

		w := httptest.NewRecorder()
		handler.Portfolios(w, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestPortfolioHandler_CRUD(t *testing.T) {
	t.Run("creates an IRA portfolio", func(t *testing.T) {
		handler, _ := setupPortfolioHandler(t)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/portfolio", nil, map[string]any{
			"name":        "Retirement",
			"accountType": "ira",
		})
		w := httptest.NewRecorder()
		handler.CreatePortfolio(w, req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		p := testutil.DecodeJSON[model.Portfolio](t, w)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, "Retirement", p.Name)
		assert.Equal(t, model.AccountIRA, p.AccountType)
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		handler, _ := setupPortfolioHandler(t)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/portfolio", nil, map[string]any{
			"name":        " ",
			"accountType": "roth",
		})
		w := httptest.NewRecorder()
		handler.CreatePortfolio(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		body := testutil.DecodeJSON[errorBody](t, w)
		assert.Contains(t, body.Details, "name")
		assert.Contains(t, body.Details, "accountType")
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		handler, _ := setupPortfolioHandler(t)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/portfolio", nil, map[string]any{"nmae": "typo"})
		w := httptest.NewRecorder()
		handler.CreatePortfolio(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("updates then deletes", func(t *testing.T) {
		handler, db := setupPortfolioHandler(t)
		p := testutil.CreatePortfolio(t, db, "Before")

		req := testutil.NewJSONRequest(t, http.MethodPut, "/api/portfolio/"+p.ID, withID(p.ID), map[string]any{
			"name":        "After",
			"description": "renamed",
		})
		w := httptest.NewRecorder()
		handler.UpdatePortfolio(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := testutil.DecodeJSON[model.Portfolio](t, w)
		assert.Equal(t, "After", got.Name)
		assert.Equal(t, "renamed", got.Description)

		w = httptest.NewRecorder()
		handler.DeletePortfolio(w, testutil.NewRequestWithURLParams(http.MethodDelete, "/api/portfolio/"+p.ID, withID(p.ID)))
		require.Equal(t, http.StatusNoContent, w.Code)

		w = httptest.NewRecorder()
		handler.Portfolio(w, testutil.NewRequestWithURLParams(http.MethodGet, "/api/portfolio/"+p.ID, withID(p.ID)))
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "portfolio not found", testutil.DecodeJSON[errorBody](t, w).Error)
	})

	t.Run("delete of unknown portfolio is 404", func(t *testing.T) {
		handler, _ := setupPortfolioHandler(t)
		id := testutil.MakeID()

		w := httptest.NewRecorder()
		handler.DeletePortfolio(w, testutil.NewRequestWithURLParams(http.MethodDelete, "/api/portfolio/"+id, withID(id)))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPortfolioHandler_Recompute(t *testing.T) {
	t.Run("replays cash and holdings", func(t *testing.T) {
		handler, db := setupPortfolioHandler(t)
		p := testutil.CreatePortfolio(t, db, "Ledger")
		testutil.NewTransaction(p.ID).Deposit(1000).On("2023-01-02").Build(t, db)
		testutil.NewTransaction(p.ID).Buy("AAPL", 10, 50).On("2023-01-03").Build(t, db)

		w := httptest.NewRecorder()
		handler.Recompute(w, testutil.NewRequestWithURLParams(http.MethodPost, "/api/portfolio/"+p.ID+"/recompute", withID(p.ID)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		agg := testutil.DecodeJSON[model.Aggregate](t, w)
		assert.InDelta(t, 500, agg.CashBalance, 1e-9)
		require.Len(t, agg.Holdings, 1)
		assert.Equal(t, "AAPL", agg.Holdings[0].Ticker)
		assert.InDelta(t, 10, agg.Holdings[0].Quantity, 1e-9)

		w = httptest.NewRecorder()
		handler.Holdings(w, testutil.NewRequestWithURLParams(http.MethodGet, "/api/portfolio/"+p.ID+"/holdings", withID(p.ID)))
		stored := testutil.DecodeJSON[[]model.Holding](t, w)
		require.Len(t, stored, 1)
		assert.InDelta(t, 500, stored[0].CostBasis, 1e-9)
	})

	t.Run("oversold ledger is 422 with details", func(t *testing.T) {
		handler, db := setupPortfolioHandler(t)
		p := testutil.CreatePortfolio(t, db, "Oversold")
		testutil.NewTransaction(p.ID).Buy("AAPL", 5, 100).On("2023-01-03").Build(t, db)
		testutil.NewTransaction(p.ID).Sell("AAPL", 8, 110).On("2023-02-01").Build(t, db)

		w := httptest.NewRecorder()
		handler.Recompute(w, testutil.NewRequestWithURLParams(http.MethodPost, "/api/portfolio/"+p.ID+"/recompute", withID(p.ID)))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

		body := testutil.DecodeJSON[struct {
			Details response.InsufficientLotsDetails `json:"details"`
		}](t, w)
		assert.Equal(t, response.InsufficientLotsDetails{
			Ticker: "AAPL", Date: "2023-02-01", Requested: 8, Available: 5,
		}, body.Details)
	})
}

func TestPortfolioHandler_Value(t *testing.T) {
	t.Run("values holdings and cash on a date", func(t *testing.T) {
		handler, db := setupPortfolioHandler(t)
		p := testutil.CreatePortfolio(t, db, "Valued")
		testutil.NewTransaction(p.ID).Deposit(1500).On("2023-01-02").Build(t, db)
		testutil.NewTransaction(p.ID).Buy("AAPL", 10, 100).On("2023-01-03").Build(t, db)
		testutil.NewPrice("AAPL").On("2023-01-03").At(110).Build(t, db)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/portfolio/"+p.ID+"/value", map[string]string{"date": "2023-01-03"})
		req = testutil.WithURLParams(req, withID(p.ID))
		w := httptest.NewRecorder()
		handler.Value(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		v := testutil.DecodeJSON[model.PortfolioValue](t, w)
		assert.InDelta(t, 500, v.CashBalance, 1e-9)
		assert.InDelta(t, 1100, v.HoldingsValue, 1e-9)
		assert.InDelta(t, 1600, v.TotalValue, 1e-9)
		assert.InDelta(t, 100, v.Unrealized, 1e-9)
		assert.Empty(t, v.Warnings)
	})

	t.Run("missing price is a warning, not an error", func(t *testing.T) {
		handler, db := setupPortfolioHandler(t)
		p := testutil.CreatePortfolio(t, db, "Unpriced")
		testutil.NewTransaction(p.ID).Buy("MSFT", 2, 250).On("2023-01-03").Build(t, db)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/portfolio/"+p.ID+"/value", map[string]string{"date": "2023-01-10"})
		w := httptest.NewRecorder()
		handler.Value(w, testutil.WithURLParams(req, withID(p.ID)))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.NotEmpty(t, testutil.DecodeJSON[model.PortfolioValue](t, w).Warnings, "missing-price warning")
	})

	t.Run("malformed date is 400", func(t *testing.T) {
		handler, db := setupPortfolioHandler(t)
		p := testutil.CreatePortfolio(t, db, "Dates")

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/portfolio/"+p.ID+"/value", map[string]string{"date": "03/01/2023"})
		w := httptest.NewRecorder()
		handler.Value(w, testutil.WithURLParams(req, withID(p.ID)))

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, testutil.DecodeJSON[errorBody](t, w).Details, "date")
	})
}

func TestPortfolioHandler_Lots(t *testing.T) {
	handler, db := setupPortfolioHandler(t)
	p := testutil.CreatePortfolio(t, db, "Lots")
	testutil.NewTransaction(p.ID).Buy("AAPL", 10, 100).On("2023-01-03").Build(t, db)
	second := testutil.NewTransaction(p.ID).Buy("AAPL", 5, 120).On("2023-02-01").Build(t, db)
	testutil.NewTransaction(p.ID).Buy("MSFT", 1, 250).On("2023-02-01").Build(t, db)
	testutil.NewTransaction(p.ID).Sell("AAPL", 12, 130).On("2023-03-01").Build(t, db)

	t.Run("FIFO leaves the tail of the second lot", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/portfolio/"+p.ID+"/lots", map[string]string{"ticker": "aapl"})
		w := httptest.NewRecorder()
		handler.Lots(w, testutil.WithURLParams(req, withID(p.ID)))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		lots := testutil.DecodeJSON[[]model.Lot](t, w)
		require.Len(t, lots, 1)
		assert.Equal(t, second.ID, lots[0].TransactionID)
		assert.InDelta(t, 3, lots[0].RemainingQuantity, 1e-9)
		assert.InDelta(t, 120, lots[0].CostPerShare, 1e-9)
	})

	t.Run("no ticker returns every open lot", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Lots(w, testutil.NewRequestWithURLParams(http.MethodGet, "/api/portfolio/"+p.ID+"/lots", withID(p.ID)))

		assert.Len(t, testutil.DecodeJSON[[]model.Lot](t, w), 2)
	})
}

func TestPortfolioHandler_Materialize(t *testing.T) {
	handler, db := setupPortfolioHandler(t)
	p := testutil.CreatePortfolio(t, db, "Snapshots")
	testutil.NewTransaction(p.ID).Deposit(1000).On(testutil.DaysAgo(3)).Build(t, db)

	w := httptest.NewRecorder()
	handler.Materialize(w, testutil.NewRequestWithURLParams(http.MethodPost, "/api/portfolio/"+p.ID+"/snapshots", withID(p.ID)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := testutil.DecodeJSON[handlers.MaterializeResponse](t, w)
	assert.Equal(t, p.ID, got.PortfolioID)
	assert.GreaterOrEqual(t, got.Snapshots, 1)
}
