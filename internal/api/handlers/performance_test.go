package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/handlers"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/testutil"
)

func TestPerformanceHandler_Performance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := handlers.NewPerformanceHandler(testutil.NewTestPerformanceService(t, db))
	p := testutil.CreatePortfolio(t, db, "Growth")
	testutil.NewTransaction(p.ID).Deposit(1000).On(testutil.DaysAgo(4)).Build(t, db)

	performance := func(id string, query map[string]string) *httptest.ResponseRecorder {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/portfolio/"+id+"/performance", query)
		w := httptest.NewRecorder()
		handler.Performance(w, testutil.WithURLParams(req, withID(id)))
		return w
	}

	t.Run("defaults to one year clamped to the first transaction", func(t *testing.T) {
		w := performance(p.ID, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := testutil.DecodeJSON[model.PerformanceSeries](t, w)
		assert.Equal(t, p.ID, got.PortfolioID)
		assert.Equal(t, "1y", got.Period)
		assert.Len(t, got.Points, 5, "daily points")
		assert.Zero(t, got.TotalReturn, "cash-only portfolio")
	})

	t.Run("unknown period is 400", func(t *testing.T) {
		w := performance(p.ID, map[string]string{"period": "2w"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		body := testutil.DecodeJSON[errorBody](t, w)
		assert.Contains(t, body.Details, "period")
	})

	t.Run("unknown portfolio is 404", func(t *testing.T) {
		w := performance(testutil.MakeID(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
