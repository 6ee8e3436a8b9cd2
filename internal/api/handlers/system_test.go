package handlers_test

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/handlers"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/testutil"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/version"
)

func setupSystemHandler(t *testing.T) (*handlers.SystemHandler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return handlers.NewSystemHandler(testutil.NewTestSystemService(t, db)), db
}

func TestSystemHandler_Health(t *testing.T) {
	t.Run("returns healthy status when database is connected", func(t *testing.T) {
		handler, _ := setupSystemHandler(t)

		w := httptest.NewRecorder()
		handler.Health(w, httptest.NewRequest(http.MethodGet, "/api/system/health", nil))

		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := testutil.DecodeJSON[model.HealthStatus](t, w)
		assert.Equal(t, "healthy", got.Status)
		assert.Equal(t, "connected", got.Database)
		assert.Empty(t, got.Error)
	})

	t.Run("returns 503 when database is disconnected", func(t *testing.T) {
		handler, db := setupSystemHandler(t)
		db.Close()

		w := httptest.NewRecorder()
		handler.Health(w, httptest.NewRequest(http.MethodGet, "/api/system/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	})
}

func TestSystemHandler_Version(t *testing.T) {
	t.Run("returns version information successfully", func(t *testing.T) {
		handler, _ := setupSystemHandler(t)

		w := httptest.NewRecorder()
		handler.Version(w, httptest.NewRequest(http.MethodGet, "/api/system/version", nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := testutil.DecodeJSON[model.VersionInfo](t, w)
		assert.Equal(t, version.Version, got.AppVersion)
		assert.GreaterOrEqual(t, got.DbVersion, int64(1))
	})

	t.Run("returns 500 when the schema version cannot be read", func(t *testing.T) {
		handler, db := setupSystemHandler(t)
		db.Close()

		w := httptest.NewRecorder()
		handler.Version(w, httptest.NewRequest(http.MethodGet, "/api/system/version", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
