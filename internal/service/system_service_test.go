package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/testutil"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/version"
)

func TestSystemService_CheckHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy database", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSystemService(t, db)

		status := svc.CheckHealth(ctx)
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "connected", status.Database)
	})

	t.Run("closed database", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSystemService(t, db)
		db.Close()

		status := svc.CheckHealth(ctx)
		assert.Equal(t, "unhealthy", status.Status)
		assert.NotEmpty(t, status.Error)
	})
}

func TestSystemService_GetVersionInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("reports build and schema versions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSystemService(t, db)

		info, err := svc.GetVersionInfo(ctx)
		require.NoError(t, err)
		assert.Equal(t, version.Version, info.AppVersion)
		assert.GreaterOrEqual(t, info.DbVersion, int64(1), "migrated schema")
		enabled, ok := info.Features["price_refresh"]
		assert.True(t, ok, "price_refresh reported")
		assert.False(t, enabled, "price_refresh disabled")
	})

	t.Run("closed database", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSystemService(t, db)
		db.Close()

		_, err := svc.GetVersionInfo(ctx)
		assert.ErrorIs(t, err, apperrors.ErrFailedToGetVersionInfo)
	})
}
