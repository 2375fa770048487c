//go:build integration

// internal/adapters/db/document_repository_integration_test.go
package db_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/inventory-bot/internal/adapters/db"
	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/services"
	"github.com/ammerola/inventory-bot/test/helpers"
)

func TestDocumentRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := helpers.SetupTestDB(t)
	ctx := context.Background()

	t.Run("creates_default_then_round_trips", func(t *testing.T) {
		repo := db.NewDocumentRepository(testDB.Database.SQL(), helpers.TestLogger(), db.WithDocumentName("round_trip"))

		doc, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultLowStockThreshold, doc.Settings.LowStockThreshold)
		assert.Equal(t, int64(1), doc.Version)

		doc.Admins = []int64{1, 2}
		doc.Products = helpers.CreateTestProducts(3)
		require.NoError(t, repo.Save(ctx, doc))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, doc.Admins, got.Admins)
		assert.Equal(t, doc.Products, got.Products)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("stale_writer_is_refused", func(t *testing.T) {
		repo := db.NewDocumentRepository(testDB.Database.SQL(), helpers.TestLogger(), db.WithDocumentName("stale"))

		a, err := repo.Load(ctx)
		require.NoError(t, err)
		b, err := repo.Load(ctx)
		require.NoError(t, err)

		a.Admins = []int64{1}
		require.NoError(t, repo.Save(ctx, a))

		b.Admins = []int64{2}
		assert.ErrorIs(t, repo.Save(ctx, b), domain.ErrStaleDocument)
	})

	t.Run("two_services_share_one_row", func(t *testing.T) {
		name := db.WithDocumentName("shared")
		first := services.NewInventoryService(db.NewDocumentRepository(testDB.Database.SQL(), helpers.TestLogger(), name), helpers.TestLogger())
		second := services.NewInventoryService(db.NewDocumentRepository(testDB.Database.SQL(), helpers.TestLogger(), name), helpers.TestLogger())

		for i := 0; i < 6; i++ {
			svc := first
			if i%2 == 1 {
				svc = second
			}
			added, err := svc.AddAdmin(ctx, int64(100+i))
			require.NoError(t, err, fmt.Sprintf("admin %d", 100+i))
			assert.True(t, added)
		}

		admins, err := second.ListAdmins(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{100, 101, 102, 103, 104, 105}, admins)
	})

	t.Run("health", func(t *testing.T) {
		health := testDB.Database.Health(ctx)
		assert.Equal(t, "healthy", health["status"])
	})
}
