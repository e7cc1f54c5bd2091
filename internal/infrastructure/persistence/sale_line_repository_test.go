package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sellersync/backend/internal/domain/ledger"
	"github.com/sellersync/backend/internal/infrastructure/persistence/models"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SaleLineModel{}))
	return db
}

func newSaleLine(t *testing.T, orderID, itemID string) *ledger.SaleLine {
	t.Helper()
	line, err := ledger.NewSaleLine(orderID, itemID, "sku-1", "Widget", 2,
		decimal.NewFromInt(1000), time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return line
}

func TestSaleLineRepository_UpsertBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts new lines and reports their keys", func(t *testing.T) {
		repo := NewGormSaleLineRepository(setupLedgerTestDB(t))

		lines := []*ledger.SaleLine{
			newSaleLine(t, "2000001", "MLA111"),
			newSaleLine(t, "2000001", "MLA222"),
		}
		inserted, err := repo.UpsertBatch(ctx, lines)
		require.NoError(t, err)
		assert.Len(t, inserted, 2)

		count, err := repo.CountByOrder(ctx, ledger.ChannelMercadoLibre, "2000001")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("skips lines whose key already exists", func(t *testing.T) {
		repo := NewGormSaleLineRepository(setupLedgerTestDB(t))

		_, err := repo.UpsertBatch(ctx, []*ledger.SaleLine{newSaleLine(t, "2000001", "MLA111")})
		require.NoError(t, err)

		// Same key again plus one new line
		inserted, err := repo.UpsertBatch(ctx, []*ledger.SaleLine{
			newSaleLine(t, "2000001", "MLA111"),
			newSaleLine(t, "2000001", "MLA333"),
		})
		require.NoError(t, err)
		require.Len(t, inserted, 1)
		assert.Equal(t, ledger.LineKey{OrderID: "2000001", ItemID: "MLA333"}, inserted[0])

		count, err := repo.CountByOrder(ctx, ledger.ChannelMercadoLibre, "2000001")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("existing line is left untouched on replay", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormSaleLineRepository(db)

		original := newSaleLine(t, "2000001", "MLA111")
		_, err := repo.UpsertBatch(ctx, []*ledger.SaleLine{original})
		require.NoError(t, err)

		replay := newSaleLine(t, "2000001", "MLA111")
		replay.ProductName = "Renamed Widget"
		_, err = repo.UpsertBatch(ctx, []*ledger.SaleLine{replay})
		require.NoError(t, err)

		var model models.SaleLineModel
		require.NoError(t, db.First(&model, "order_id = ? AND item_id = ?", "2000001", "MLA111").Error)
		assert.Equal(t, "Widget", model.ProductName)
		assert.Equal(t, original.ID, model.ID)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		repo := NewGormSaleLineRepository(setupLedgerTestDB(t))
		inserted, err := repo.UpsertBatch(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, inserted)
	})
}

func TestSaleLineRepository_ExistsOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSaleLineRepository(setupLedgerTestDB(t))

	exists, err := repo.ExistsOrder(ctx, ledger.ChannelMercadoLibre, "2000001")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.UpsertBatch(ctx, []*ledger.SaleLine{newSaleLine(t, "2000001", "MLA111")})
	require.NoError(t, err)

	exists, err = repo.ExistsOrder(ctx, ledger.ChannelMercadoLibre, "2000001")
	require.NoError(t, err)
	assert.True(t, exists)

	// Different channel, same order id
	exists, err = repo.ExistsOrder(ctx, "OTHER", "2000001")
	require.NoError(t, err)
	assert.False(t, exists)
}
