package ledgerfeed

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reprice/internal/ledger"
	"reprice/internal/types"
)

func newFeedStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCompetitorFeed(t *testing.T) {
	ctx := context.Background()

	t.Run("Serves Quotes In Lookback", func(t *testing.T) {
		store := newFeedStore(t)
		require.NoError(t, store.RecordCompetitorPrices(ctx, "P1001", []types.CompetitorPriceRecord{
			{Competitor: "ShopA", Price: 18.99, Availability: true, Confidence: 0.9, ScrapedAt: time.Now().Add(-time.Hour)},
		}))

		feed := NewCompetitorFeed(store)
		records, err := feed.Fetch(ctx, "P1001")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "ShopA", records[0].Competitor)
	})

	t.Run("No Quotes Means Source Missing", func(t *testing.T) {
		store := newFeedStore(t)
		// a quote older than the lookback does not count
		require.NoError(t, store.RecordCompetitorPrices(ctx, "P1001", []types.CompetitorPriceRecord{
			{Competitor: "ShopA", Price: 18.99, ScrapedAt: time.Now().Add(-100 * time.Hour)},
		}))

		feed := NewCompetitorFeed(store)
		_, err := feed.Fetch(ctx, "P1001")
		assert.Error(t, err)
	})
}

func TestSalesFeed(t *testing.T) {
	ctx := context.Background()
	store := newFeedStore(t)
	require.NoError(t, store.RecordSales(ctx, "P1001", []types.SaleRecord{
		{Quantity: 2, Price: 17.99, Timestamp: time.Now().Add(-time.Hour)},
		{Quantity: 1, Price: 17.99, Timestamp: time.Now().Add(-40 * 24 * time.Hour)},
	}))

	feed := NewSalesFeed(store)
	records, err := feed.Fetch(ctx, "P1001", 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Quantity)
}

func TestInventoryFeed(t *testing.T) {
	ctx := context.Background()

	t.Run("Serves Snapshot", func(t *testing.T) {
		store := newFeedStore(t)
		require.NoError(t, store.SaveProduct(ctx, types.Product{
			ID: "P1001", Name: "Wireless Mouse", BasePrice: 15.99,
			CurrentPrice: 17.99, CostPrice: 10.00, IsActive: true,
		}))
		require.NoError(t, store.UpsertInventory(ctx, "P1001", types.InventorySnapshot{
			StockLevel: 80, ReorderPoint: 30, MaxStock: 200,
		}))

		feed := NewInventoryFeed(store)
		snap, err := feed.Fetch(ctx, "P1001")
		require.NoError(t, err)
		assert.Equal(t, 80, snap.StockLevel)
		assert.Equal(t, 200, snap.MaxStock)
	})

	t.Run("Falls Back To Product Stock", func(t *testing.T) {
		store := newFeedStore(t)
		require.NoError(t, store.SaveProduct(ctx, types.Product{
			ID: "P1001", Name: "Wireless Mouse", BasePrice: 15.99,
			CurrentPrice: 17.99, CostPrice: 10.00, StockLevel: 55, IsActive: true,
		}))

		feed := NewInventoryFeed(store)
		snap, err := feed.Fetch(ctx, "P1001")
		require.NoError(t, err)
		assert.Equal(t, 55, snap.StockLevel)
		assert.Equal(t, 0, snap.MaxStock)
	})

	t.Run("Unknown Product Errors", func(t *testing.T) {
		store := newFeedStore(t)
		feed := NewInventoryFeed(store)
		_, err := feed.Fetch(ctx, "P9999")
		assert.Error(t, err)
	})
}
