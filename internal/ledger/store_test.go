package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reprice/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testProduct() types.Product {
	return types.Product{
		ID:           "P1001",
		Name:         "Wireless Mouse",
		Category:     "electronics",
		BasePrice:    15.99,
		CurrentPrice: 17.99,
		CostPrice:    10.00,
		StockLevel:   120,
		IsActive:     true,
		UpdatedAt:    time.Now(),
	}
}

func testDecision(id string, status types.DecisionStatus) types.Decision {
	return types.Decision{
		ID:           id,
		ProductID:    "P1001",
		OldPrice:     17.99,
		NewPrice:     18.49,
		ChangeReason: "demand-driven increase",
		Confidence:   0.8,
		ReasoningChain: []types.ReasoningStep{
			{Factor: "demand", Observation: "demand_score=0.850", Weight: 0.15, Contribution: 0.5},
		},
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func TestStore_Products(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("Save And Fetch", func(t *testing.T) {
		require.NoError(t, store.SaveProduct(ctx, testProduct()))
		p, err := store.Product(ctx, "P1001")
		require.NoError(t, err)
		assert.Equal(t, "Wireless Mouse", p.Name)
		assert.InDelta(t, 17.99, p.CurrentPrice, 1e-9)
	})

	t.Run("Missing Product Is ErrNotFound", func(t *testing.T) {
		_, err := store.Product(ctx, "P9999")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Seed Skips Existing", func(t *testing.T) {
		fresh := testProduct()
		fresh.ID = "P1002"
		added, err := store.SeedProducts(ctx, []types.Product{testProduct(), fresh})
		require.NoError(t, err)
		assert.Equal(t, 1, added)

		active, err := store.ActiveProducts(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 2)
	})
}

func TestStore_Decisions(t *testing.T) {
	ctx := context.Background()

	t.Run("Append And History Newest First", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveProduct(ctx, testProduct()))

		first := testDecision("d-1", types.StatusApplied)
		first.CreatedAt = time.Now().Add(-2 * time.Hour)
		second := testDecision("d-2", types.StatusApplied)
		second.CreatedAt = time.Now().Add(-time.Hour)
		require.NoError(t, store.AppendDecision(ctx, first))
		require.NoError(t, store.AppendDecision(ctx, second))

		history, err := store.History(ctx, "P1001", time.Time{}, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "d-2", history[0].ID)
		assert.Equal(t, "d-1", history[1].ID)
		assert.Len(t, history[0].ReasoningChain, 1)
	})

	t.Run("Append Rejects Duplicate ID", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.AppendDecision(ctx, testDecision("d-1", types.StatusProposed)))
		err := store.AppendDecision(ctx, testDecision("d-1", types.StatusProposed))
		var pe *PersistenceError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("Commit Moves Price And Appends Atomically", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveProduct(ctx, testProduct()))

		require.NoError(t, store.CommitDecision(ctx, testDecision("d-1", types.StatusProposed), 0))

		p, err := store.Product(ctx, "P1001")
		require.NoError(t, err)
		assert.InDelta(t, 18.49, p.CurrentPrice, 1e-9)

		d, err := store.Decision(ctx, "d-1")
		require.NoError(t, err)
		assert.Equal(t, types.StatusApplied, d.Status)
	})

	t.Run("Commit Without Product Fails And Keeps Nothing", func(t *testing.T) {
		store := newTestStore(t)
		err := store.CommitDecision(ctx, testDecision("d-1", types.StatusProposed), 0)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.Decision(ctx, "d-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Applied Decision Is Immutable", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveProduct(ctx, testProduct()))
		require.NoError(t, store.CommitDecision(ctx, testDecision("d-1", types.StatusProposed), 0))

		assert.ErrorIs(t, store.RejectDecision(ctx, "d-1", "late regret"), ErrDecisionImmutable)
		assert.ErrorIs(t, store.CommitDecision(ctx, testDecision("d-1", types.StatusProposed), 0), ErrDecisionImmutable)
	})

	t.Run("Propose Then Reject", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveProduct(ctx, testProduct()))
		require.NoError(t, store.ProposeDecision(ctx, testDecision("d-1", types.StatusProposed), 0))

		pending, err := store.PendingDecisions(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		require.NoError(t, store.RejectDecision(ctx, "d-1", "operator override"))
		pending, err = store.PendingDecisions(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)

		// rejection never touches the price
		p, err := store.Product(ctx, "P1001")
		require.NoError(t, err)
		assert.InDelta(t, 17.99, p.CurrentPrice, 1e-9)
	})

	t.Run("Reject Unknown Decision", func(t *testing.T) {
		store := newTestStore(t)
		assert.ErrorIs(t, store.RejectDecision(ctx, "ghost", "x"), ErrNotFound)
	})
}

func TestStore_Feedback(t *testing.T) {
	ctx := context.Background()

	t.Run("Latest Unconsumed", func(t *testing.T) {
		store := newTestStore(t)
		older := types.FeedbackEntry{ProductID: "P1001", DecisionID: "d-1", Adjustment: 0.1, CreatedAt: time.Now().Add(-2 * time.Hour)}
		newer := types.FeedbackEntry{ProductID: "P1001", DecisionID: "d-2", Adjustment: 0.2, CreatedAt: time.Now().Add(-time.Hour)}
		require.NoError(t, store.AppendFeedback(ctx, older))
		require.NoError(t, store.AppendFeedback(ctx, newer))

		fb, err := store.LatestUnconsumedFeedback(ctx, "P1001")
		require.NoError(t, err)
		require.NotNil(t, fb)
		assert.Equal(t, "d-2", fb.DecisionID)
	})

	t.Run("No Feedback Means Nil", func(t *testing.T) {
		store := newTestStore(t)
		fb, err := store.LatestUnconsumedFeedback(ctx, "P1001")
		require.NoError(t, err)
		assert.Nil(t, fb)
	})

	t.Run("Commit Consumes Feedback Once", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveProduct(ctx, testProduct()))
		require.NoError(t, store.AppendFeedback(ctx, types.FeedbackEntry{ProductID: "P1001", DecisionID: "d-0", Adjustment: 0.3, CreatedAt: time.Now()}))

		fb, err := store.LatestUnconsumedFeedback(ctx, "P1001")
		require.NoError(t, err)
		require.NotNil(t, fb)

		require.NoError(t, store.CommitDecision(ctx, testDecision("d-1", types.StatusProposed), fb.ID))

		again, err := store.LatestUnconsumedFeedback(ctx, "P1001")
		require.NoError(t, err)
		assert.Nil(t, again)
	})

	t.Run("Propose Consumes Feedback Too", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveProduct(ctx, testProduct()))
		require.NoError(t, store.AppendFeedback(ctx, types.FeedbackEntry{ProductID: "P1001", DecisionID: "d-0", Adjustment: 0.3, CreatedAt: time.Now()}))

		fb, err := store.LatestUnconsumedFeedback(ctx, "P1001")
		require.NoError(t, err)
		require.NotNil(t, fb)

		require.NoError(t, store.ProposeDecision(ctx, testDecision("d-1", types.StatusProposed), fb.ID))

		again, err := store.LatestUnconsumedFeedback(ctx, "P1001")
		require.NoError(t, err)
		assert.Nil(t, again)
	})

	t.Run("Decisions Due Reflection", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveProduct(ctx, testProduct()))

		old := testDecision("d-old", types.StatusProposed)
		require.NoError(t, store.CommitDecision(ctx, old, 0))
		// push applied_at back past the horizon
		require.NoError(t, store.db.Model(&DecisionModel{}).Where("id = ?", "d-old").
			Update("applied_at", time.Now().Add(-8*24*time.Hour).Unix()).Error)

		fresh := testDecision("d-new", types.StatusProposed)
		require.NoError(t, store.CommitDecision(ctx, fresh, 0))

		due, err := store.DecisionsDueReflection(ctx, 7*24*time.Hour, time.Now())
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "d-old", due[0].ID)

		// once feedback exists the decision drops out
		require.NoError(t, store.AppendFeedback(ctx, types.FeedbackEntry{ProductID: "P1001", DecisionID: "d-old", CreatedAt: time.Now()}))
		due, err = store.DecisionsDueReflection(ctx, 7*24*time.Hour, time.Now())
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}

func TestStore_Signals(t *testing.T) {
	ctx := context.Background()

	t.Run("Competitor Prices Roundtrip", func(t *testing.T) {
		store := newTestStore(t)
		now := time.Now().Truncate(time.Second)
		records := []types.CompetitorPriceRecord{
			{Competitor: "ShopA", Price: 18.99, Availability: true, Confidence: 0.9, ScrapedAt: now},
			{Competitor: "ShopB", Price: 19.99, Availability: true, Confidence: 1.0, ScrapedAt: now},
		}
		require.NoError(t, store.RecordCompetitorPrices(ctx, "P1001", records))

		got, err := store.CompetitorPricesSince(ctx, "P1001", now.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "ShopA", got[0].Competitor)

		// lookback excludes old rows
		got, err = store.CompetitorPricesSince(ctx, "P1001", now.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Sales Window Query", func(t *testing.T) {
		store := newTestStore(t)
		now := time.Now().Truncate(time.Second)
		require.NoError(t, store.RecordSales(ctx, "P1001", []types.SaleRecord{
			{Quantity: 2, Price: 17.99, Timestamp: now.Add(-time.Hour)},
			{Quantity: 1, Price: 17.99, Timestamp: now.Add(-40 * 24 * time.Hour)},
		}))

		got, err := store.SalesBetween(ctx, "P1001", now.Add(-30*24*time.Hour), now)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 2, got[0].Quantity)
		// revenue derived when omitted
		assert.InDelta(t, 35.98, got[0].Revenue, 1e-9)
	})

	t.Run("Inventory Upsert Syncs Product Stock", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveProduct(ctx, testProduct()))
		require.NoError(t, store.UpsertInventory(ctx, "P1001", types.InventorySnapshot{StockLevel: 80, ReorderPoint: 30, MaxStock: 200}))

		snap, err := store.Inventory(ctx, "P1001")
		require.NoError(t, err)
		assert.Equal(t, 80, snap.StockLevel)
		assert.Equal(t, 30, snap.ReorderPoint)

		p, err := store.Product(ctx, "P1001")
		require.NoError(t, err)
		assert.Equal(t, 80, p.StockLevel)
	})

	t.Run("Missing Inventory Is ErrNotFound", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.Inventory(ctx, "P1001")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
