package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTraceStore(t *testing.T) *CycleTraceStore {
	t.Helper()
	store, err := NewCycleTraceStore(filepath.Join(t.TempDir(), "traces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCycleTraceStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Append And Recent Newest First", func(t *testing.T) {
		store := newTestTraceStore(t)
		now := time.Now().Truncate(time.Second)
		for i, status := range []string{"applied", "failed"} {
			require.NoError(t, store.Append(ctx, CycleTrace{
				TraceID:    "t-" + status,
				ProductID:  "P1001",
				Phase:      "idle",
				Status:     status,
				StartedAt:  now.Add(time.Duration(i) * time.Minute),
				FinishedAt: now.Add(time.Duration(i)*time.Minute + 2*time.Second),
			}))
		}

		traces, err := store.Recent(ctx, "P1001", 10)
		require.NoError(t, err)
		require.Len(t, traces, 2)
		assert.Equal(t, "t-failed", traces[0].TraceID)
		assert.Equal(t, "t-applied", traces[1].TraceID)
		assert.Equal(t, now.Add(time.Minute).Unix(), traces[0].StartedAt.Unix())
	})

	t.Run("Empty Product Lists All", func(t *testing.T) {
		store := newTestTraceStore(t)
		require.NoError(t, store.Append(ctx, CycleTrace{TraceID: "t-1", ProductID: "P1001", StartedAt: time.Now(), FinishedAt: time.Now()}))
		require.NoError(t, store.Append(ctx, CycleTrace{TraceID: "t-2", ProductID: "P1002", StartedAt: time.Now(), FinishedAt: time.Now()}))

		traces, err := store.Recent(ctx, "", 10)
		require.NoError(t, err)
		assert.Len(t, traces, 2)
	})

	t.Run("Closed Store Errors", func(t *testing.T) {
		store := newTestTraceStore(t)
		require.NoError(t, store.Close())
		assert.Error(t, store.Append(ctx, CycleTrace{TraceID: "t-1", ProductID: "P1001"}))
		_, err := store.Recent(ctx, "", 10)
		assert.Error(t, err)
	})
}
