package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reprice/internal/types"
)

func salesBundle(asOf time.Time, records []types.SaleRecord) types.SignalBundle {
	return types.SignalBundle{
		ProductID:    "P1001",
		SalesRecords: records,
		CollectedAt:  asOf,
		Sources:      map[types.Source]types.SourceStatus{types.SourceSales: types.SourcePresent},
	}
}

func steadySales(asOf time.Time, days, perDay int, price float64) []types.SaleRecord {
	var out []types.SaleRecord
	for d := 1; d <= days; d++ {
		for i := 0; i < perDay; i++ {
			out = append(out, types.SaleRecord{
				Quantity:  1,
				Price:     price,
				Timestamp: asOf.AddDate(0, 0, -d),
			})
		}
	}
	return out
}

func TestDemandScorer_Score(t *testing.T) {
	asOf := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	product := types.Product{ID: "P1001", Category: "books", CurrentPrice: 17.99}

	t.Run("Missing Sales Is Neutral", func(t *testing.T) {
		scorer := NewDemandScorer(nil)
		a := scorer.Score(product, types.SignalBundle{
			Sources: map[types.Source]types.SourceStatus{types.SourceSales: types.SourceMissing},
		})
		assert.InDelta(t, 0.5, a.Score, 1e-9)
		assert.True(t, a.LowConfidence)
		assert.True(t, a.ElasticityFallback)
		assert.InDelta(t, -1.0, a.Elasticity, 1e-9)
	})

	t.Run("Score Stays Bounded", func(t *testing.T) {
		stats := NewCategoryStats(nil)
		stats.SetSnapshot(map[string]Band{
			"books": {MinVelocity: 0, MaxVelocity: 10, Count: 5},
		}, Band{MinVelocity: 0, MaxVelocity: 10, Count: 5})
		scorer := NewDemandScorer(stats)
		a := scorer.Score(product, salesBundle(asOf, steadySales(asOf, 28, 5, 17.99)))
		assert.GreaterOrEqual(t, a.Score, 0.0)
		assert.LessOrEqual(t, a.Score, 1.0)
		assert.Greater(t, a.Velocity, 0.0)
		assert.False(t, a.LowConfidence)
	})

	t.Run("Few Price Points Falls Back To Default Elasticity", func(t *testing.T) {
		scorer := NewDemandScorer(nil)
		a := scorer.Score(product, salesBundle(asOf, steadySales(asOf, 10, 2, 17.99)))
		assert.True(t, a.ElasticityFallback)
		assert.InDelta(t, -1.0, a.Elasticity, 1e-9)
	})

	t.Run("Downward Sloping Demand Yields Negative Elasticity", func(t *testing.T) {
		records := []types.SaleRecord{
			{Quantity: 100, Price: 10, Timestamp: asOf.AddDate(0, 0, -3)},
			{Quantity: 50, Price: 15, Timestamp: asOf.AddDate(0, 0, -2)},
			{Quantity: 20, Price: 20, Timestamp: asOf.AddDate(0, 0, -1)},
		}
		scorer := NewDemandScorer(nil)
		a := scorer.Score(product, salesBundle(asOf, records))
		assert.False(t, a.ElasticityFallback)
		assert.Less(t, a.Elasticity, 0.0)
	})

	t.Run("Stale Sales Marks Low Confidence", func(t *testing.T) {
		bundle := salesBundle(asOf, steadySales(asOf, 10, 2, 17.99))
		bundle.Sources[types.SourceSales] = types.SourceStale
		scorer := NewDemandScorer(nil)
		a := scorer.Score(product, bundle)
		assert.True(t, a.LowConfidence)
	})
}

func TestSalesVelocity(t *testing.T) {
	asOf := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Steady Sales Average", func(t *testing.T) {
		records := steadySales(asOf, 30, 3, 9.99)
		v := SalesVelocity(records, asOf, 30, 0)
		assert.InDelta(t, 3.0, v, 0.2)
	})

	t.Run("Empty Records", func(t *testing.T) {
		assert.Zero(t, SalesVelocity(nil, asOf, 30, 7))
	})

	t.Run("Records Outside Window Ignored", func(t *testing.T) {
		records := []types.SaleRecord{
			{Quantity: 500, Timestamp: asOf.AddDate(0, 0, -60)},
		}
		assert.Zero(t, SalesVelocity(records, asOf, 30, 0))
	})
}

func TestStatsSnapshot_NormalizeVelocity(t *testing.T) {
	snap := StatsSnapshot{
		Categories: map[string]Band{
			"books": {MinVelocity: 0, MaxVelocity: 10, Count: 5},
			"niche": {MinVelocity: 1, MaxVelocity: 2, Count: 2},
			"flat":  {MinVelocity: 4, MaxVelocity: 4, Count: 6},
		},
		Global: Band{MinVelocity: 0, MaxVelocity: 20, Count: 40},
	}

	t.Run("Category Band", func(t *testing.T) {
		assert.InDelta(t, 0.5, snap.NormalizeVelocity("books", 5), 1e-9)
		assert.InDelta(t, 1.0, snap.NormalizeVelocity("books", 15), 1e-9)
	})

	t.Run("Few Peers Falls Back To Global", func(t *testing.T) {
		assert.InDelta(t, 0.5, snap.NormalizeVelocity("niche", 10), 1e-9)
	})

	t.Run("Unknown Category Uses Global", func(t *testing.T) {
		assert.InDelta(t, 0.25, snap.NormalizeVelocity("unknown", 5), 1e-9)
	})

	t.Run("Degenerate Band Is Neutral", func(t *testing.T) {
		assert.InDelta(t, 0.5, snap.NormalizeVelocity("flat", 4), 1e-9)
	})

	t.Run("Empty Snapshot Is Neutral", func(t *testing.T) {
		empty := StatsSnapshot{Categories: map[string]Band{}}
		assert.InDelta(t, 0.5, empty.NormalizeVelocity("books", 3), 1e-9)
	})
}

func TestEstimateElasticity_Deterministic(t *testing.T) {
	asOf := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	prices := []float64{14.99, 15.49, 15.99, 16.49, 16.99, 17.49, 17.99, 18.49}
	var records []types.SaleRecord
	for i := 0; i < 40; i++ {
		records = append(records, types.SaleRecord{
			Quantity:  1 + i%4,
			Price:     prices[i%len(prices)],
			Timestamp: asOf.AddDate(0, 0, -(i%20 + 1)),
		})
	}

	first, fallback := estimateElasticity(records, -1.0)
	assert.False(t, fallback)
	want := math.Float64bits(first)
	for i := 0; i < 5000; i++ {
		got, _ := estimateElasticity(records, -1.0)
		if math.Float64bits(got) != want {
			t.Fatalf("run %d: elasticity %v differs from first call %v", i, got, first)
		}
	}
}
