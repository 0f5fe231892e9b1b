package policy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"reprice/internal/profile"
	"reprice/internal/types"
)

func fullBundle() types.SignalBundle {
	return types.SignalBundle{
		ProductID: "P1001",
		Sources: map[types.Source]types.SourceStatus{
			types.SourceCompetitor: types.SourcePresent,
			types.SourceSales:      types.SourcePresent,
			types.SourceInventory:  types.SourcePresent,
		},
	}
}

func missingBundle() types.SignalBundle {
	return types.SignalBundle{
		ProductID: "P1001",
		Sources: map[types.Source]types.SourceStatus{
			types.SourceCompetitor: types.SourceMissing,
			types.SourceSales:      types.SourceMissing,
			types.SourceInventory:  types.SourceMissing,
		},
	}
}

func p1001() types.Product {
	return types.Product{
		ID:           "P1001",
		Category:     "books",
		BasePrice:    15.99,
		CurrentPrice: 17.99,
		CostPrice:    10.00,
		StockLevel:   120,
	}
}

func chainSum(d types.Decision) float64 {
	var sum float64
	for _, step := range d.ReasoningChain {
		sum += step.Contribution
	}
	return sum
}

func hasFactor(d types.Decision, factor string) bool {
	for _, step := range d.ReasoningChain {
		if step.Factor == factor {
			return true
		}
	}
	return false
}

func TestEngine_Propose(t *testing.T) {
	engine := NewEngine(profile.NewStaticRegistry(nil))

	t.Run("Strong Demand Below Median Raises Price", func(t *testing.T) {
		in := Input{
			Product: p1001(),
			Demand:  types.DemandAssessment{Score: 0.85, Velocity: 4.2, Elasticity: -0.8},
			Inventory: types.InventoryAssessment{
				Status: types.InventoryHealthy, DaysUntilReorder: 30,
			},
			Competitor: types.CompetitorAssessment{
				PriceAdvantagePct: (19.49 - 17.99) / 19.49 * 100,
				MedianPrice:       19.49,
				MinPrice:          18.99,
				MaxPrice:          19.99,
				Position:          "lowest",
				RecordCount:       2,
			},
			Bundle: fullBundle(),
		}
		d := engine.Propose(in)
		assert.Greater(t, d.NewPrice, d.OldPrice)
		assert.Greater(t, d.Confidence, 0.7)
		assert.Equal(t, types.StatusProposed, d.Status)
		assert.False(t, hasFactor(d, "policy_violation"))
		// demand 0.945 + competitor pull 0.75, rounded to cents
		assert.InDelta(t, 19.68, d.NewPrice, 1e-9)
	})

	t.Run("Degraded Mode Caps Adjustment And Confidence", func(t *testing.T) {
		in := Input{
			Product:   p1001(),
			Demand:    types.DemandAssessment{Score: 0.5, ElasticityFallback: true, LowConfidence: true},
			Inventory: types.InventoryAssessment{Status: types.InventoryLow, LowConfidence: true},
			Competitor: types.CompetitorAssessment{
				Position: "unknown", LowConfidence: true,
			},
			Bundle: missingBundle(),
		}
		d := engine.Propose(in)
		assert.LessOrEqual(t, d.Confidence, 0.3)
		maxAdjust := 0.01*in.Product.CurrentPrice + 0.005 // cent rounding slack
		assert.LessOrEqual(t, math.Abs(d.NewPrice-d.OldPrice), maxAdjust)
		assert.Equal(t, types.StatusProposed, d.Status)
	})

	t.Run("Ceiling Clamp Adds Policy Violation", func(t *testing.T) {
		in := Input{
			Product:   p1001(),
			Demand:    types.DemandAssessment{Score: 0.9},
			Inventory: types.InventoryAssessment{Status: types.InventoryLow},
			Competitor: types.CompetitorAssessment{
				MedianPrice: 120.00, RecordCount: 3, Position: "lowest",
			},
			Bundle: fullBundle(),
		}
		d := engine.Propose(in)
		assert.InDelta(t, 15.99*3.0, d.NewPrice, 0.005)
		assert.True(t, hasFactor(d, "policy_violation"))
		// full-confidence input minus the 0.1 clamp penalty
		assert.InDelta(t, 0.9, d.Confidence, 1e-9)
	})

	t.Run("Margin Floor Clamp", func(t *testing.T) {
		in := Input{
			Product:   p1001(),
			Demand:    types.DemandAssessment{Score: 0.1},
			Inventory: types.InventoryAssessment{Status: types.InventoryOverstock},
			Competitor: types.CompetitorAssessment{
				MedianPrice: 2.00, RecordCount: 4, Position: "highest",
			},
			Bundle: fullBundle(),
		}
		d := engine.Propose(in)
		assert.InDelta(t, 10.00*1.10, d.NewPrice, 0.005)
		assert.True(t, hasFactor(d, "policy_violation"))
	})

	t.Run("Feedback Bounded To Five Percent", func(t *testing.T) {
		in := Input{
			Product:   p1001(),
			Demand:    types.DemandAssessment{Score: 0.5},
			Inventory: types.InventoryAssessment{Status: types.InventoryHealthy},
			Competitor: types.CompetitorAssessment{
				MedianPrice: 17.99, RecordCount: 2, Position: "competitive",
			},
			Feedback: &types.FeedbackEntry{DecisionID: "d-1", Delta: 40, Adjustment: 4.0},
			Bundle:   fullBundle(),
		}
		d := engine.Propose(in)
		bound := 0.05 * in.Product.CurrentPrice
		assert.LessOrEqual(t, d.NewPrice-d.OldPrice, bound+0.005)
		assert.True(t, hasFactor(d, "feedback"))
	})

	t.Run("Chain Sums To Price Delta", func(t *testing.T) {
		cases := []Input{
			{
				Product:    p1001(),
				Demand:     types.DemandAssessment{Score: 0.85},
				Inventory:  types.InventoryAssessment{Status: types.InventoryLow},
				Competitor: types.CompetitorAssessment{MedianPrice: 19.49, RecordCount: 2},
				Bundle:     fullBundle(),
			},
			{
				Product:    p1001(),
				Demand:     types.DemandAssessment{Score: 0.9},
				Inventory:  types.InventoryAssessment{Status: types.InventoryLow},
				Competitor: types.CompetitorAssessment{MedianPrice: 120, RecordCount: 3},
				Bundle:     fullBundle(),
			},
			{
				Product:    p1001(),
				Demand:     types.DemandAssessment{Score: 0.5, LowConfidence: true, ElasticityFallback: true},
				Inventory:  types.InventoryAssessment{Status: types.InventoryOverstock, LowConfidence: true},
				Competitor: types.CompetitorAssessment{LowConfidence: true},
				Bundle:     missingBundle(),
			},
		}
		for _, in := range cases {
			d := engine.Propose(in)
			assert.InDelta(t, d.NewPrice-d.OldPrice, chainSum(d), 1e-9)
		}
	})

	t.Run("Propose Is Deterministic", func(t *testing.T) {
		in := Input{
			Product:    p1001(),
			Demand:     types.DemandAssessment{Score: 0.85, Velocity: 4.2},
			Inventory:  types.InventoryAssessment{Status: types.InventoryHealthy},
			Competitor: types.CompetitorAssessment{MedianPrice: 19.49, RecordCount: 2},
			Bundle:     fullBundle(),
		}
		first := engine.Propose(in)
		second := engine.Propose(in)
		assert.Equal(t, first, second)
	})

	t.Run("Hold When Nothing Moves", func(t *testing.T) {
		in := Input{
			Product:    p1001(),
			Demand:     types.DemandAssessment{Score: 0.5},
			Inventory:  types.InventoryAssessment{Status: types.InventoryHealthy},
			Competitor: types.CompetitorAssessment{MedianPrice: 17.99, RecordCount: 2},
			Bundle:     fullBundle(),
		}
		d := engine.Propose(in)
		assert.Equal(t, "hold", d.ChangeReason)
		assert.InDelta(t, d.OldPrice, d.NewPrice, 1e-9)
	})

	t.Run("Change Reason Names Dominant Factor", func(t *testing.T) {
		in := Input{
			Product:    p1001(),
			Demand:     types.DemandAssessment{Score: 0.55},
			Inventory:  types.InventoryAssessment{Status: types.InventoryHealthy},
			Competitor: types.CompetitorAssessment{MedianPrice: 21.99, RecordCount: 2},
			Bundle:     fullBundle(),
		}
		d := engine.Propose(in)
		assert.Equal(t, "competitor-driven increase", d.ChangeReason)
	})
}

func TestEngine_ConfidenceFloor(t *testing.T) {
	engine := NewEngine(profile.NewStaticRegistry(map[string]profile.PolicyProfile{
		"books": {DemandK: 0.15, InventoryK: 0.05, MinMargin: 0.10, MaxMarkup: 3.0, ConfidenceFloor: 0.4},
	}))
	assert.InDelta(t, 0.4, engine.ConfidenceFloor("books"), 1e-9)
	assert.InDelta(t, 0.2, engine.ConfidenceFloor("unknown"), 1e-9)
}
