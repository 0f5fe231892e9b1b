package scoring

import (
	"fmt"
	"math"

	"reprice/internal/types"
)

const (
	// stock at or above this fraction of max stock counts as overstock
	overstockRatio = 0.9

	velocityEps = 1e-9
)

// InventoryEvaluator classifies stock levels. Pure and non-failing: a
// missing inventory snapshot yields a neutral low-confidence assessment.
type InventoryEvaluator struct{}

func NewInventoryEvaluator() *InventoryEvaluator { return &InventoryEvaluator{} }

// Evaluate classifies the snapshot and estimates days until the reorder
// point is hit at the given sales velocity.
func (e *InventoryEvaluator) Evaluate(bundle types.SignalBundle, velocity float64) types.InventoryAssessment {
	snap := bundle.Inventory
	if snap == nil || bundle.Sources[types.SourceInventory] == types.SourceMissing {
		return types.InventoryAssessment{
			Status:           types.InventoryHealthy,
			DaysUntilReorder: math.Inf(1),
			Provenance:       "no inventory snapshot; assumed healthy",
			LowConfidence:    true,
		}
	}

	status := types.InventoryHealthy
	switch {
	case snap.StockLevel <= snap.ReorderPoint:
		status = types.InventoryLow
	case snap.MaxStock > 0 && float64(snap.StockLevel) >= overstockRatio*float64(snap.MaxStock):
		status = types.InventoryOverstock
	}

	days := math.Inf(1)
	if velocity > velocityEps {
		days = float64(snap.StockLevel-snap.ReorderPoint) / velocity
	}

	return types.InventoryAssessment{
		Status:           status,
		DaysUntilReorder: days,
		Provenance: fmt.Sprintf("stock=%d reorder=%d max=%d velocity=%.3f/day",
			snap.StockLevel, snap.ReorderPoint, snap.MaxStock, velocity),
	}
}
