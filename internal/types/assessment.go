package types

// InventoryStatus classifies stock against reorder point and max stock.
type InventoryStatus string

const (
	InventoryHealthy   InventoryStatus = "healthy"
	InventoryLow       InventoryStatus = "low"
	InventoryOverstock InventoryStatus = "overstock"
)

// DemandAssessment is the demand scorer's output.
type DemandAssessment struct {
	Score              float64 `json:"score"` // [0,1]
	Velocity           float64 `json:"velocity"`
	Elasticity         float64 `json:"elasticity"`
	ElasticityFallback bool    `json:"elasticity_fallback"`
	Provenance         string  `json:"provenance"`
	LowConfidence      bool    `json:"low_confidence"`
}

// InventoryAssessment is the inventory evaluator's output. DaysUntilReorder
// is +Inf when velocity is effectively zero.
type InventoryAssessment struct {
	Status           InventoryStatus `json:"status"`
	DaysUntilReorder float64         `json:"days_until_reorder"`
	Provenance       string          `json:"provenance"`
	LowConfidence    bool            `json:"low_confidence"`
}

// CompetitorAssessment is the competitor analyzer's output. A positive
// PriceAdvantagePct means we undercut the median competitor.
type CompetitorAssessment struct {
	PriceAdvantagePct float64 `json:"price_advantage_pct"`
	MedianPrice       float64 `json:"median_price"`
	MinPrice          float64 `json:"min_price"`
	MaxPrice          float64 `json:"max_price"`
	Position          string  `json:"position"` // lowest | competitive | highest
	RecordCount       int     `json:"record_count"`
	Provenance        string  `json:"provenance"`
	LowConfidence     bool    `json:"low_confidence"`
}
