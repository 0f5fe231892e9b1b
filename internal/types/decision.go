package types

import "time"

// DecisionStatus is the lifecycle state of a price decision. A decision is
// immutable once it leaves StatusProposed.
type DecisionStatus string

const (
	StatusProposed   DecisionStatus = "proposed"
	StatusApplied    DecisionStatus = "applied"
	StatusRejected   DecisionStatus = "rejected"
	StatusSuperseded DecisionStatus = "superseded"
)

// ReasoningStep is one itemized contribution in a decision's audit trail.
// Contribution is in currency units; the chain's contributions sum to
// NewPrice - OldPrice.
type ReasoningStep struct {
	Factor       string  `json:"factor"`
	Observation  string  `json:"observation"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Decision is a bounded price recommendation plus its audit trail.
type Decision struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	OldPrice       float64         `json:"old_price"`
	NewPrice       float64         `json:"new_price"`
	ChangeReason   string          `json:"change_reason"`
	Confidence     float64         `json:"confidence"`
	ReasoningChain []ReasoningStep `json:"reasoning_chain"`
	Status         DecisionStatus  `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`

	// Explanation is narrated text from the reasoning collaborator, or the
	// templated fallback. Cosmetic; never load-bearing.
	Explanation string `json:"explanation,omitempty"`

	// PredictedVelocity is the demand velocity observed at decision time,
	// kept so the reflection loop can compare it against the outcome.
	PredictedVelocity float64 `json:"predicted_velocity,omitempty"`
}

// FeedbackEntry compares a past decision's predicted demand effect against
// the observed one. Append-only; consumed by at most one later cycle.
type FeedbackEntry struct {
	ID              int64     `json:"id"`
	ProductID       string    `json:"product_id"`
	DecisionID      string    `json:"decision_id"`
	PredictedEffect float64   `json:"predicted_effect"`
	ObservedEffect  float64   `json:"observed_effect"`
	Delta           float64   `json:"delta"`
	Adjustment      float64   `json:"adjustment"`
	Consumed        bool      `json:"consumed"`
	ConsumedBy      string    `json:"consumed_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
