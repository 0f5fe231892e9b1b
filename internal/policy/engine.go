package policy

import (
	"fmt"
	"math"

	"reprice/internal/pricemath"
	"reprice/internal/profile"
	"reprice/internal/types"
)

const (
	// bound on the reflection-learned corrective term
	maxFeedbackPct = 0.05

	// confidence penalty when a bound clamps the proposal
	clampPenalty = 0.1

	// confidence penalty when elasticity fell back to the default
	elasticityFallbackPenalty = 0.05

	// degraded mode: all sub-assessments low-confidence or missing
	degradedConfidenceCap = 0.3
	degradedAdjustPct     = 0.01

	// confidence blend: data completeness vs assessment provenance
	completenessWeight = 0.6
	provenanceWeight   = 0.4

	// competitive pull: at most this share of the gap to median per cycle
	competitorGapShare = 0.5
)

// Engine combines sub-assessments into a bounded price recommendation with
// a confidence score and an itemized reasoning chain. Propose is pure:
// identical inputs yield an identical Decision.
type Engine struct {
	Profiles *profile.Registry
}

func NewEngine(profiles *profile.Registry) *Engine {
	return &Engine{Profiles: profiles}
}

// Input groups everything one Propose call reads.
type Input struct {
	Product    types.Product
	Demand     types.DemandAssessment
	Inventory  types.InventoryAssessment
	Competitor types.CompetitorAssessment
	Feedback   *types.FeedbackEntry
	Bundle     types.SignalBundle
}

// Propose computes the next price for the product. The returned Decision has
// status proposed and no ID or timestamp; the orchestrator stamps those when
// it persists the decision.
func (e *Engine) Propose(in Input) types.Decision {
	prof := e.resolveProfile(in.Product.Category)
	current := in.Product.CurrentPrice

	chain := make([]types.ReasoningStep, 0, 5)

	// Demand nudge around the 0.5 midpoint.
	demandDelta := current * prof.DemandK * (in.Demand.Score - 0.5)
	chain = append(chain, types.ReasoningStep{
		Factor:       "demand",
		Observation:  fmt.Sprintf("demand_score=%.3f; %s", in.Demand.Score, in.Demand.Provenance),
		Weight:       prof.DemandK,
		Contribution: demandDelta,
	})

	// Inventory pressure: scarcity premium or overstock discount.
	var inventoryDelta float64
	switch in.Inventory.Status {
	case types.InventoryLow:
		inventoryDelta = current * prof.InventoryK
	case types.InventoryOverstock:
		inventoryDelta = -current * prof.InventoryK
	}
	chain = append(chain, types.ReasoningStep{
		Factor:       "inventory",
		Observation:  fmt.Sprintf("status=%s; %s", in.Inventory.Status, in.Inventory.Provenance),
		Weight:       prof.InventoryK,
		Contribution: inventoryDelta,
	})

	// Competitive pull toward the median, capped at half the gap per cycle.
	var competitorDelta float64
	if in.Competitor.RecordCount > 0 && in.Competitor.MedianPrice > 0 {
		competitorDelta = competitorGapShare * (in.Competitor.MedianPrice - current)
	}
	chain = append(chain, types.ReasoningStep{
		Factor:       "competitor",
		Observation:  fmt.Sprintf("advantage=%.2f%%; %s", in.Competitor.PriceAdvantagePct, in.Competitor.Provenance),
		Weight:       competitorGapShare,
		Contribution: competitorDelta,
	})

	// Reflection feedback, bounded to ±5% of current price.
	var feedbackDelta float64
	if in.Feedback != nil {
		bound := pricemath.PctOf(current, maxFeedbackPct)
		feedbackDelta = pricemath.Clamp(in.Feedback.Adjustment, -bound, bound)
		chain = append(chain, types.ReasoningStep{
			Factor: "feedback",
			Observation: fmt.Sprintf("decision=%s delta=%.3f adjustment=%.4f",
				in.Feedback.DecisionID, in.Feedback.Delta, in.Feedback.Adjustment),
			Weight:       1,
			Contribution: feedbackDelta,
		})
	}

	degraded := in.Demand.LowConfidence && in.Inventory.LowConfidence && in.Competitor.LowConfidence
	if degraded {
		chain = capAdjustments(chain, pricemath.PctOf(current, degradedAdjustPct))
	}

	proposed := current
	for _, step := range chain {
		proposed += step.Contribution
	}

	// Hard bounds: margin floor and markup ceiling.
	floor := in.Product.CostPrice * (1 + prof.MinMargin)
	ceiling := in.Product.BasePrice * prof.MaxMarkup
	clamped := pricemath.Clamp(proposed, floor, ceiling)
	clampedEvent := !pricemath.Equal(clamped, proposed)
	if clampedEvent {
		chain = append(chain, types.ReasoningStep{
			Factor: "policy_violation",
			Observation: fmt.Sprintf("proposed %.4f outside [%.4f, %.4f]; clamped",
				proposed, floor, ceiling),
			Weight:       1,
			Contribution: clamped - proposed,
		})
	}

	newPrice := pricemath.RoundCents(clamped)
	// Keep the audit property exact: fold the rounding remainder into the
	// last step so contributions sum to new_price - old_price.
	if rem := newPrice - clamped; rem != 0 && len(chain) > 0 {
		chain[len(chain)-1].Contribution += rem
	}

	confidence := e.confidence(in, clampedEvent, degraded)

	return types.Decision{
		ProductID:         in.Product.ID,
		OldPrice:          current,
		NewPrice:          newPrice,
		ChangeReason:      changeReason(chain, newPrice, current),
		Confidence:        confidence,
		ReasoningChain:    chain,
		Status:            types.StatusProposed,
		PredictedVelocity: in.Demand.Velocity,
	}
}

func (e *Engine) resolveProfile(category string) profile.PolicyProfile {
	if e.Profiles == nil {
		return profile.DefaultProfile
	}
	return e.Profiles.Resolve(category)
}

// ConfidenceFloor exposes the auto-apply floor for the product's category.
func (e *Engine) ConfidenceFloor(category string) float64 {
	return e.resolveProfile(category).ConfidenceFloor
}

func (e *Engine) confidence(in Input, clamped, degraded bool) float64 {
	completeness := in.Bundle.SourceCompleteness()

	var provenance float64
	for _, low := range []bool{in.Demand.LowConfidence, in.Inventory.LowConfidence, in.Competitor.LowConfidence} {
		if !low {
			provenance += 1.0 / 3
		}
	}

	conf := completenessWeight*completeness + provenanceWeight*provenance
	if clamped {
		conf -= clampPenalty
	}
	if in.Demand.ElasticityFallback {
		conf -= elasticityFallbackPenalty
	}
	if degraded && conf > degradedConfidenceCap {
		conf = degradedConfidenceCap
	}
	return clamp01(conf)
}

// capAdjustments scales contributions so their absolute sum stays within
// maxAbs. Absence of data is a weak signal, not a blocking condition.
func capAdjustments(chain []types.ReasoningStep, maxAbs float64) []types.ReasoningStep {
	var total float64
	for _, step := range chain {
		total += step.Contribution
	}
	if math.Abs(total) <= maxAbs || total == 0 {
		return chain
	}
	scale := maxAbs / math.Abs(total)
	for i := range chain {
		chain[i].Contribution *= scale
	}
	return chain
}

func changeReason(chain []types.ReasoningStep, newPrice, oldPrice float64) string {
	if pricemath.Equal(newPrice, oldPrice) {
		return "hold"
	}
	var dominant types.ReasoningStep
	for _, step := range chain {
		if step.Factor == "policy_violation" {
			continue
		}
		if math.Abs(step.Contribution) > math.Abs(dominant.Contribution) {
			dominant = step
		}
	}
	direction := "increase"
	if newPrice < oldPrice {
		direction = "decrease"
	}
	if dominant.Factor == "" {
		return fmt.Sprintf("scheduled %s", direction)
	}
	return fmt.Sprintf("%s-driven %s", dominant.Factor, direction)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
