package orchestrator

import "fmt"

// Phase is the orchestrator's per-product cycle state. Transitions:
//
//	Idle -> Collecting -> Scoring -> Deciding -> Applying -> Idle
//
// Reflection runs asynchronously and never holds the cycle lock. Any phase
// exceeding the cycle deadline transitions to Failed; Collecting also fails
// when every signal source is unavailable.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCollecting
	PhaseScoring
	PhaseDeciding
	PhaseApplying
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCollecting:
		return "collecting"
	case PhaseScoring:
		return "scoring"
	case PhaseDeciding:
		return "deciding"
	case PhaseApplying:
		return "applying"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// CycleInProgressError rejects a cycle request for a product already
// mid-cycle. No queueing; the caller may retry later.
type CycleInProgressError struct {
	ProductID string
	Phase     Phase
}

func (e *CycleInProgressError) Error() string {
	return fmt.Sprintf("cycle already in progress for %s (phase %s)", e.ProductID, e.Phase)
}
