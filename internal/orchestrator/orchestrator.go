package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reprice/internal/ledger"
	"reprice/internal/logger"
	"reprice/internal/policy"
	"reprice/internal/pricemath"
	"reprice/internal/scoring"
	"reprice/internal/signals"
	"reprice/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCycleDeadline = 30 * time.Second
	defaultWorkers       = 4
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 200 * time.Millisecond
)

// CycleResult is what one cycle request returns to the caller.
type CycleResult struct {
	TraceID    string  `json:"trace_id"`
	ProductID  string  `json:"product_id"`
	DecisionID string  `json:"decision_id,omitempty"`
	Status     string  `json:"status"` // applied | proposed | failed
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// Orchestrator drives pricing cycles end to end. Cycles for different
// products run concurrently; cycles for the same product are serialized by
// a per-product slot acquired for the whole cycle.
type Orchestrator struct {
	Aggregator *signals.Aggregator
	Demand     *scoring.DemandScorer
	Inventory  *scoring.InventoryEvaluator
	Competitor *scoring.CompetitorAnalyzer
	Engine     *policy.Engine
	Explainer  *policy.Explainer
	Ledger     *ledger.Store
	Traces     *ledger.CycleTraceStore

	CycleDeadline time.Duration
	Workers       int
	RetryAttempts int
	RetryBackoff  time.Duration

	mu       sync.Mutex
	inFlight map[string]Phase

	nowFn func() time.Time
	idFn  func() string
}

// Params groups the orchestrator's dependencies.
type Params struct {
	Aggregator *signals.Aggregator
	Demand     *scoring.DemandScorer
	Inventory  *scoring.InventoryEvaluator
	Competitor *scoring.CompetitorAnalyzer
	Engine     *policy.Engine
	Explainer  *policy.Explainer
	Ledger     *ledger.Store
	Traces     *ledger.CycleTraceStore

	CycleDeadline time.Duration
	Workers       int
	RetryAttempts int
	RetryBackoff  time.Duration
}

func New(p Params) *Orchestrator {
	o := &Orchestrator{
		Aggregator:    p.Aggregator,
		Demand:        p.Demand,
		Inventory:     p.Inventory,
		Competitor:    p.Competitor,
		Engine:        p.Engine,
		Explainer:     p.Explainer,
		Ledger:        p.Ledger,
		Traces:        p.Traces,
		CycleDeadline: p.CycleDeadline,
		Workers:       p.Workers,
		RetryAttempts: p.RetryAttempts,
		RetryBackoff:  p.RetryBackoff,
		inFlight:      make(map[string]Phase),
		nowFn:         time.Now,
		idFn:          func() string { return uuid.NewString() },
	}
	if o.CycleDeadline <= 0 {
		o.CycleDeadline = defaultCycleDeadline
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = defaultRetryAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	return o
}

// TriggerCycle runs one full pricing cycle for a product. A product already
// mid-cycle is rejected immediately with CycleInProgressError.
func (o *Orchestrator) TriggerCycle(ctx context.Context, productID string) (CycleResult, error) {
	if err := o.acquire(productID); err != nil {
		return CycleResult{}, err
	}
	defer o.release(productID)

	traceID := o.idFn()
	startedAt := o.nowFn()
	result := CycleResult{TraceID: traceID, ProductID: productID}

	cctx, cancel := context.WithTimeout(ctx, o.CycleDeadline)
	defer cancel()

	result = o.runCycle(cctx, traceID, productID, result)
	o.appendTrace(result, startedAt)
	if result.Status == "failed" {
		return result, fmt.Errorf("cycle %s failed: %s", traceID, result.Reason)
	}
	return result, nil
}

func (o *Orchestrator) runCycle(ctx context.Context, traceID, productID string, result CycleResult) CycleResult {
	product, err := o.Ledger.Product(ctx, productID)
	if err != nil {
		return o.fail(result, PhaseCollecting, ctx, err)
	}

	// Collecting: fan out to signal sources; partial data degrades, only
	// total loss fails.
	o.setPhase(productID, PhaseCollecting)
	bundle, err := o.Aggregator.Collect(ctx, productID)
	if err != nil {
		return o.fail(result, PhaseCollecting, ctx, err)
	}

	// Scoring: pure, non-failing.
	o.setPhase(productID, PhaseScoring)
	demand := o.Demand.Score(product, bundle)
	inventory := o.Inventory.Evaluate(bundle, demand.Velocity)
	competitor := o.Competitor.Analyze(bundle, product.CurrentPrice)

	// Deciding.
	o.setPhase(productID, PhaseDeciding)
	feedback, err := o.Ledger.LatestUnconsumedFeedback(ctx, productID)
	if err != nil {
		logger.Warnf("reading feedback for %s failed, proceeding without: %v", productID, err)
		feedback = nil
	}
	decision := o.Engine.Propose(policy.Input{
		Product:    product,
		Demand:     demand,
		Inventory:  inventory,
		Competitor: competitor,
		Feedback:   feedback,
		Bundle:     bundle,
	})
	decision.ID = o.idFn()
	decision.CreatedAt = o.nowFn()
	decision.Explanation = o.Explainer.Explain(ctx, decision)

	var feedbackID int64
	if feedback != nil {
		feedbackID = feedback.ID
	}

	result.DecisionID = decision.ID
	result.Confidence = decision.Confidence

	// Applying, or parking below the confidence floor for manual review.
	floor := o.Engine.ConfidenceFloor(product.Category)
	if decision.Confidence >= floor {
		o.setPhase(productID, PhaseApplying)
		if err := o.withRetry(ctx, func() error {
			return o.Ledger.CommitDecision(ctx, decision, feedbackID)
		}); err != nil {
			return o.fail(result, PhaseApplying, ctx, err)
		}
		result.Status = string(types.StatusApplied)
		logger.Infof("cycle %s applied %s: %s %.2f -> %.2f (confidence %.2f)",
			traceID, decision.ID, productID, decision.OldPrice, decision.NewPrice, decision.Confidence)
		return result
	}

	if err := o.withRetry(ctx, func() error {
		return o.Ledger.ProposeDecision(ctx, decision, feedbackID)
	}); err != nil {
		return o.fail(result, PhaseDeciding, ctx, err)
	}
	result.Status = string(types.StatusProposed)
	logger.Infof("cycle %s proposed %s for %s below confidence floor (%.2f < %.2f), awaiting manual review",
		traceID, decision.ID, productID, decision.Confidence, floor)
	return result
}

// RunSweep cycles every active product through the bounded worker pool.
// Products already mid-cycle are skipped, not queued.
func (o *Orchestrator) RunSweep(ctx context.Context) error {
	products, err := o.Ledger.ActiveProducts(ctx)
	if err != nil {
		return fmt.Errorf("listing active products: %w", err)
	}

	var mu sync.Mutex
	counts := map[string]int{}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.Workers)
	for _, p := range products {
		productID := p.ID
		eg.Go(func() error {
			res, err := o.TriggerCycle(egCtx, productID)
			status := res.Status
			var inProgress *CycleInProgressError
			switch {
			case errors.As(err, &inProgress):
				status = "skipped"
			case err != nil && status == "":
				status = "failed"
			}
			mu.Lock()
			counts[status]++
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	logger.Infof("sweep finished: %d products (applied=%d proposed=%d failed=%d skipped=%d)",
		len(products), counts["applied"], counts["proposed"], counts["failed"], counts["skipped"])
	return nil
}

// AcceptDecision manually applies a proposed decision.
func (o *Orchestrator) AcceptDecision(ctx context.Context, decisionID string) error {
	d, err := o.Ledger.Decision(ctx, decisionID)
	if err != nil {
		return err
	}
	if d.Status != types.StatusProposed {
		return ledger.ErrDecisionImmutable
	}
	if err := o.withRetry(ctx, func() error {
		return o.Ledger.CommitDecision(ctx, d, 0)
	}); err != nil {
		return err
	}
	logger.Infof("decision %s accepted: %s %.2f -> %.2f", d.ID, d.ProductID, d.OldPrice, d.NewPrice)
	return nil
}

// RejectDecision manually rejects a proposed decision.
func (o *Orchestrator) RejectDecision(ctx context.Context, decisionID, reason string) error {
	if err := o.Ledger.RejectDecision(ctx, decisionID, reason); err != nil {
		return err
	}
	logger.Infof("decision %s rejected: %s", decisionID, reason)
	return nil
}

// OverridePrice applies an operator-set price immediately, bypassing the
// policy engine. The change still lands in the ledger as an applied decision
// with change reason "manual override", so the audit trail stays complete.
func (o *Orchestrator) OverridePrice(ctx context.Context, productID string, newPrice float64) (types.Decision, error) {
	newPrice = pricemath.RoundCents(newPrice)
	if newPrice <= 0 {
		return types.Decision{}, fmt.Errorf("override price must be positive, got %.2f", newPrice)
	}
	product, err := o.Ledger.Product(ctx, productID)
	if err != nil {
		return types.Decision{}, err
	}
	d := types.Decision{
		ID:           o.idFn(),
		ProductID:    productID,
		OldPrice:     product.CurrentPrice,
		NewPrice:     newPrice,
		ChangeReason: "manual override",
		Confidence:   1,
		ReasoningChain: []types.ReasoningStep{{
			Factor:       "manual_override",
			Observation:  "price set by operator",
			Weight:       1,
			Contribution: pricemath.RoundCents(newPrice - product.CurrentPrice),
		}},
		CreatedAt: o.nowFn(),
	}
	if err := o.withRetry(ctx, func() error {
		return o.Ledger.CommitDecision(ctx, d, 0)
	}); err != nil {
		return types.Decision{}, err
	}
	logger.Infof("manual override %s: %s %.2f -> %.2f", d.ID, productID, d.OldPrice, d.NewPrice)
	return d, nil
}

// --- per-product serialization ---

func (o *Orchestrator) acquire(productID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if phase, busy := o.inFlight[productID]; busy {
		return &CycleInProgressError{ProductID: productID, Phase: phase}
	}
	o.inFlight[productID] = PhaseCollecting
	return nil
}

func (o *Orchestrator) setPhase(productID string, phase Phase) {
	o.mu.Lock()
	o.inFlight[productID] = phase
	o.mu.Unlock()
}

func (o *Orchestrator) release(productID string) {
	o.mu.Lock()
	delete(o.inFlight, productID)
	o.mu.Unlock()
}

// --- failure handling ---

func (o *Orchestrator) fail(result CycleResult, phase Phase, ctx context.Context, err error) CycleResult {
	reason := err.Error()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		reason = "timeout"
	case isPersistenceErr(err):
		reason = "persistence: " + err.Error()
	}
	result.Status = "failed"
	result.Reason = reason
	logger.Errorf("cycle %s for %s failed in %s: %s", result.TraceID, result.ProductID, phase, reason)
	return result
}

func isPersistenceErr(err error) bool {
	var pe *ledger.PersistenceError
	return errors.As(err, &pe)
}

// withRetry retries persistence failures with bounded exponential backoff.
// Domain errors and context cancellation are not retried.
func (o *Orchestrator) withRetry(ctx context.Context, fn func() error) error {
	var err error
	backoff := o.RetryBackoff
	for attempt := 1; attempt <= o.RetryAttempts; attempt++ {
		err = fn()
		if err == nil || !isPersistenceErr(err) {
			return err
		}
		if attempt == o.RetryAttempts {
			break
		}
		logger.Warnf("persistence attempt %d/%d failed, retrying in %s: %v", attempt, o.RetryAttempts, backoff, err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func (o *Orchestrator) appendTrace(result CycleResult, startedAt time.Time) {
	if o.Traces == nil {
		return
	}
	phase := PhaseIdle
	if result.Status == "failed" {
		phase = PhaseFailed
	}
	trace := ledger.CycleTrace{
		TraceID:    result.TraceID,
		ProductID:  result.ProductID,
		Phase:      phase.String(),
		Status:     result.Status,
		DecisionID: result.DecisionID,
		Confidence: result.Confidence,
		Reason:     result.Reason,
		StartedAt:  startedAt,
		FinishedAt: o.nowFn(),
	}
	// Trace writes use a fresh context: the cycle deadline may already be
	// spent, and a failed cycle must still leave its terminal record.
	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Traces.Append(tctx, trace); err != nil {
		logger.Errorf("appending cycle trace %s failed: %v", result.TraceID, err)
	}
}
