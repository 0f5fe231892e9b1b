package reflection

import (
	"context"
	"fmt"
	"time"

	"reprice/internal/ledger"
	"reprice/internal/logger"
	"reprice/internal/pricemath"
	"reprice/internal/scoring"
	"reprice/internal/signals"
	"reprice/internal/types"
)

const (
	defaultHorizon      = 7 * 24 * time.Hour
	defaultGain         = 0.1
	defaultMaxAdjustPct = 0.05
)

// Loop compares each applied decision's predicted demand effect against the
// observed one once its horizon elapses, and files a bounded adjustment for
// the product's next cycle. It runs independently of pricing cycles and
// only ever appends; it never holds the cycle lock.
type Loop struct {
	Ledger *ledger.Store
	Sales  signals.SalesDataSource

	Horizon      time.Duration
	Gain         float64
	MaxAdjustPct float64

	nowFn func() time.Time
}

func NewLoop(store *ledger.Store, sales signals.SalesDataSource) *Loop {
	return &Loop{
		Ledger:       store,
		Sales:        sales,
		Horizon:      defaultHorizon,
		Gain:         defaultGain,
		MaxAdjustPct: defaultMaxAdjustPct,
		nowFn:        time.Now,
	}
}

// RunOnce evaluates every applied decision past its reflection horizon that
// has no feedback yet. Per-decision failures are logged and skipped so one
// bad product cannot stall the loop.
func (l *Loop) RunOnce(ctx context.Context) error {
	nowFn := l.nowFn
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn()
	horizon := l.Horizon
	if horizon <= 0 {
		horizon = defaultHorizon
	}

	due, err := l.Ledger.DecisionsDueReflection(ctx, horizon, now)
	if err != nil {
		return fmt.Errorf("listing decisions due reflection: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	evaluated := 0
	for _, d := range due {
		if err := l.evaluate(ctx, d, now, horizon); err != nil {
			logger.Warnf("reflection for decision %s (%s) failed: %v", d.ID, d.ProductID, err)
			continue
		}
		evaluated++
	}
	logger.Infof("reflection pass: %d/%d decisions evaluated", evaluated, len(due))
	return nil
}

func (l *Loop) evaluate(ctx context.Context, d types.Decision, now time.Time, horizon time.Duration) error {
	records, err := l.Sales.Fetch(ctx, d.ProductID, horizon)
	if err != nil {
		return fmt.Errorf("fetching observed sales: %w", err)
	}
	horizonDays := int(horizon.Hours() / 24)
	if horizonDays < 1 {
		horizonDays = 1
	}
	observed := scoring.SalesVelocity(records, now, horizonDays, 0)

	product, err := l.Ledger.Product(ctx, d.ProductID)
	if err != nil {
		return err
	}

	gain := l.Gain
	if gain <= 0 {
		gain = defaultGain
	}
	maxPct := l.MaxAdjustPct
	if maxPct <= 0 {
		maxPct = defaultMaxAdjustPct
	}

	delta := observed - d.PredictedVelocity
	bound := pricemath.PctOf(product.CurrentPrice, maxPct)
	adjustment := pricemath.Clamp(gain*delta, -bound, bound)

	entry := types.FeedbackEntry{
		ProductID:       d.ProductID,
		DecisionID:      d.ID,
		PredictedEffect: d.PredictedVelocity,
		ObservedEffect:  observed,
		Delta:           delta,
		Adjustment:      adjustment,
		CreatedAt:       now,
	}
	if err := l.Ledger.AppendFeedback(ctx, entry); err != nil {
		return err
	}
	logger.Debugf("reflection %s: predicted=%.3f observed=%.3f delta=%.3f adjustment=%.4f",
		d.ID, d.PredictedVelocity, observed, delta, adjustment)
	return nil
}
