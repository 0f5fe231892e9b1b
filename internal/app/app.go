package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	rpcfg "reprice/internal/config"
	"reprice/internal/ledger"
	"reprice/internal/logger"
	"reprice/internal/orchestrator"
	"reprice/internal/reflection"
	"reprice/internal/scheduler"
	pricinghttp "reprice/internal/transport/http/pricing"
)

// App owns application-level orchestration: config, dependencies, and the
// long-running loops (HTTP, cycle sweeps, reflection, stats refresh).
type App struct {
	cfg *rpcfg.Config

	orch       *orchestrator.Orchestrator
	reflector  *reflection.Loop
	httpServer *pricinghttp.Server
	ledger     *ledger.Store
	traces     *ledger.CycleTraceStore

	refreshStats func(context.Context) error
}

// NewApp builds the application object from config without starting it.
func NewApp(cfg *rpcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts every loop and blocks until ctx cancels or one loop fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.orch == nil {
		return fmt.Errorf("orchestrator not initialized")
	}
	defer a.closeStores()

	group, ctx := errgroup.WithContext(ctx)

	if a.httpServer != nil {
		group.Go(func() error {
			logger.Infof("pricing http listening on %s", a.httpServer.Addr())
			if err := a.httpServer.Start(ctx); err != nil {
				return fmt.Errorf("pricing http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		a.runSweepLoop(ctx)
		return nil
	})

	group.Go(func() error {
		a.runReflectionLoop(ctx)
		return nil
	})

	if a.refreshStats != nil {
		group.Go(func() error {
			a.runStatsLoop(ctx)
			return nil
		})
	}

	return group.Wait()
}

func (a *App) runSweepLoop(ctx context.Context) {
	interval, ok := scheduler.ParseIntervalDuration(a.cfg.Pricing.CycleInterval)
	if !ok {
		logger.Errorf("invalid cycle interval %q, sweep loop disabled", a.cfg.Pricing.CycleInterval)
		return
	}
	sched := scheduler.NewAlignedScheduler(ctx, interval, time.Duration(a.cfg.Pricing.CycleOffsetSeconds)*time.Second)
	sched.RunImmediately = a.cfg.Pricing.RunImmediately
	sched.Start(func() {
		if err := a.orch.RunSweep(ctx); err != nil {
			logger.Errorf("scheduled sweep failed: %v", err)
		}
	})
}

func (a *App) runReflectionLoop(ctx context.Context) {
	interval, ok := scheduler.ParseIntervalDuration(a.cfg.Reflection.Interval)
	if !ok {
		logger.Errorf("invalid reflection interval %q, reflection loop disabled", a.cfg.Reflection.Interval)
		return
	}
	sched := scheduler.NewAlignedScheduler(ctx, interval, 0)
	sched.Start(func() {
		if err := a.reflector.RunOnce(ctx); err != nil {
			logger.Errorf("reflection pass failed: %v", err)
		}
	})
}

func (a *App) runStatsLoop(ctx context.Context) {
	interval, ok := scheduler.ParseIntervalDuration(a.cfg.Pricing.StatsRefreshInterval)
	if !ok {
		logger.Errorf("invalid stats refresh interval %q, stats loop disabled", a.cfg.Pricing.StatsRefreshInterval)
		return
	}
	if err := a.refreshStats(ctx); err != nil {
		logger.Warnf("initial category stats refresh failed: %v", err)
	}
	sched := scheduler.NewAlignedScheduler(ctx, interval, 0)
	sched.Start(func() {
		if err := a.refreshStats(ctx); err != nil {
			logger.Warnf("category stats refresh failed: %v", err)
		}
	})
}

func (a *App) closeStores() {
	if a.traces != nil {
		if err := a.traces.Close(); err != nil {
			logger.Warnf("closing cycle trace store failed: %v", err)
		}
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			logger.Warnf("closing ledger failed: %v", err)
		}
	}
}

// Orchestrator exposes the cycle orchestrator (for testing harnesses).
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orch
}
