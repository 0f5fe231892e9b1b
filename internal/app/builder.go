package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"reprice/internal/catalog"
	rpcfg "reprice/internal/config"
	"reprice/internal/gateway/ledgerfeed"
	"reprice/internal/ledger"
	"reprice/internal/logger"
	"reprice/internal/orchestrator"
	"reprice/internal/policy"
	"reprice/internal/profile"
	"reprice/internal/reflection"
	"reprice/internal/scoring"
	"reprice/internal/signals"
	pricinghttp "reprice/internal/transport/http/pricing"
)

// AppBuilder assembles the application. Individual build steps can be
// overridden so tests and replay harnesses can swap in doubles.
type AppBuilder struct {
	cfg *rpcfg.Config

	ledgerFn   func(rpcfg.LedgerConfig) (*ledger.Store, error)
	tracesFn   func(rpcfg.LedgerConfig) (*ledger.CycleTraceStore, error)
	profilesFn func(rpcfg.PricingConfig) (*profile.Registry, error)
	narratorFn func(rpcfg.NarratorConfig) policy.ReasoningNarrator
	httpFn     func(rpcfg.AppConfig, pricinghttp.PricingService, *ledger.Store, *ledger.CycleTraceStore) (*pricinghttp.Server, error)

	competitorOverride signals.CompetitorDataSource
	salesOverride      signals.SalesDataSource
	inventoryOverride  signals.InventorySource
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *rpcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		ledgerFn:   buildLedgerStore,
		tracesFn:   buildTraceStore,
		profilesFn: buildProfileRegistry,
		narratorFn: buildNarrator,
		httpFn:     buildHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithSources overrides the signal sources, for replay and tests.
func WithSources(competitors signals.CompetitorDataSource, sales signals.SalesDataSource, inventory signals.InventorySource) AppBuilderOption {
	return func(b *AppBuilder) {
		b.competitorOverride = competitors
		b.salesOverride = sales
		b.inventoryOverride = inventory
	}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	store, err := b.ledgerFn(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("opening ledger failed: %w", err)
	}
	traces, err := b.tracesFn(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("opening cycle trace store failed: %w", err)
	}

	if err := seedCatalog(ctx, cfg.Catalog, store); err != nil {
		return nil, err
	}

	competitors := b.competitorOverride
	if competitors == nil {
		competitors = ledgerfeed.NewCompetitorFeed(store)
	}
	sales := b.salesOverride
	if sales == nil {
		sales = ledgerfeed.NewSalesFeed(store)
	}
	inventory := b.inventoryOverride
	if inventory == nil {
		inventory = ledgerfeed.NewInventoryFeed(store)
	}

	aggregator := signals.NewAggregator(competitors, sales, inventory)
	aggregator.SourceTimeout = time.Duration(cfg.Signals.SourceTimeoutSeconds) * time.Second
	aggregator.StaleAfter = time.Duration(cfg.Signals.StaleAfterHours) * time.Hour
	aggregator.SalesWindow = time.Duration(cfg.Pricing.SalesWindowDays) * 24 * time.Hour

	stats := scoring.NewCategoryStats(categoryStatsRefresher(store, sales, cfg.Pricing))

	demand := scoring.NewDemandScorer(stats)
	demand.Alpha = cfg.Pricing.DemandAlpha
	demand.Beta = cfg.Pricing.DemandBeta
	demand.DefaultElasticity = cfg.Pricing.DefaultElasticity
	demand.WindowDays = cfg.Pricing.SalesWindowDays
	demand.SmoothingDays = cfg.Pricing.VelocitySmoothing

	profiles, err := b.profilesFn(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	engine := policy.NewEngine(profiles)

	var narrator policy.ReasoningNarrator
	if cfg.Narrator.Enabled {
		narrator = b.narratorFn(cfg.Narrator)
		if narrator == nil {
			logger.Warnf("narrator enabled but none wired; decisions use templated explanations")
		}
	}
	explainer := policy.NewExplainer(narrator, time.Duration(cfg.Narrator.TimeoutSeconds)*time.Second)

	orch := orchestrator.New(orchestrator.Params{
		Aggregator:    aggregator,
		Demand:        demand,
		Inventory:     scoring.NewInventoryEvaluator(),
		Competitor:    scoring.NewCompetitorAnalyzer(),
		Engine:        engine,
		Explainer:     explainer,
		Ledger:        store,
		Traces:        traces,
		CycleDeadline: time.Duration(cfg.Pricing.CycleDeadlineSeconds) * time.Second,
		Workers:       cfg.Pricing.Workers,
		RetryAttempts: cfg.Ledger.RetryAttempts,
		RetryBackoff:  time.Duration(cfg.Ledger.RetryBackoffMS) * time.Millisecond,
	})

	reflector := reflection.NewLoop(store, sales)
	reflector.Horizon = time.Duration(cfg.Reflection.HorizonDays) * 24 * time.Hour
	reflector.Gain = cfg.Reflection.Gain
	reflector.MaxAdjustPct = cfg.Reflection.MaxAdjustmentPct

	httpServer, err := b.httpFn(cfg.App, orch, store, traces)
	if err != nil {
		return nil, fmt.Errorf("building pricing http server failed: %w", err)
	}

	return &App{
		cfg:          cfg,
		orch:         orch,
		reflector:    reflector,
		httpServer:   httpServer,
		ledger:       store,
		traces:       traces,
		refreshStats: stats.Refresh,
	}, nil
}

func buildLedgerStore(cfg rpcfg.LedgerConfig) (*ledger.Store, error) {
	return ledger.NewStore(cfg.Path)
}

func buildTraceStore(cfg rpcfg.LedgerConfig) (*ledger.CycleTraceStore, error) {
	return ledger.NewCycleTraceStore(cfg.TracePath)
}

func buildProfileRegistry(cfg rpcfg.PricingConfig) (*profile.Registry, error) {
	if _, err := os.Stat(cfg.ProfilesPath); err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("profiles file %s not found, using built-in defaults", cfg.ProfilesPath)
			return profile.NewStaticRegistry(nil), nil
		}
		return nil, fmt.Errorf("checking profiles file failed: %w", err)
	}
	return profile.NewRegistry(cfg.ProfilesPath)
}

// buildNarrator is the default narrator hook. The binary ships without a
// narrator; deployments wire one through a builder option.
func buildNarrator(rpcfg.NarratorConfig) policy.ReasoningNarrator {
	return nil
}

func buildHTTPServer(cfg rpcfg.AppConfig, svc pricinghttp.PricingService, store *ledger.Store, traces *ledger.CycleTraceStore) (*pricinghttp.Server, error) {
	return pricinghttp.NewServer(pricinghttp.ServerConfig{
		Addr:    cfg.HTTPAddr,
		Service: svc,
		Ledger:  store,
		Traces:  traces,
	})
}

func seedCatalog(ctx context.Context, cfg rpcfg.CatalogConfig, store *ledger.Store) error {
	products, err := catalog.Load(cfg.Path)
	if err != nil {
		return fmt.Errorf("loading catalog failed: %w", err)
	}
	if len(products) == 0 {
		return nil
	}
	added, err := store.SeedProducts(ctx, products)
	if err != nil {
		return fmt.Errorf("seeding catalog failed: %w", err)
	}
	if added > 0 {
		logger.Infof("seeded %d new products from catalog", added)
	}
	return nil
}

// categoryStatsRefresher recomputes per-category velocity bands from every
// active product's trailing sales, for peer normalization.
func categoryStatsRefresher(store *ledger.Store, sales signals.SalesDataSource, cfg rpcfg.PricingConfig) scoring.RefreshFunc {
	window := time.Duration(cfg.SalesWindowDays) * 24 * time.Hour
	return func(ctx context.Context) (map[string]scoring.Band, scoring.Band, error) {
		products, err := store.ActiveProducts(ctx)
		if err != nil {
			return nil, scoring.Band{}, err
		}
		now := time.Now()
		categories := make(map[string]scoring.Band)
		var global scoring.Band
		for _, p := range products {
			records, err := sales.Fetch(ctx, p.ID, window)
			if err != nil {
				logger.Debugf("stats refresh: sales fetch failed for %s: %v", p.ID, err)
				continue
			}
			velocity := scoring.SalesVelocity(records, now, cfg.SalesWindowDays, cfg.VelocitySmoothing)
			categories[p.Category] = extendBand(categories[p.Category], velocity)
			global = extendBand(global, velocity)
		}
		return categories, global, nil
	}
}

func extendBand(b scoring.Band, velocity float64) scoring.Band {
	if b.Count == 0 {
		return scoring.Band{MinVelocity: velocity, MaxVelocity: velocity, Count: 1}
	}
	if velocity < b.MinVelocity {
		b.MinVelocity = velocity
	}
	if velocity > b.MaxVelocity {
		b.MaxVelocity = velocity
	}
	b.Count++
	return b
}
