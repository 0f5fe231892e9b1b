package signals

import (
	"context"
	"sort"
	"sync"
	"time"

	"reprice/internal/logger"
	"reprice/internal/types"

	"golang.org/x/sync/errgroup"
)

// Aggregator fans out to the three signal collaborators and normalizes their
// results into a SignalBundle. Each source runs under its own timeout; a
// failed or timed-out source is marked missing instead of failing the call.
type Aggregator struct {
	Competitors CompetitorDataSource
	Sales       SalesDataSource
	Inventory   InventorySource

	SourceTimeout time.Duration
	SalesWindow   time.Duration
	StaleAfter    time.Duration

	nowFn func() time.Time
}

const (
	defaultSourceTimeout = 5 * time.Second
	defaultSalesWindow   = 30 * 24 * time.Hour
	defaultStaleAfter    = 24 * time.Hour
)

func NewAggregator(competitors CompetitorDataSource, sales SalesDataSource, inventory InventorySource) *Aggregator {
	return &Aggregator{
		Competitors:   competitors,
		Sales:         sales,
		Inventory:     inventory,
		SourceTimeout: defaultSourceTimeout,
		SalesWindow:   defaultSalesWindow,
		StaleAfter:    defaultStaleAfter,
		nowFn:         time.Now,
	}
}

// Collect gathers a best-effort bundle. It returns DataUnavailableError only
// when all three sources fail; partial data is degradation, not an error.
func (a *Aggregator) Collect(ctx context.Context, productID string) (types.SignalBundle, error) {
	nowFn := a.nowFn
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn()
	bundle := types.SignalBundle{
		ProductID:   productID,
		CollectedAt: now,
		Sources:     make(map[types.Source]types.SourceStatus, 3),
	}

	var mu sync.Mutex
	causes := make(map[types.Source]error)
	markFailed := func(src types.Source, err error) {
		mu.Lock()
		bundle.Sources[src] = types.SourceMissing
		causes[src] = err
		mu.Unlock()
		logger.Warnf("signal source %s failed for %s: %v", src, productID, err)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		cctx, cancel := a.sourceContext(egCtx)
		defer cancel()
		records, err := a.Competitors.Fetch(cctx, productID)
		if err != nil {
			markFailed(types.SourceCompetitor, err)
			return nil
		}
		records = dedupeCompetitors(records)
		status := types.SourcePresent
		if a.recordsStale(records, now) {
			status = types.SourceStale
		}
		mu.Lock()
		bundle.CompetitorPrices = records
		bundle.Sources[types.SourceCompetitor] = status
		mu.Unlock()
		return nil
	})

	eg.Go(func() error {
		cctx, cancel := a.sourceContext(egCtx)
		defer cancel()
		window := a.SalesWindow
		if window <= 0 {
			window = defaultSalesWindow
		}
		records, err := a.Sales.Fetch(cctx, productID, window)
		if err != nil {
			markFailed(types.SourceSales, err)
			return nil
		}
		sort.Slice(records, func(i, j int) bool {
			return records[i].Timestamp.Before(records[j].Timestamp)
		})
		mu.Lock()
		bundle.SalesRecords = records
		bundle.Sources[types.SourceSales] = types.SourcePresent
		mu.Unlock()
		return nil
	})

	eg.Go(func() error {
		cctx, cancel := a.sourceContext(egCtx)
		defer cancel()
		snap, err := a.Inventory.Fetch(cctx, productID)
		if err != nil {
			markFailed(types.SourceInventory, err)
			return nil
		}
		mu.Lock()
		bundle.Inventory = &snap
		bundle.Sources[types.SourceInventory] = types.SourcePresent
		mu.Unlock()
		return nil
	})

	_ = eg.Wait()

	if bundle.MissingAll() {
		return bundle, &DataUnavailableError{ProductID: productID, Causes: causes}
	}
	return bundle, nil
}

func (a *Aggregator) sourceContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := a.SourceTimeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	return context.WithTimeout(parent, timeout)
}

func (a *Aggregator) recordsStale(records []types.CompetitorPriceRecord, now time.Time) bool {
	if a.StaleAfter <= 0 || len(records) == 0 {
		return len(records) == 0
	}
	cutoff := now.Add(-a.StaleAfter)
	for _, rec := range records {
		if rec.ScrapedAt.After(cutoff) {
			return false
		}
	}
	return true
}

// dedupeCompetitors keeps only the most recent scrape per competitor,
// deduplicated by (competitor, scraped_at); equal scrape times keep the
// lower price.
func dedupeCompetitors(records []types.CompetitorPriceRecord) []types.CompetitorPriceRecord {
	if len(records) == 0 {
		return records
	}
	latest := make(map[string]types.CompetitorPriceRecord, len(records))
	for _, rec := range records {
		prev, ok := latest[rec.Competitor]
		switch {
		case !ok || rec.ScrapedAt.After(prev.ScrapedAt):
			latest[rec.Competitor] = rec
		case rec.ScrapedAt.Equal(prev.ScrapedAt) && rec.Price < prev.Price:
			latest[rec.Competitor] = rec
		}
	}
	out := make([]types.CompetitorPriceRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Competitor < out[j].Competitor })
	return out
}
