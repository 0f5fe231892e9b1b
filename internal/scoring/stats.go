package scoring

import (
	"context"
	"sync"
	"time"

	"reprice/internal/logger"
)

// Band holds min/max sales velocity across the products of one category.
type Band struct {
	MinVelocity float64
	MaxVelocity float64
	Count       int
}

// minPeers is the peer count below which category-relative normalization
// falls back to the global band.
const minPeers = 3

// StatsSnapshot is an immutable view of the normalization statistics.
type StatsSnapshot struct {
	Categories map[string]Band
	Global     Band
	RefreshedAt time.Time
}

// RefreshFunc recomputes the bands, typically by scanning active products
// and their recent sales. Runs on a coarse schedule, never per cycle.
type RefreshFunc func(ctx context.Context) (map[string]Band, Band, error)

// CategoryStats is the read-mostly normalization cache shared by concurrent
// cycles. Scorers read a snapshot; only Refresh writes.
type CategoryStats struct {
	mu       sync.RWMutex
	snapshot StatsSnapshot
	refresh  RefreshFunc
}

func NewCategoryStats(refresh RefreshFunc) *CategoryStats {
	return &CategoryStats{
		snapshot: StatsSnapshot{Categories: map[string]Band{}},
		refresh:  refresh,
	}
}

// Snapshot returns the current statistics view.
func (s *CategoryStats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SetSnapshot replaces the statistics wholesale. Used by Refresh and tests.
func (s *CategoryStats) SetSnapshot(categories map[string]Band, global Band) {
	if categories == nil {
		categories = map[string]Band{}
	}
	s.mu.Lock()
	s.snapshot = StatsSnapshot{Categories: categories, Global: global, RefreshedAt: time.Now()}
	s.mu.Unlock()
}

// Refresh recomputes the bands via the configured RefreshFunc.
func (s *CategoryStats) Refresh(ctx context.Context) error {
	if s.refresh == nil {
		return nil
	}
	categories, global, err := s.refresh(ctx)
	if err != nil {
		return err
	}
	s.SetSnapshot(categories, global)
	logger.Debugf("category stats refreshed: %d categories, global band [%.3f, %.3f]",
		len(categories), global.MinVelocity, global.MaxVelocity)
	return nil
}

// NormalizeVelocity maps velocity into [0,1] against the category band,
// falling back to the global band when the category has fewer than three
// peers. A degenerate band yields the neutral 0.5.
func (snap StatsSnapshot) NormalizeVelocity(category string, velocity float64) float64 {
	band, ok := snap.Categories[category]
	if !ok || band.Count < minPeers {
		band = snap.Global
	}
	spread := band.MaxVelocity - band.MinVelocity
	if band.Count == 0 || spread <= 0 {
		return 0.5
	}
	norm := (velocity - band.MinVelocity) / spread
	return clamp01(norm)
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
