package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"reprice/internal/types"

	"github.com/markcheno/go-talib"
)

const (
	defaultAlpha           = 0.6
	defaultBeta            = 0.4
	defaultElasticityValue = -1.0
	defaultWindowDays      = 30
	defaultSmoothingDays   = 7

	// magnitude at which elasticity risk saturates to 1
	elasticityRiskScale = 3.0

	// distinct price points required before regressing elasticity
	minElasticityPoints = 3
)

// DemandScorer converts sales signals into a bounded demand score. Pure
// given a stats snapshot: identical inputs yield identical assessments.
type DemandScorer struct {
	Alpha             float64
	Beta              float64
	DefaultElasticity float64
	WindowDays        int
	SmoothingDays     int
	Stats             *CategoryStats
}

func NewDemandScorer(stats *CategoryStats) *DemandScorer {
	return &DemandScorer{
		Alpha:             defaultAlpha,
		Beta:              defaultBeta,
		DefaultElasticity: defaultElasticityValue,
		WindowDays:        defaultWindowDays,
		SmoothingDays:     defaultSmoothingDays,
		Stats:             stats,
	}
}

// Score computes demand_score = clamp01(alpha*normVelocity + beta*(1-risk)).
func (s *DemandScorer) Score(product types.Product, bundle types.SignalBundle) types.DemandAssessment {
	if bundle.Sources[types.SourceSales] == types.SourceMissing || len(bundle.SalesRecords) == 0 {
		return types.DemandAssessment{
			Score:              0.5,
			Elasticity:         s.defaultElasticity(),
			ElasticityFallback: true,
			Provenance:         "no sales data; neutral score",
			LowConfidence:      true,
		}
	}

	windowDays := s.WindowDays
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	velocity := SalesVelocity(bundle.SalesRecords, bundle.CollectedAt, windowDays, s.smoothingDays())

	elasticity, fallback := estimateElasticity(bundle.SalesRecords, s.defaultElasticity())
	risk := clamp01(math.Abs(elasticity) / elasticityRiskScale)

	var normVelocity float64 = 0.5
	if s.Stats != nil {
		normVelocity = s.Stats.Snapshot().NormalizeVelocity(product.Category, velocity)
	}

	alpha, beta := s.weights()
	score := clamp01(alpha*normVelocity + beta*(1-risk))

	prov := fmt.Sprintf("velocity=%.3f/day over %dd (%d sales), elasticity=%.2f", velocity, windowDays, len(bundle.SalesRecords), elasticity)
	if fallback {
		prov += " (default; <3 price points)"
	}
	if bundle.Sources[types.SourceSales] == types.SourceStale {
		prov += ", stale"
	}

	return types.DemandAssessment{
		Score:              score,
		Velocity:           velocity,
		Elasticity:         elasticity,
		ElasticityFallback: fallback,
		Provenance:         prov,
		LowConfidence:      bundle.Sources[types.SourceSales] != types.SourcePresent,
	}
}

func (s *DemandScorer) weights() (float64, float64) {
	alpha, beta := s.Alpha, s.Beta
	if alpha <= 0 && beta <= 0 {
		return defaultAlpha, defaultBeta
	}
	sum := alpha + beta
	if sum <= 0 {
		return defaultAlpha, defaultBeta
	}
	return alpha / sum, beta / sum
}

func (s *DemandScorer) defaultElasticity() float64 {
	if s.DefaultElasticity != 0 {
		return s.DefaultElasticity
	}
	return defaultElasticityValue
}

func (s *DemandScorer) smoothingDays() int {
	if s.SmoothingDays > 0 {
		return s.SmoothingDays
	}
	return defaultSmoothingDays
}

// SalesVelocity computes units/day over the trailing window ending at
// asOf. When the daily series is long enough it smooths with an EMA and
// takes the last value; otherwise it averages over the whole window.
func SalesVelocity(records []types.SaleRecord, asOf time.Time, windowDays, smoothingDays int) float64 {
	if len(records) == 0 || windowDays <= 0 {
		return 0
	}
	daily := bucketDaily(records, asOf, windowDays)

	if smoothingDays > 1 && len(daily) >= smoothingDays*2 {
		smoothed := talib.Ema(daily, smoothingDays)
		last := smoothed[len(smoothed)-1]
		if !math.IsNaN(last) && last > 0 {
			return last
		}
	}

	var total float64
	for _, units := range daily {
		total += units
	}
	return total / float64(windowDays)
}

// bucketDaily splits sales into per-day unit counts, oldest day first.
func bucketDaily(records []types.SaleRecord, asOf time.Time, windowDays int) []float64 {
	daily := make([]float64, windowDays)
	windowStart := asOf.AddDate(0, 0, -windowDays)
	for _, rec := range records {
		if rec.Timestamp.Before(windowStart) || rec.Timestamp.After(asOf) {
			continue
		}
		idx := int(rec.Timestamp.Sub(windowStart).Hours() / 24)
		if idx < 0 {
			idx = 0
		}
		if idx >= windowDays {
			idx = windowDays - 1
		}
		daily[idx] += float64(rec.Quantity)
	}
	return daily
}

// estimateElasticity regresses ln(quantity) on ln(price) over distinct price
// points. Fewer than three points falls back to the configured default.
func estimateElasticity(records []types.SaleRecord, fallback float64) (float64, bool) {
	byPrice := make(map[float64]float64)
	for _, rec := range records {
		if rec.Price <= 0 || rec.Quantity <= 0 {
			continue
		}
		key := math.Round(rec.Price*100) / 100
		byPrice[key] += float64(rec.Quantity)
	}
	if len(byPrice) < minElasticityPoints {
		return fallback, true
	}

	// accumulate in sorted price order so identical input regresses to the
	// exact same bits
	prices := make([]float64, 0, len(byPrice))
	for price := range byPrice {
		prices = append(prices, price)
	}
	sort.Float64s(prices)

	xs := make([]float64, 0, len(prices))
	ys := make([]float64, 0, len(prices))
	for _, price := range prices {
		xs = append(xs, math.Log(price))
		ys = append(ys, math.Log(byPrice[price]))
	}
	slope, ok := olsSlope(xs, ys)
	if !ok {
		return fallback, true
	}
	return slope, false
}

func olsSlope(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	if n < 2 {
		return 0, false
	}
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n
	var num, den float64
	for i := range xs {
		dx := xs[i] - meanX
		num += dx * (ys[i] - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}
