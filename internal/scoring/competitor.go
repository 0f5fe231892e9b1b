package scoring

import (
	"fmt"
	"sort"

	"reprice/internal/types"
)

// CompetitorAnalyzer compares our current price against deduplicated
// competitor price records.
type CompetitorAnalyzer struct{}

func NewCompetitorAnalyzer() *CompetitorAnalyzer { return &CompetitorAnalyzer{} }

// Analyze computes the median competitor price and the signed advantage
// percentage. Zero records return a neutral low-confidence assessment
// rather than an error.
func (a *CompetitorAnalyzer) Analyze(bundle types.SignalBundle, currentPrice float64) types.CompetitorAssessment {
	records := bundle.CompetitorPrices
	if len(records) == 0 {
		return types.CompetitorAssessment{
			Position:      "unknown",
			Provenance:    "no competitor records; neutral",
			LowConfidence: true,
		}
	}

	prices := make([]float64, 0, len(records))
	var confSum float64
	for _, rec := range records {
		prices = append(prices, rec.Price)
		confSum = confSum + rec.Confidence
	}
	sort.Float64s(prices)

	median := medianOf(prices)
	minPrice, maxPrice := prices[0], prices[len(prices)-1]

	var advantagePct float64
	if median > 0 {
		advantagePct = (median - currentPrice) / median * 100
	}

	position := "competitive"
	switch {
	case currentPrice < minPrice:
		position = "lowest"
	case currentPrice > maxPrice:
		position = "highest"
	}

	avgConf := confSum / float64(len(records))

	return types.CompetitorAssessment{
		PriceAdvantagePct: advantagePct,
		MedianPrice:       median,
		MinPrice:          minPrice,
		MaxPrice:          maxPrice,
		Position:          position,
		RecordCount:       len(records),
		Provenance: fmt.Sprintf("%d competitors, median=%.2f range=[%.2f, %.2f], avg source confidence=%.2f, position=%s",
			len(records), median, minPrice, maxPrice, avgConf, position),
		LowConfidence: bundle.Sources[types.SourceCompetitor] != types.SourcePresent || avgConf < 0.5,
	}
}

// medianOf returns the median of sorted prices; even counts average the two
// middle values.
func medianOf(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
