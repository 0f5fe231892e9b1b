package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reprice/internal/types"
)

func competitorBundle(status types.SourceStatus, prices ...float64) types.SignalBundle {
	records := make([]types.CompetitorPriceRecord, 0, len(prices))
	for i, p := range prices {
		records = append(records, types.CompetitorPriceRecord{
			Competitor: string(rune('A' + i)),
			Price:      p,
			Confidence: 1.0,
			ScrapedAt:  time.Now(),
		})
	}
	return types.SignalBundle{
		ProductID:        "P1001",
		CompetitorPrices: records,
		Sources:          map[types.Source]types.SourceStatus{types.SourceCompetitor: status},
	}
}

func TestCompetitorAnalyzer_Analyze(t *testing.T) {
	analyzer := NewCompetitorAnalyzer()

	t.Run("Even Count Median Averages Middles", func(t *testing.T) {
		a := analyzer.Analyze(competitorBundle(types.SourcePresent, 18.99, 19.99), 17.99)
		assert.InDelta(t, 19.49, a.MedianPrice, 1e-9)
		assert.InDelta(t, (19.49-17.99)/19.49*100, a.PriceAdvantagePct, 1e-9)
		assert.Equal(t, "lowest", a.Position)
		assert.False(t, a.LowConfidence)
	})

	t.Run("Odd Count Median", func(t *testing.T) {
		a := analyzer.Analyze(competitorBundle(types.SourcePresent, 10, 12, 30), 15)
		assert.InDelta(t, 12.0, a.MedianPrice, 1e-9)
		assert.Equal(t, "competitive", a.Position)
	})

	t.Run("Highest Position", func(t *testing.T) {
		a := analyzer.Analyze(competitorBundle(types.SourcePresent, 10, 12), 15)
		assert.Equal(t, "highest", a.Position)
		assert.True(t, a.PriceAdvantagePct < 0)
	})

	t.Run("No Records Is Neutral Low Confidence", func(t *testing.T) {
		a := analyzer.Analyze(types.SignalBundle{}, 15)
		assert.True(t, a.LowConfidence)
		assert.Equal(t, "unknown", a.Position)
		assert.Zero(t, a.MedianPrice)
		assert.Zero(t, a.PriceAdvantagePct)
	})

	t.Run("Stale Source Lowers Confidence", func(t *testing.T) {
		a := analyzer.Analyze(competitorBundle(types.SourceStale, 18.99, 19.99), 17.99)
		assert.True(t, a.LowConfidence)
	})

	t.Run("Weak Record Confidence Flags Assessment", func(t *testing.T) {
		bundle := competitorBundle(types.SourcePresent, 18.99, 19.99)
		for i := range bundle.CompetitorPrices {
			bundle.CompetitorPrices[i].Confidence = 0.3
		}
		a := analyzer.Analyze(bundle, 17.99)
		assert.True(t, a.LowConfidence)
	})
}
