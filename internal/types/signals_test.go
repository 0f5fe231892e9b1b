package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceCompleteness(t *testing.T) {
	t.Run("Weights", func(t *testing.T) {
		full := SignalBundle{Sources: map[Source]SourceStatus{
			SourceCompetitor: SourcePresent,
			SourceSales:      SourcePresent,
			SourceInventory:  SourcePresent,
		}}
		assert.InDelta(t, 1.0, full.SourceCompleteness(), 1e-9)

		mixed := SignalBundle{Sources: map[Source]SourceStatus{
			SourceCompetitor: SourcePresent,
			SourceSales:      SourceStale,
			SourceInventory:  SourceMissing,
		}}
		assert.InDelta(t, 1.6/3, mixed.SourceCompleteness(), 1e-9)

		assert.Equal(t, 0.0, SignalBundle{}.SourceCompleteness())
	})

	t.Run("Bit Identical Across Calls", func(t *testing.T) {
		b := SignalBundle{Sources: map[Source]SourceStatus{
			SourceCompetitor: SourceStale,
			SourceSales:      SourcePresent,
			SourceInventory:  SourceStale,
		}}
		want := math.Float64bits(b.SourceCompleteness())
		for i := 0; i < 5000; i++ {
			if got := math.Float64bits(b.SourceCompleteness()); got != want {
				t.Fatalf("run %d: completeness bits differ", i)
			}
		}
	})
}

func TestMissingAll(t *testing.T) {
	assert.True(t, SignalBundle{}.MissingAll())
	assert.True(t, SignalBundle{Sources: map[Source]SourceStatus{
		SourceCompetitor: SourceMissing,
		SourceSales:      SourceMissing,
		SourceInventory:  SourceMissing,
	}}.MissingAll())
	assert.False(t, SignalBundle{Sources: map[Source]SourceStatus{
		SourceCompetitor: SourceMissing,
		SourceSales:      SourceStale,
		SourceInventory:  SourceMissing,
	}}.MissingAll())
}
