package pricemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundCents(t *testing.T) {
	assert.InDelta(t, 19.68, RoundCents(19.684475), 1e-12)
	assert.InDelta(t, 19.69, RoundCents(19.685), 1e-12)
	assert.InDelta(t, 17.99, RoundCents(17.99), 1e-12)
	assert.InDelta(t, -2.35, RoundCents(-2.345), 1e-12)
	assert.Equal(t, 0.0, RoundCents(math.NaN()))
	assert.Equal(t, 0.0, RoundCents(math.Inf(1)))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(0.1+0.2, 0.3))
	assert.True(t, Equal(17.99, 17.99))
	assert.False(t, Equal(17.99, 18.00))
}

func TestComparisons(t *testing.T) {
	assert.True(t, LT(17.99, 18.00))
	assert.True(t, GT(18.00, 17.99))
	assert.True(t, LTE(17.99, 17.99))
	assert.True(t, GTE(17.99, 17.99))
	assert.False(t, GT(17.99, 17.99))
}

func TestClamp(t *testing.T) {
	assert.InDelta(t, 15.0, Clamp(12.0, 15.0, 20.0), 1e-12)
	assert.InDelta(t, 20.0, Clamp(25.0, 15.0, 20.0), 1e-12)
	assert.InDelta(t, 17.5, Clamp(17.5, 15.0, 20.0), 1e-12)
	// inverted bounds collapse to the floor
	assert.InDelta(t, 15.0, Clamp(10.0, 15.0, 12.0), 1e-12)
	assert.InDelta(t, 15.0, Clamp(20.0, 15.0, 12.0), 1e-12)
}

func TestPctOf(t *testing.T) {
	assert.InDelta(t, 0.9245, PctOf(18.49, 0.05), 1e-12)
	assert.InDelta(t, 1.799, PctOf(17.99, 0.1), 1e-12)
	assert.Equal(t, 0.0, PctOf(math.NaN(), 0.05))
}
