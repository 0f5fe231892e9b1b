package pricemath

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	decimalEps  = decimal.NewFromFloat(1e-8)
	decimalZero = decimal.Zero
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimalZero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func LTE(a, b float64) bool { return decimalCompare(a, b) <= 0 }
func GTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }
func LT(a, b float64) bool  { return decimalCompare(a, b) < 0 }
func GT(a, b float64) bool  { return decimalCompare(a, b) > 0 }

// Equal compares two prices within the decimal epsilon.
func Equal(a, b float64) bool {
	diff := decFromFloat(a).Sub(decFromFloat(b)).Abs()
	return diff.Cmp(decimalEps) <= 0
}

// RoundCents rounds a price to two decimal places.
func RoundCents(val float64) float64 {
	return decToFloat(decFromFloat(val).Round(2))
}

// Clamp bounds val to [lo, hi] using decimal comparison. When lo > hi the
// lower bound wins; the caller records that as a policy violation.
func Clamp(val, lo, hi float64) float64 {
	if GT(lo, hi) {
		hi = lo
	}
	if LT(val, lo) {
		return lo
	}
	if GT(val, hi) {
		return hi
	}
	return val
}

// PctOf returns pct (e.g. 0.05) of base, in currency units.
func PctOf(base, pct float64) float64 {
	return decToFloat(decFromFloat(base).Mul(decFromFloat(pct)))
}
