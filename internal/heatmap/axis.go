package heatmap

import (
	"math"

	"github.com/shopspring/decimal"
)

// Size is the number of samples on each axis.
const Size = 8

// Axis is an ordered set of samples along one dimension.
type Axis [Size]float64

const (
	spotLow  = 0.7
	spotStep = 0.08

	volLow  = 0.1
	volStep = 0.06
)

// SpotAxis samples 70% to 126% of spot in 8% steps, rounded to whole
// currency units. The top sample is 1.26x, not 1.3x.
func SpotAxis(spot float64) Axis {
	var axis Axis
	for i := range axis {
		axis[i] = round(spot*(spotLow+float64(i)*spotStep), 0)
	}
	return axis
}

// VolatilityAxis is fixed at 10% to 52% in 6 point steps.
func VolatilityAxis() Axis {
	var axis Axis
	for j := range axis {
		axis[j] = round(volLow+float64(j)*volStep, 2)
	}
	return axis
}

// round works on the exact binary value of v, half away from zero, so 1.005
// rounds to 1.00. Non-finite values are returned unchanged.
func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloatWithExponent(v, -1100).Round(places).InexactFloat64()
}
