package heatmap

import (
	"fmt"
	"math"
)

// RGB is a display color.
type RGB struct {
	R, G, B uint8
}

// Neutral is used when the scale has no range (max price 0).
var Neutral = RGB{R: 0x33, G: 0x33, B: 0x33}

// ColorFor maps a price onto a linear green to red ramp relative to max.
func ColorFor(price, max float64) RGB {
	if max == 0 {
		return Neutral
	}

	intensity := math.Max(0, math.Min(price/max, 1))
	return RGB{
		R: uint8(math.Floor(255 * intensity)),
		G: uint8(math.Floor(255 * (1 - intensity))),
		B: 50,
	}
}

// String renders as a CSS rgb() value.
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Hex renders as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
