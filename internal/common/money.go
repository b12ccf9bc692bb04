package common

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds a price to cents, half away from zero. v must be finite.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidPrice reports whether v can be used as a limit or listing price.
func ValidPrice(v float64) bool {
	return Finite(v) && v > 0
}
