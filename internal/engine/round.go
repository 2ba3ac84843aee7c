package engine

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Rounding is half-to-even throughout: whole silver for money, one decimal
// for percentages, two decimals for historical means. Fractional rounding
// acts on the exact binary value of x, so 2.675 (stored as 2.67499...)
// becomes 2.67.

func roundInt(x float64) int64 {
	return int64(math.RoundToEven(x))
}

func round1(x float64) float64 { return roundPlaces(x, 1) }

func round2(x float64) float64 { return roundPlaces(x, 2) }

func roundPlaces(x float64, places int) float64 {
	// FormatFloat rounds the exact binary expansion, ties to even.
	d, err := decimal.NewFromString(strconv.FormatFloat(x, 'f', places, 64))
	if err != nil {
		return x // NaN or Inf
	}
	return d.InexactFloat64()
}
