package forecast

import (
	"github.com/shopspring/decimal"
)

// Slope returns the least-squares slope of values after scaling them to
// [0, 1], so trends of different price levels compare directly. Constant
// or single-element input has slope zero.
func Slope(values []decimal.Decimal) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}

	maxY, minY := values[0], values[0]
	for _, d := range values {
		maxY = decimal.Max(maxY, d)
		minY = decimal.Min(minY, d)
	}
	diff := maxY.Sub(minY)
	if diff.IsZero() {
		return decimal.Zero
	}

	sumX, sumY, sumXY, sumX2 := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for i, d := range values {
		x := decimal.NewFromInt(int64(i))
		y := d.Sub(minY).Div(diff)
		sumX = sumX.Add(x)
		sumY = sumY.Add(y)
		sumXY = sumXY.Add(x.Mul(y))
		sumX2 = sumX2.Add(x.Mul(x))
	}

	n := decimal.NewFromInt(int64(len(values)))
	denominator := n.Mul(sumX2).Sub(sumX.Mul(sumX))
	if denominator.IsZero() {
		return decimal.Zero
	}
	return n.Mul(sumXY).Sub(sumX.Mul(sumY)).Div(denominator)
}

// SlopeOf is Slope over float predictions
func SlopeOf(values []float64) decimal.Decimal {
	ds := make([]decimal.Decimal, len(values))
	for i, v := range values {
		ds[i] = decimal.NewFromFloat(v)
	}
	return Slope(ds)
}
