package records

import "github.com/shopspring/decimal"

// Round2 rounds f to two decimal places using decimal arithmetic, so values
// such as 2.675 round on their printed form rather than their binary one.
func Round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
