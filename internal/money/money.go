// Package money provides 2-decimal monetary rounding helpers.
// All running totals in the reporting engines round after each addition,
// so rounding must be exact rather than float-approximate.
package money

import "github.com/shopspring/decimal"

// Round2 rounds v half-up to 2 decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Add2 returns a+b rounded to 2 decimal places. Used for progressively
// rounded running totals.
func Add2(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).Float64()
	return f
}

// Percent2 returns v * pct/100 rounded to 2 decimal places.
func Percent2(v, pct float64) float64 {
	f, _ := decimal.NewFromFloat(v).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		Float64()
	return f
}
