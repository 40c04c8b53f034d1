package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundFloat rounds a float64 to a specified number of decimal places.
func RoundFloat(val float64, precision uint) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(val).Round(int32(precision)).Float64()
	return f
}

// RoundMoney rounds a monetary value to cents, half away from zero.
func RoundMoney(val float64) float64 {
	return RoundFloat(val, 2)
}

// SumMoney adds values in decimal arithmetic so long columns do not drift.
func SumMoney(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Round(2).Float64()
	return f
}
