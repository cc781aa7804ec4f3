package signals

import (
	"github.com/shopspring/decimal"
)

// round rounds half away from zero to the given decimal places. Rounding
// goes through decimal so 2.675 becomes 2.68, not 2.67.
func round(value float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(value).Round(places)
}

// sma calculates the simple moving average of the last n values
func sma(values []float64, n int) float64 {
	if len(values) < n || n <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(values) - n; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(n)
}

// pctChange calculates the percentage change from old to new
func pctChange(old, newVal float64) float64 {
	if old == 0 {
		return 0
	}
	return ((newVal - old) / old) * 100
}
