// Package signals computes the daily scan row for each ticker: last price,
// day change, 5/20 moving average golden cross, volume spike and distance
// from the 60-day moving average.
package signals

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInsufficientHistory is returned when there are too few bars to compute
// the longest moving average.
var ErrInsufficientHistory = errors.New("insufficient history")

// Row is one ticker's scan result. A row with a non-empty Error carries only
// the ticker; every other field is zero.
type Row struct {
	Ticker       string
	Date         time.Time
	Price        decimal.Decimal
	DayChangePct decimal.NullDecimal
	GoldenCross  bool
	VolumeSpike  bool
	AboveMA60Pct decimal.NullDecimal
	Error        string
}

// HasError reports whether the row is an error note.
func (r Row) HasError() bool {
	return r.Error != ""
}

// ErrorRow creates the error note row for a ticker.
func ErrorRow(ticker string, err error) Row {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Row{Ticker: ticker, Error: msg}
}

// ScanConfig holds the signal windows and thresholds.
type ScanConfig struct {
	ShortMA          int     // Fast moving average (default: 5)
	LongMA           int     // Slow moving average (default: 20)
	TrendMA          int     // Trend moving average (default: 60)
	VolumeWindow     int     // Average volume window (default: 20)
	VolumeSpikeRatio float64 // Last volume above ratio x average is a spike (default: 1.5)
	MinBars          int     // Bars required before computing (default: 60)
	PricePlaces      int32
	PercentPlaces    int32
}

// DefaultScanConfig returns the standard daily scan windows
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		ShortMA:          5,
		LongMA:           20,
		TrendMA:          60,
		VolumeWindow:     20,
		VolumeSpikeRatio: 1.5,
		MinBars:          60,
		PricePlaces:      4,
		PercentPlaces:    2,
	}
}
