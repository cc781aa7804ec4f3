package signals

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ternarybob/dailyscan/internal/marketdata"
)

// ScanComputer computes scan rows from daily bars
type ScanComputer struct {
	config ScanConfig
}

// NewScanComputer creates a ScanComputer with default windows
func NewScanComputer() *ScanComputer {
	return NewScanComputerWithConfig(DefaultScanConfig())
}

// NewScanComputerWithConfig creates a ScanComputer with custom windows
func NewScanComputerWithConfig(config ScanConfig) *ScanComputer {
	return &ScanComputer{config: config}
}

// Compute computes the scan row for ticker from bars ordered oldest first.
// With too little history the returned row is an error note and the error
// wraps ErrInsufficientHistory.
func Compute(ticker string, bars []marketdata.Bar) (Row, error) {
	return NewScanComputer().Compute(ticker, bars)
}

// Compute computes the scan row for ticker from bars ordered oldest first.
func (c *ScanComputer) Compute(ticker string, bars []marketdata.Bar) (Row, error) {
	closes := make([]float64, 0, len(bars))
	volumes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Close <= 0 {
			continue
		}
		closes = append(closes, b.Close)
		volumes = append(volumes, float64(b.Volume))
	}

	if len(closes) < c.config.MinBars || len(closes) < 2 {
		err := fmt.Errorf("%w: %d bars, need %d", ErrInsufficientHistory, len(closes), c.config.MinBars)
		return ErrorRow(ticker, err), err
	}

	last := len(bars) - 1
	for bars[last].Close <= 0 {
		last--
	}

	n := len(closes)
	price := closes[n-1]
	prev := closes[:n-1]

	row := Row{
		Ticker:       ticker,
		Date:         bars[last].Date,
		Price:        round(price, c.config.PricePlaces),
		DayChangePct: c.percent(pctChange(closes[n-2], price), true),
	}

	// Golden cross happens on the last bar only: fast below slow yesterday, above today
	if len(prev) >= c.config.LongMA {
		row.GoldenCross = sma(prev, c.config.ShortMA) < sma(prev, c.config.LongMA) &&
			sma(closes, c.config.ShortMA) > sma(closes, c.config.LongMA)
	}

	if avgVol := sma(volumes, c.config.VolumeWindow); avgVol > 0 {
		row.VolumeSpike = volumes[n-1] > c.config.VolumeSpikeRatio*avgVol
	}

	ma60 := sma(closes, c.config.TrendMA)
	row.AboveMA60Pct = c.percent(pctChange(ma60, price), ma60 > 0)

	return row, nil
}

func (c *ScanComputer) percent(value float64, valid bool) decimal.NullDecimal {
	if !valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(round(value, c.config.PercentPlaces))
}
