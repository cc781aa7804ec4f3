package signals

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/dailyscan/internal/marketdata"
)

var firstDay = time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)

// makeBars builds one bar per close, one day apart, all with volume 1000.
func makeBars(closes []float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, len(closes))
	for i, c := range closes {
		bars[i] = marketdata.Bar{
			Date:   firstDay.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func TestCompute_GoldenCrossAndVolumeSpike(t *testing.T) {
	// 59 falling closes keep the 5-day average under the 20-day one, then a
	// jump to 200 crosses it on the last bar
	closes := make([]float64, 0, 60)
	for i := 0; i < 59; i++ {
		closes = append(closes, float64(200-i))
	}
	closes = append(closes, 200)
	bars := makeBars(closes)
	bars[len(bars)-1].Volume = 2000

	row, err := Compute("2330.TW", bars)
	require.NoError(t, err)

	assert.Equal(t, "2330.TW", row.Ticker)
	assert.Equal(t, firstDay.AddDate(0, 0, 59), row.Date)
	assert.Equal(t, "200", row.Price.String())
	assert.True(t, row.DayChangePct.Valid)
	assert.Equal(t, "40.85", row.DayChangePct.Decimal.String())
	assert.True(t, row.GoldenCross)
	assert.True(t, row.VolumeSpike)
	assert.Equal(t, "16.63", row.AboveMA60Pct.Decimal.String())
	assert.False(t, row.HasError())
}

func TestCompute_SteadyUptrend(t *testing.T) {
	closes := make([]float64, 70)
	for i := range closes {
		closes[i] = 100 + 0.5*float64(i)
	}

	row, err := Compute("AAPL", makeBars(closes))
	require.NoError(t, err)

	assert.Equal(t, "134.5", row.Price.String())
	assert.Equal(t, "0.37", row.DayChangePct.Decimal.String())
	assert.False(t, row.GoldenCross, "fast average was already above the slow one")
	assert.False(t, row.VolumeSpike)
	assert.Equal(t, "12.32", row.AboveMA60Pct.Decimal.String())
}

func TestCompute_PriceRounding(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 10
	}
	closes[59] = 12.345678

	row, err := Compute("0050.TW", makeBars(closes))
	require.NoError(t, err)
	assert.Equal(t, "12.3457", row.Price.String())
}

func TestCompute_SkipsEmptySessions(t *testing.T) {
	closes := make([]float64, 61)
	for i := range closes {
		closes[i] = 50
	}
	bars := makeBars(closes)
	bars[60].Close = 0 // trailing null session

	row, err := Compute("6488.TWO", bars)
	require.NoError(t, err)
	assert.Equal(t, firstDay.AddDate(0, 0, 59), row.Date)
	assert.Equal(t, "0", row.DayChangePct.Decimal.String())
}

func TestCompute_InsufficientHistory(t *testing.T) {
	tests := []struct {
		name string
		bars []marketdata.Bar
	}{
		{"no bars", nil},
		{"one bar", makeBars([]float64{10})},
		{"59 bars", makeBars(make59(10))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := Compute("NEW", tt.bars)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInsufficientHistory))
			assert.True(t, row.HasError())
			assert.Equal(t, "NEW", row.Ticker)
			assert.Contains(t, row.Error, "insufficient history")
			assert.True(t, row.Price.IsZero())
		})
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, "2.68", round(2.675, 2).String())
	assert.Equal(t, "-1.24", round(-1.235, 2).String())
	assert.True(t, round(1.5, 0).Equal(decimal.NewFromInt(2)))
}

func make59(v float64) []float64 {
	out := make([]float64, 59)
	for i := range out {
		out[i] = v
	}
	return out
}
