package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTicker(t *testing.T) {
	tests := []struct {
		input      string
		wantCode   string
		wantSuffix string
		wantYahoo  string
		wantEODHD  string
	}{
		// Market suffix
		{"2330.TW", "2330", "TW", "2330.TW", "2330.TW"},
		{"6488.TWO", "6488", "TWO", "6488.TWO", "6488.TWO"},
		{"BHP.AX", "BHP", "AX", "BHP.AX", "BHP.AU"},
		{"VOD.L", "VOD", "L", "VOD.L", "VOD.LSE"},

		// Bare US symbols
		{"AAPL", "AAPL", "", "AAPL", "AAPL.US"},
		{"BRK.B", "BRK.B", "", "BRK.B", "BRK.B.US"},

		// Indices
		{"^GSPC", "^GSPC", "", "^GSPC", "GSPC.INDX"},

		// Exchange prefix
		{"TWSE:2330", "2330", "TW", "2330.TW", "2330.TW"},
		{"ASX:GNP", "GNP", "AX", "GNP.AX", "GNP.AU"},
		{"NASDAQ:MSFT", "MSFT", "", "MSFT", "MSFT.US"},

		// Case and whitespace normalization
		{"  aapl  ", "AAPL", "", "AAPL", "AAPL.US"},
		{"2330.tw", "2330", "TW", "2330.TW", "2330.TW"},

		// Empty input
		{"", "", "", "", ""},
		{"   ", "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseTicker(tt.input)

			if result.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", result.Code, tt.wantCode)
			}
			if result.Suffix != tt.wantSuffix {
				t.Errorf("Suffix = %q, want %q", result.Suffix, tt.wantSuffix)
			}
			if result.YahooSymbol() != tt.wantYahoo {
				t.Errorf("YahooSymbol() = %q, want %q", result.YahooSymbol(), tt.wantYahoo)
			}
			if result.EODHDSymbol() != tt.wantEODHD {
				t.Errorf("EODHDSymbol() = %q, want %q", result.EODHDSymbol(), tt.wantEODHD)
			}
		})
	}
}

func TestParseTicker_KeepsRaw(t *testing.T) {
	result := ParseTicker("  2330.tw ")
	assert.Equal(t, "2330.tw", result.Raw)
	assert.Equal(t, "2330.TW", result.String())
	assert.False(t, result.IsZero())
	assert.True(t, ParseTicker("").IsZero())
}

func TestParseTickers(t *testing.T) {
	tickers := ParseTickers([]string{"2330.TW", "", "aapl", "  "})

	assert.Len(t, tickers, 2)
	assert.Equal(t, []string{"2330.TW", "AAPL"}, Symbols(tickers))
}
