// Package common provides shared utilities across the application.
package common

import (
	"strings"
)

// Ticker represents a parsed watchlist symbol.
// Format: CODE[.SUFFIX] as used by Yahoo Finance (e.g., "2330.TW", "6488.TWO", "AAPL")
type Ticker struct {
	// Code is the stock/security code (e.g., "2330", "AAPL", "^TWII")
	Code string
	// Suffix is the market suffix (e.g., "TW", "TWO", "AX"); empty for US listings
	Suffix string
	// Raw is the original ticker string
	Raw string
}

// SuffixToEODHD maps Yahoo market suffixes to EODHD exchange codes.
var SuffixToEODHD = map[string]string{
	"":    "US",
	"TW":  "TW",  // Taiwan Stock Exchange
	"TWO": "TWO", // Taipei Exchange (OTC)
	"AX":  "AU",  // ASX
	"L":   "LSE", // London Stock Exchange
	"TO":  "TO",  // Toronto Stock Exchange
	"DE":  "XETRA",
	"HK":  "HK",
	"T":   "TSE", // Tokyo
	"SI":  "SG",
	"KS":  "KO", // Korea
	"PA":  "PA",
}

// ExchangeToSuffix maps exchange-qualified prefixes ("ASX:GNP") to Yahoo suffixes.
var ExchangeToSuffix = map[string]string{
	"TWSE":   "TW",
	"TPEX":   "TWO",
	"ASX":    "AX",
	"NYSE":   "",
	"NASDAQ": "",
	"LSE":    "L",
	"TSX":    "TO",
	"XETRA":  "DE",
	"HKEX":   "HK",
}

// knownSuffixes is the set of suffixes recognised after the last dot. Anything
// else is treated as part of the code (e.g., "BRK.B").
var knownSuffixes = func() map[string]bool {
	m := make(map[string]bool, len(SuffixToEODHD))
	for s := range SuffixToEODHD {
		if s != "" {
			m[s] = true
		}
	}
	return m
}()

// ParseTicker parses a watchlist symbol.
// Supports formats:
//   - "2330.TW" -> Code="2330", Suffix="TW"
//   - "aapl" -> Code="AAPL", Suffix="" (normalized to uppercase)
//   - "BRK.B" -> Code="BRK.B", Suffix="" (unknown suffix stays in the code)
//   - "ASX:GNP" -> Code="GNP", Suffix="AX" (exchange prefix)
func ParseTicker(ticker string) Ticker {
	raw := strings.TrimSpace(ticker)
	if raw == "" {
		return Ticker{}
	}
	symbol := strings.ToUpper(raw)

	if idx := strings.Index(symbol, ":"); idx > 0 {
		if suffix, ok := ExchangeToSuffix[symbol[:idx]]; ok {
			return Ticker{Code: symbol[idx+1:], Suffix: suffix, Raw: raw}
		}
	}

	if idx := strings.LastIndex(symbol, "."); idx > 0 && idx < len(symbol)-1 {
		if suffix := symbol[idx+1:]; knownSuffixes[suffix] {
			return Ticker{Code: symbol[:idx], Suffix: suffix, Raw: raw}
		}
	}

	return Ticker{Code: symbol, Raw: raw}
}

// String returns the canonical symbol, identical to YahooSymbol.
func (t Ticker) String() string {
	return t.YahooSymbol()
}

// YahooSymbol returns the Yahoo Finance symbol.
// Example: "TWSE:2330" -> "2330.TW"
func (t Ticker) YahooSymbol() string {
	if t.Code == "" {
		return ""
	}
	if t.Suffix == "" {
		return t.Code
	}
	return t.Code + "." + t.Suffix
}

// EODHDSymbol returns the EODHD API symbol format.
// Example: "2330.TW" -> "2330.TW", "AAPL" -> "AAPL.US", "^GSPC" -> "GSPC.INDX"
func (t Ticker) EODHDSymbol() string {
	if t.Code == "" {
		return ""
	}
	if strings.HasPrefix(t.Code, "^") {
		return strings.TrimPrefix(t.Code, "^") + ".INDX"
	}
	exchange, ok := SuffixToEODHD[t.Suffix]
	if !ok {
		exchange = t.Suffix
	}
	return t.Code + "." + exchange
}

// IsZero reports whether the ticker is empty
func (t Ticker) IsZero() bool {
	return t.Code == ""
}

// ParseTickers parses a list of ticker strings, dropping empty entries.
func ParseTickers(tickers []string) []Ticker {
	result := make([]Ticker, 0, len(tickers))
	for _, t := range tickers {
		if parsed := ParseTicker(t); parsed.Code != "" {
			result = append(result, parsed)
		}
	}
	return result
}

// Symbols returns the canonical symbols of tickers, in order.
func Symbols(tickers []Ticker) []string {
	out := make([]string, len(tickers))
	for i, t := range tickers {
		out[i] = t.String()
	}
	return out
}
