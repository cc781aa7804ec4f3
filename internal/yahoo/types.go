// Package yahoo provides a client for the Yahoo Finance chart (v8) API.
package yahoo

import (
	"fmt"
	"net/http"
	"time"
)

// Interval is a chart bar interval.
type Interval string

const (
	Interval1d Interval = "1d"
)

// ChartResponse is the top-level container of /v8/finance/chart.
type ChartResponse struct {
	Chart ChartData `json:"chart"`
}

type ChartData struct {
	Result []ChartResult `json:"result"`
	Error  *ChartError   `json:"error"`
}

// ChartError is the error object Yahoo embeds in chart responses.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type ChartResult struct {
	Meta       ChartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators Indicators `json:"indicators"`
}

type ChartMeta struct {
	Currency             string  `json:"currency"`
	Symbol               string  `json:"symbol"`
	ExchangeName         string  `json:"exchangeName"`
	ExchangeTimezoneName string  `json:"exchangeTimezoneName"`
	GMTOffset            int64   `json:"gmtoffset"`
	RegularMarketPrice   float64 `json:"regularMarketPrice"`
}

type Indicators struct {
	Quote []Quote `json:"quote"`
}

// Quote holds the OHLCV columns. Yahoo emits null for sessions without
// trades, hence the pointers.
type Quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// Candle is one parsed bar. Date is midnight UTC of the exchange-local
// trading day.
type Candle struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// APIError represents an error from the Yahoo chart API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Symbol     string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("Yahoo chart error: %s: %s (status: %d, symbol: %s)", e.Code, e.Message, e.StatusCode, e.Symbol)
	}
	return fmt.Sprintf("Yahoo chart error: %s (status: %d, symbol: %s)", e.Message, e.StatusCode, e.Symbol)
}

// NotFound reports whether Yahoo does not know the symbol.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == "Not Found"
}
