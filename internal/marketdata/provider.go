// Package marketdata fetches daily price history for the watchlist.
package marketdata

//go:generate mockgen -source=provider.go -destination=mocks/mock_provider.go -package=mocks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dailyscan/internal/common"
)

// Bar is one daily OHLCV bar. Date is midnight UTC of the trading day.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Provider is a source of daily price history.
type Provider interface {
	// Name identifies the provider in logs and error notes.
	Name() string
	// History returns daily bars for symbol (e.g. "2330.TW") between from
	// and to, oldest first.
	History(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)
}

// NewProvider builds the provider named in config.
func NewProvider(config common.ProviderConfig, logger arbor.ILogger) (Provider, error) {
	switch strings.ToLower(config.Name) {
	case "", "yahoo":
		return NewYahooProvider(config, logger), nil
	case "eodhd":
		if config.APIKey == "" {
			return nil, common.NewConfigError("DAILYSCAN_EODHD_API_KEY", "is required for the eodhd provider")
		}
		return NewEODHDProvider(config, logger), nil
	default:
		return nil, common.NewConfigError("provider.name", fmt.Sprintf("unknown provider %q", config.Name))
	}
}
