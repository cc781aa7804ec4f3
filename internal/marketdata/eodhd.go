package marketdata

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dailyscan/internal/common"
	"github.com/ternarybob/dailyscan/internal/eodhd"
)

// EODHDProvider serves history from the EODHD end-of-day API.
type EODHDProvider struct {
	client *eodhd.Client
}

// NewEODHDProvider creates a provider from config.
func NewEODHDProvider(config common.ProviderConfig, logger arbor.ILogger) *EODHDProvider {
	return &EODHDProvider{
		client: eodhd.NewClient(config.APIKey,
			eodhd.WithBaseURL(config.BaseURL),
			eodhd.WithRateLimit(config.RateLimit),
			eodhd.WithLogger(logger),
		),
	}
}

func (p *EODHDProvider) Name() string { return "eodhd" }

func (p *EODHDProvider) History(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	rows, err := p.client.GetEOD(ctx, common.ParseTicker(symbol).EODHDSymbol(),
		eodhd.WithDateRange(from, to),
		eodhd.WithOrder("a"),
	)
	if err != nil {
		return nil, err
	}

	bars := make([]Bar, 0, len(rows))
	for _, row := range rows {
		if !row.Valid() {
			continue
		}
		bars = append(bars, Bar{
			Date:   row.Date,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}
	return bars, nil
}
