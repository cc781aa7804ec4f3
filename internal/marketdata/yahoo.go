package marketdata

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dailyscan/internal/common"
	"github.com/ternarybob/dailyscan/internal/yahoo"
)

// YahooProvider serves history from the Yahoo Finance chart API.
type YahooProvider struct {
	client *yahoo.Client
}

// NewYahooProvider creates a provider from config.
func NewYahooProvider(config common.ProviderConfig, logger arbor.ILogger) *YahooProvider {
	return &YahooProvider{
		client: yahoo.NewClient(
			yahoo.WithBaseURL(config.BaseURL),
			yahoo.WithUserAgent(config.UserAgent),
			yahoo.WithRateLimit(config.RateLimit),
			yahoo.WithLogger(logger),
		),
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

func (p *YahooProvider) History(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	candles, err := p.client.GetDailyCandles(ctx, common.ParseTicker(symbol).YahooSymbol(), from, to)
	if err != nil {
		return nil, err
	}

	bars := make([]Bar, len(candles))
	for i, c := range candles {
		bars[i] = Bar{Date: c.Date, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
	}
	return bars, nil
}
