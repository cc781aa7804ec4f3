package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dailyscan/internal/common"
)

const (
	DefaultFetchTimeout = 15 * time.Second
	DefaultHistoryDays  = 183
)

// ErrNoData is returned when a provider answers with no usable bars.
var ErrNoData = errors.New("no price data returned")

// Result is the outcome of fetching one ticker. Exactly one of Bars and Err
// is meaningful; Err is always a *common.FetchError.
type Result struct {
	Ticker common.Ticker
	Bars   []Bar
	Err    error
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Fetcher fetches history for every ticker of a run.
type Fetcher struct {
	provider    Provider
	logger      arbor.ILogger
	timeout     time.Duration
	concurrency int
	historyDays int
	now         func() time.Time
}

// FetcherOption configures the Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout sets the per-ticker timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithConcurrency sets how many tickers are fetched at once (1 = sequential).
func WithConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithHistoryDays sets how many calendar days of history are requested.
func WithHistoryDays(days int) FetcherOption {
	return func(f *Fetcher) {
		if days > 0 {
			f.historyDays = days
		}
	}
}

// WithClock overrides the time source used for the history window.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFetcher creates a Fetcher over provider.
func NewFetcher(provider Provider, logger arbor.ILogger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		provider:    provider,
		logger:      logger,
		timeout:     DefaultFetchTimeout,
		concurrency: 1,
		historyDays: DefaultHistoryDays,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// ProviderName returns the name of the underlying provider.
func (f *Fetcher) ProviderName() string {
	return f.provider.Name()
}

// FetchAll fetches every ticker and returns one Result per ticker, in input
// order. A failure is recorded on that ticker's Result and never stops the
// others. Cancelling ctx marks the tickers not yet fetched as failed.
func (f *Fetcher) FetchAll(ctx context.Context, tickers []common.Ticker) []Result {
	results := make([]Result, len(tickers))

	to := f.now().UTC()
	from := to.AddDate(0, 0, -f.historyDays)
	// Include today's session, the chart API treats period2 as exclusive
	to = to.Add(24 * time.Hour)

	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup

	for i, ticker := range tickers {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = f.failed(ticker, ctx.Err())
			continue
		}

		wg.Add(1)
		go func(i int, ticker common.Ticker) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = f.fetchOne(ctx, ticker, from, to)
		}(i, ticker)
	}

	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	f.logger.Info().
		Str("provider", f.provider.Name()).
		Int("tickers", len(tickers)).
		Int("failed", failed).
		Msg("Market data fetch complete")

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, ticker common.Ticker, from, to time.Time) Result {
	if err := ctx.Err(); err != nil {
		return f.failed(ticker, err)
	}

	start := time.Now()
	symbol := ticker.String()

	var bars []Bar
	err := common.SafeCall(f.logger, "fetch "+symbol, func() error {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		var err error
		bars, err = f.provider.History(callCtx, symbol, from, to)
		if err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("timed out after %s: %w", f.timeout, err)
		}
		return err
	})
	if err == nil && len(bars) == 0 {
		err = ErrNoData
	}
	if err != nil {
		f.logger.Warn().
			Str("ticker", symbol).
			Str("provider", f.provider.Name()).
			Err(err).
			Dur("elapsed", time.Since(start)).
			Msg("Failed to fetch ticker")
		return f.failed(ticker, err)
	}

	sort.SliceStable(bars, func(a, b int) bool { return bars[a].Date.Before(bars[b].Date) })

	f.logger.Debug().
		Str("ticker", symbol).
		Int("bars", len(bars)).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched ticker")

	return Result{Ticker: ticker, Bars: bars}
}

func (f *Fetcher) failed(ticker common.Ticker, err error) Result {
	return Result{
		Ticker: ticker,
		Err:    &common.FetchError{Ticker: ticker.String(), Provider: f.provider.Name(), Err: err},
	}
}
