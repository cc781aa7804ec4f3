package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the Yahoo Finance query API.
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 2

	// DefaultUserAgent is sent when no other is configured; Yahoo rejects
	// requests without one.
	DefaultUserAgent = "Mozilla/5.0 (compatible; dailyscan)"

	maxErrorBody = 1024
)

// Client is a Yahoo Finance chart API client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// NewClient creates a new Yahoo chart API client. No API key is needed.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetChart retrieves the raw chart result for symbol between from and to.
func (c *Client) GetChart(ctx context.Context, symbol string, from, to time.Time, interval Interval) (*ChartResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(from.Unix(), 10))
	params.Set("period2", strconv.FormatInt(to.Unix(), 10))
	params.Set("interval", string(interval))
	params.Set("events", "history")
	params.Set("includePrePost", "false")

	path := "/v8/finance/chart/" + url.PathEscape(symbol)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("url", reqURL).
			Msg("Yahoo chart request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chart ChartResponse
	decodeErr := json.Unmarshal(body, &chart)

	// Yahoo reports unknown symbols as a 404 with a chart.error body
	if chart.Chart.Error != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       chart.Chart.Error.Code,
			Message:    chart.Chart.Error.Description,
			Symbol:     symbol,
		}
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(msg), Symbol: symbol}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "empty chart result", Symbol: symbol}
	}

	return &chart.Chart.Result[0], nil
}

// GetDailyCandles retrieves daily bars for symbol, oldest first. Sessions
// with a null close are skipped.
func (c *Client) GetDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error) {
	result, err := c.GetChart(ctx, symbol, from, to, Interval1d)
	if err != nil {
		return nil, err
	}
	return result.Candles(), nil
}

// Candles converts the column-oriented chart result into bars.
func (r *ChartResult) Candles() []Candle {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]

	candles := make([]Candle, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closePx := floatAt(q.Close, i)
		if closePx <= 0 {
			continue
		}
		local := time.Unix(ts+r.Meta.GMTOffset, 0).UTC()
		candles = append(candles, Candle{
			Date:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Open:   floatAt(q.Open, i),
			High:   floatAt(q.High, i),
			Low:    floatAt(q.Low, i),
			Close:  closePx,
			Volume: intAt(q.Volume, i),
		})
	}
	return candles
}

func floatAt(values []*float64, i int) float64 {
	if i < len(values) && values[i] != nil {
		return *values[i]
	}
	return 0
}

func intAt(values []*int64, i int) int64 {
	if i < len(values) && values[i] != nil {
		return *values[i]
	}
	return 0
}
