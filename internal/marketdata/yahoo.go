package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"pricecast/internal/errs"
)

const (
	defaultBaseURL   = "https://query1.finance.yahoo.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultTimeout   = 30 * time.Second
)

// Client fetches daily bars from the Yahoo Finance v8 chart API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	retries    int
	retryWait  time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL replaces the API base URL. Used by tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

// WithUserAgent replaces the User-Agent header sent with each request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRetries sets how many times a failed request is retried and the
// wait between attempts. Zero retries means a single attempt.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.retryWait = wait
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Yahoo Finance client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		retries:    2,
		retryWait:  2 * time.Second,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// chartResponse is the v8 chart API payload. Close values are pointers
// because Yahoo returns JSON null for holidays and halted sessions.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
				Symbol   string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch downloads daily closes for symbol between start and end
// (inclusive of the bars Yahoo returns in that range). Bars with a null
// or non-positive close are dropped. The result is sorted ascending
// with duplicate dates collapsed to the latest bar.
func (c *Client) Fetch(ctx context.Context, symbol string, start, end time.Time) (PriceSeries, error) {
	if symbol == "" {
		return nil, errs.InvalidInput("symbol", "empty symbol")
	}
	if !start.Before(end) {
		return nil, errs.InvalidInputf("range", "start %s not before end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d&events=history",
		c.baseURL, url.PathEscape(symbol), start.Unix(), end.Unix())

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, errs.DataUnavailable(symbol, err)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, errs.DataUnavailable(symbol, fmt.Errorf("decode chart response: %w", err))
	}
	if chart.Chart.Error != nil {
		return nil, errs.DataUnavailable(symbol, fmt.Errorf("provider error %s: %s",
			chart.Chart.Error.Code, chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, errs.DataUnavailable(symbol, fmt.Errorf("no bars returned"))
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, errs.DataUnavailable(symbol, fmt.Errorf("no quote block returned"))
	}
	quote := result.Indicators.Quote[0]

	byDate := make(map[time.Time]float64, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue // null bar (holiday, halted session)
		}
		close := *quote.Close[i]
		if close <= 0 {
			continue
		}
		// Intraday bars for the current session share the date with the
		// daily bar; the latest timestamp wins.
		byDate[DateOnly(time.Unix(ts, 0))] = close
	}
	if len(byDate) == 0 {
		return nil, errs.DataUnavailable(symbol, fmt.Errorf("all bars null"))
	}

	series := make(PriceSeries, 0, len(byDate))
	for date, close := range byDate {
		series = append(series, PricePoint{Date: date, Close: close})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	c.logger.InfoContext(ctx, "fetched price history",
		slog.String("symbol", symbol),
		slog.Int("bars", len(series)),
		slog.String("first", series.First().Date.Format("2006-01-02")),
		slog.String("last", series.Last().Date.Format("2006-01-02")))

	return series, nil
}

// get performs the request with bounded retries. Server-side failures
// (5xx) and transport errors are retried; 4xx responses are not.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.WarnContext(ctx, "retrying fetch",
				slog.Int("attempt", attempt+1),
				slog.String("error", lastErr.Error()))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryWait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		default:
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
		}
	}
	return nil, lastErr
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
