package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the EOD Historical Data API root.
const DefaultBaseURL = "https://eodhd.com/api"

// Client fetches real-time quotes from EOD Historical Data.
type Client struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a quote client for the given API root and token.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		exchange: "US",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   2,
		retryBackoff: 200 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithExchange sets the exchange suffix appended to tickers (e.g. "US").
func WithExchange(exchange string) ClientOption {
	return func(c *Client) {
		c.exchange = exchange
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// realTimeResponse is the subset of /real-time we use. The provider sends
// "NA" instead of a number when it has no data.
type realTimeResponse struct {
	Code      string          `json:"code"`
	Timestamp int64           `json:"timestamp"`
	Close     decimal.Decimal `json:"close"`
}

// Quote returns the latest close for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if c.apiKey == "" {
		return decimal.Zero, unavailable(symbol, errors.New("no api key configured"))
	}

	ticker := strings.ReplaceAll(symbol, ".", "-")
	if c.exchange != "" {
		ticker += "." + c.exchange
	}
	query := url.Values{
		"api_token": {c.apiKey},
		"fmt":       {"json"},
	}

	var resp realTimeResponse
	if err := c.get(ctx, "/real-time/"+url.PathEscape(ticker), query, &resp); err != nil {
		c.logger.Warn("quote lookup failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return decimal.Zero, unavailable(symbol, err)
	}
	if !resp.Close.IsPositive() {
		return decimal.Zero, unavailable(symbol, fmt.Errorf("no price for %s", ticker))
	}

	return resp.Close, nil
}
