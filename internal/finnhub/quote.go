package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc/iter"
	"resty.dev/v3"

	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/ratelimit"
)

const (
	// Name is the provider name reported in logs.
	Name = "finnhub"

	// DefaultBaseURL is the production Finnhub REST endpoint.
	DefaultBaseURL = "https://finnhub.io/api/v1"
)

// QuoteResponse represents the Finnhub /quote response. Fields are pointers
// because Finnhub answers null (or omits fields) for unknown symbols.
type QuoteResponse struct {
	Current       *float64 `json:"c"`
	Change        *float64 `json:"d"`
	ChangePercent *float64 `json:"dp"`
	High          *float64 `json:"h"`
	Low           *float64 `json:"l"`
	Open          *float64 `json:"o"`
	PreviousClose *float64 `json:"pc"`
	Timestamp     int64    `json:"t"`
}

// ChangePct returns dp when present, otherwise derives it from the current
// price and previous close. A missing or zero previous close yields 0.
func (r QuoteResponse) ChangePct() float64 {
	if r.ChangePercent != nil {
		return *r.ChangePercent
	}
	if r.Current != nil && r.PreviousClose != nil && *r.PreviousClose != 0 {
		return (*r.Current - *r.PreviousClose) / *r.PreviousClose * 100
	}
	return 0
}

// Client fetches quotes from Finnhub
type Client struct {
	apiKey  string
	client  *resty.Client
	policy  fetcher.RetryPolicy
	limiter *ratelimit.Limiter
	clock   clockwork.Clock
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the per-attempt timeout, retry count and backoff base.
func WithRetryPolicy(p fetcher.RetryPolicy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLimiter gates every attempt on the shared rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithClock sets the clock used to stamp ObservedAt.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Finnhub quote client. An empty apiKey is accepted here
// and reported as a configuration error on the first fetch.
func NewClient(apiKey, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		apiKey: apiKey,
		client: fetcher.NewHTTPClient(baseURL),
		policy: fetcher.DefaultRetryPolicy(),
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return Name }

// FetchOne retrieves the current quote for ticker, retrying transient and
// malformed responses per the client's retry policy.
func (c *Client) FetchOne(ctx context.Context, ticker fetcher.Ticker) (fetcher.Quote, error) {
	if err := c.checkConfig(); err != nil {
		return fetcher.Quote{}, err
	}

	symbol := fetcher.Normalize(ticker)
	var quote fetcher.Quote
	err := c.policy.DoGated(ctx, symbol, c.waitForSlot, func(ctx context.Context) error {
		q, err := c.fetchOnce(ctx, symbol)
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		c.logger.Warn("finnhub quote failed", "ticker", symbol, "error", err)
		return fetcher.Quote{}, err
	}
	return quote, nil
}

// FetchMany issues one independent FetchOne per ticker. The result order
// matches the input order; any exhausted failure fails the whole batch.
func (c *Client) FetchMany(ctx context.Context, tickers []fetcher.Ticker) ([]fetcher.Quote, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return []fetcher.Quote{}, nil
	}

	mapper := iter.Mapper[fetcher.Ticker, fetcher.Quote]{MaxGoroutines: len(tickers)}
	quotes, err := mapper.MapErr(tickers, func(t *fetcher.Ticker) (fetcher.Quote, error) {
		return c.FetchOne(ctx, *t)
	})
	if err != nil {
		return nil, &fetcher.BatchError{Size: len(tickers), Err: err}
	}
	return quotes, nil
}

func (c *Client) checkConfig() error {
	if c.apiKey == "" {
		return fetcher.NewConfigurationError("finnhub API key missing; set FINNHUB_API_KEY")
	}
	return nil
}

// waitForSlot blocks on the caller's context until the rate limiter admits
// another request.
func (c *Client) waitForSlot(ctx context.Context) error {
	if err := c.limiter.Wait(ctx, ratelimit.APIFinnhub); err != nil {
		return fmt.Errorf("waiting for finnhub rate limit: %w", err)
	}
	return nil
}

// fetchOnce performs a single attempt.
func (c *Client) fetchOnce(ctx context.Context, symbol fetcher.Ticker) (fetcher.Quote, error) {
	var result QuoteResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": string(symbol),
			"token":  c.apiKey,
		}).
		SetResult(&result).
		Get("/quote")

	if err != nil {
		return fetcher.Quote{}, classifyTransportError(symbol, err)
	}

	if !resp.IsSuccess() {
		return fetcher.Quote{}, fetcher.ClassifyHTTPError(symbol, resp.StatusCode())
	}

	if result.Current == nil {
		return fetcher.Quote{}, fetcher.NewMalformedError(symbol, fmt.Sprintf("price not found in response for %s", symbol))
	}

	return fetcher.NewQuote(symbol, *result.Current, result.ChangePct(), c.clock.Now()), nil
}

func classifyTransportError(symbol fetcher.Ticker, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fetcher.NewTimeoutError(symbol, err)
	case errors.As(err, &urlErr):
		// transport failures arrive wrapped in *url.Error, body decoding ones do not
		return fetcher.NewNetworkError(symbol, err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return fetcher.NewMalformedError(symbol, err.Error())
	default:
		return fetcher.NewNetworkError(symbol, err)
	}
}
