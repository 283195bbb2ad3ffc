// Package quotes is the entry point the presentation layer calls:
// GetQuote/GetQuotes go through the TTL cache to the selected provider.
package quotes

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"quotefetcher/internal/cache"
	"quotefetcher/internal/config"
	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/poller"
	"quotefetcher/internal/provider"
	"quotefetcher/internal/ratelimit"
)

// Service wires configuration into a selector, rate limiter and cache.
type Service struct {
	selector *provider.Selector
	cache    *cache.Cache
	clock    clockwork.Clock
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the clock shared by the provider, cache and pollers.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New builds the service. No provider is constructed until the first miss.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mode := cfg.Mode()
	if mode == provider.ModeRemote && cfg.FinnhubAPIKey == "" {
		s.logger.Warn("remote quote provider selected but FINNHUB_API_KEY is not set; quote requests will fail")
	}

	limiter := ratelimit.New()
	limiter.Set(ratelimit.APIFinnhub, cfg.RateLimit, cfg.RateBurst)

	s.selector = provider.NewSelector(mode, provider.RemoteConfig{
		BaseURL: cfg.FinnhubBaseURL,
		APIKey:  cfg.FinnhubAPIKey,
		Policy:  cfg.RetryPolicy(),
		Limiter: limiter,
	}, s.clock, s.logger)

	s.cache = cache.New(s.selector, cfg.CacheTTL(),
		cache.WithClock(s.clock),
		cache.WithLogger(s.logger),
	)
	return s
}

// GetQuote returns the quote for one ticker.
func (s *Service) GetQuote(ctx context.Context, ticker fetcher.Ticker) (fetcher.Quote, error) {
	return s.cache.Get(ctx, ticker)
}

// GetQuotes returns quotes in input order, failing as a whole if any ticker fails.
func (s *Service) GetQuotes(ctx context.Context, tickers []fetcher.Ticker) ([]fetcher.Quote, error) {
	return s.cache.GetMany(ctx, tickers)
}

// NewPoller returns a refresh controller that fetches through this service.
func (s *Service) NewPoller(onUpdate func(poller.Update), opts ...poller.Option) *poller.Controller {
	base := []poller.Option{
		poller.WithClock(s.clock),
		poller.WithLogger(s.logger),
	}
	return poller.New(s.GetQuotes, onUpdate, append(base, opts...)...)
}

// ProviderReady reports whether the provider has been constructed yet.
func (s *Service) ProviderReady() bool {
	return s.selector.Ready()
}
