package fetcher

import "context"

// Provider is the capability every quote source implements. Exactly one
// provider is live per process; the cache and scheduler only ever talk to it
// through this interface.
//
//go:generate mockgen -package=cache_test -destination=../cache/mock_provider_test.go -source=fetcher.go
type Provider interface {
	// Name identifies the provider in logs ("simulated", "finnhub").
	Name() string

	// FetchOne produces a fresh quote for a single ticker.
	FetchOne(ctx context.Context, ticker Ticker) (Quote, error)

	// FetchMany produces one quote per ticker, in input order. Any single
	// failure fails the whole batch.
	FetchMany(ctx context.Context, tickers []Ticker) ([]Quote, error)
}
