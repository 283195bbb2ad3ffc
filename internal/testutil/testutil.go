package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"quotefetcher/internal/fetcher"
)

// MockProvider is a mock implementation of the Provider interface for testing
type MockProvider struct {
	FetchOneFunc  func(ctx context.Context, ticker fetcher.Ticker) (fetcher.Quote, error)
	FetchManyFunc func(ctx context.Context, tickers []fetcher.Ticker) ([]fetcher.Quote, error)

	calls atomic.Int64
}

// Name implements the Provider interface
func (m *MockProvider) Name() string {
	return "mock"
}

// FetchOne implements the Provider interface
func (m *MockProvider) FetchOne(ctx context.Context, ticker fetcher.Ticker) (fetcher.Quote, error) {
	m.calls.Add(1)
	if m.FetchOneFunc != nil {
		return m.FetchOneFunc(ctx, ticker)
	}
	return fetcher.Quote{Ticker: ticker}, nil
}

// FetchMany implements the Provider interface. Without FetchManyFunc it
// calls FetchOne sequentially.
func (m *MockProvider) FetchMany(ctx context.Context, tickers []fetcher.Ticker) ([]fetcher.Quote, error) {
	if m.FetchManyFunc != nil {
		return m.FetchManyFunc(ctx, tickers)
	}
	quotes := make([]fetcher.Quote, 0, len(tickers))
	for _, t := range tickers {
		q, err := m.FetchOne(ctx, t)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// Calls returns how many times FetchOne was invoked.
func (m *MockProvider) Calls() int64 {
	return m.calls.Load()
}

// NewMockProvider creates a mock provider returning a fixed price for every ticker
func NewMockProvider(price float64, err error) *MockProvider {
	return &MockProvider{
		FetchOneFunc: func(ctx context.Context, ticker fetcher.Ticker) (fetcher.Quote, error) {
			if err != nil {
				return fetcher.Quote{}, err
			}
			return fetcher.Quote{Ticker: ticker, Price: price}, nil
		},
	}
}

// StaticResolver always resolves to P.
type StaticResolver struct {
	P fetcher.Provider
}

// Provider implements cache.Resolver
func (r StaticResolver) Provider() fetcher.Provider {
	return r.P
}

// NewFinnhubServer starts an httptest server answering Finnhub /quote
// requests from prices (keyed by symbol). Unknown symbols get an empty body,
// which the client treats as malformed. The returned counter tracks requests.
func NewFinnhubServer(prices map[string]string) (*httptest.Server, *atomic.Int64) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")

		price, ok := prices[r.URL.Query().Get("symbol")]
		if !ok {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"c":` + price + `,"pc":100}`))
	}))
	return server, &requests
}
