package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc/iter"
	"golang.org/x/sync/singleflight"

	"quotefetcher/internal/fetcher"
)

// DefaultTTL is the freshness window used when none is configured.
const DefaultTTL = 20 * time.Second

// Resolver hands out the live provider. It is consulted only on a miss, so
// a lazily-constructed provider is not built until a quote is needed.
type Resolver interface {
	Provider() fetcher.Provider
}

// entry stores the cached quote for a single ticker.
type entry struct {
	quote    fetcher.Quote
	storedAt time.Time
}

// Cache memoizes provider quotes per normalized ticker for a TTL.
// Stale entries are never returned and never evicted; they are overwritten
// by the next successful fetch. Concurrent misses for the same ticker
// collapse into one provider call.
type Cache struct {
	resolver Resolver
	ttl      time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[fetcher.Ticker]entry
	flights singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used for storedAt and freshness checks.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a cache in front of the provider returned by resolver.
// A ttl <= 0 disables memoization.
func New(resolver Resolver, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		resolver: resolver,
		ttl:      ttl,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
		entries:  make(map[fetcher.Ticker]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached quote for ticker while it is fresh, otherwise
// fetches, stores and returns a new one. Provider errors are returned
// unchanged and leave the cache untouched.
func (c *Cache) Get(ctx context.Context, ticker fetcher.Ticker) (fetcher.Quote, error) {
	key := fetcher.Normalize(ticker)

	if q, ok := c.lookup(key); ok {
		return q, nil
	}

	// The flight outlives any single waiter so one caller giving up does not
	// fail the others sharing it.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(string(key), func() (any, error) {
		if q, ok := c.lookup(key); ok {
			return q, nil
		}
		c.logger.Debug("quote cache miss", "ticker", key)

		q, err := c.resolver.Provider().FetchOne(flightCtx, key)
		if err != nil {
			return fetcher.Quote{}, err
		}
		c.store(key, q)
		return q, nil
	})

	select {
	case <-ctx.Done():
		return fetcher.Quote{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return fetcher.Quote{}, res.Err
		}
		return res.Val.(fetcher.Quote), nil
	}
}

// GetMany applies Get to every ticker concurrently. Output order matches
// input order; any failure fails the whole call.
func (c *Cache) GetMany(ctx context.Context, tickers []fetcher.Ticker) ([]fetcher.Quote, error) {
	if len(tickers) == 0 {
		return []fetcher.Quote{}, nil
	}

	mapper := iter.Mapper[fetcher.Ticker, fetcher.Quote]{MaxGoroutines: len(tickers)}
	quotes, err := mapper.MapErr(tickers, func(t *fetcher.Ticker) (fetcher.Quote, error) {
		return c.Get(ctx, *t)
	})
	if err != nil {
		return nil, &fetcher.BatchError{Size: len(tickers), Err: err}
	}
	return quotes, nil
}

// Len returns the number of stored entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key fetcher.Ticker) (fetcher.Quote, bool) {
	if c.ttl <= 0 {
		return fetcher.Quote{}, false
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.clock.Since(e.storedAt) < c.ttl {
		return e.quote, true
	}
	return fetcher.Quote{}, false
}

func (c *Cache) store(key fetcher.Ticker, q fetcher.Quote) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry{quote: q, storedAt: c.clock.Now()}
	c.mu.Unlock()
}
