// Package simulator produces reproducible pseudo-quotes without any I/O.
//
// A ticker's base price is derived from an FNV-1a hash of the symbol, and a
// small drift is derived from the symbol plus the current wall-clock minute,
// so repeated calls within one minute return identical values.
package simulator

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jonboulle/clockwork"

	"quotefetcher/internal/fetcher"
)

// Name is the provider name reported in logs.
const Name = "simulated"

// Hash returns the 32-bit FNV-1a hash of s.
func Hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// BasePrice maps a ticker onto a stable price in [50.00, 350.99].
func BasePrice(ticker fetcher.Ticker) float64 {
	h := Hash(string(fetcher.Normalize(ticker)))
	dollars := 50 + float64(h%301)
	cents := float64(h%100) / 100
	return fetcher.Round2(dollars + cents)
}

// MinuteBucket is the number of whole minutes since the Unix epoch.
func MinuteBucket(now time.Time) int64 {
	return now.UnixMilli() / 60000
}

// MinuteDrift is the percentage drift in [-2.00, +2.00] for ticker during
// the minute containing now.
func MinuteDrift(ticker fetcher.Ticker, now time.Time) float64 {
	key := fmt.Sprintf("%s:%d", fetcher.Normalize(ticker), MinuteBucket(now))
	h := Hash(key)
	return fetcher.Round2(float64(int64(h%401)-200) / 100)
}

// Provider is the deterministic simulator. It never fails.
type Provider struct {
	clock clockwork.Clock
}

// New creates a simulator reading time from clock; nil means the real clock.
func New(clock clockwork.Clock) *Provider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Provider{clock: clock}
}

func (p *Provider) Name() string { return Name }

// FetchOne returns the simulated quote for ticker at the current time.
func (p *Provider) FetchOne(_ context.Context, ticker fetcher.Ticker) (fetcher.Quote, error) {
	return p.quote(ticker, p.clock.Now()), nil
}

// FetchMany returns simulated quotes in input order.
func (p *Provider) FetchMany(_ context.Context, tickers []fetcher.Ticker) ([]fetcher.Quote, error) {
	now := p.clock.Now()
	quotes := make([]fetcher.Quote, len(tickers))
	for i, t := range tickers {
		quotes[i] = p.quote(t, now)
	}
	return quotes, nil
}

func (p *Provider) quote(ticker fetcher.Ticker, now time.Time) fetcher.Quote {
	ticker = fetcher.Normalize(ticker)
	base := BasePrice(ticker)
	drift := MinuteDrift(ticker, now)
	return fetcher.NewQuote(ticker, base*(1+drift/100), drift, now)
}
