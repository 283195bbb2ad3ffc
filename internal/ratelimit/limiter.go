package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// API represents the different external quote endpoints we interact with
type API string

const (
	// APIFinnhub represents the Finnhub quote API
	APIFinnhub API = "finnhub"
)

// Limiter manages rate limits for different APIs
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

// New creates an empty Limiter. APIs without a configured limit are unlimited.
func New() *Limiter {
	return &Limiter{
		limiters: make(map[API]*rate.Limiter),
	}
}

// Set configures the limit for api in requests per second. A non-positive
// rate removes the limit.
func (l *Limiter) Set(api API, perSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if perSecond <= 0 {
		delete(l.limiters, api)
		return
	}
	if burst < 1 {
		burst = 1
	}
	l.limiters[api] = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Wait blocks until the rate limiter permits an event for the given API
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, api API) error {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given API may happen now
func (l *Limiter) Allow(api API) bool {
	if l == nil {
		return true
	}
	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request
		return true
	}

	return limiter.Allow()
}
