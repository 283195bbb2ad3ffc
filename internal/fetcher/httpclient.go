package fetcher

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"resty.dev/v3"
)

const (
	// Default retry configuration for remote providers
	DefaultTimeout     = 6 * time.Second
	DefaultRetries     = 2
	DefaultBackoffBase = 300 * time.Millisecond
)

// NewHTTPClient creates a resty client for a remote quote endpoint. Retries
// are not delegated to resty; see RetryPolicy.
func NewHTTPClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
}

// RetryPolicy bounds the attempts of a single logical remote call.
// Attempts = 1 + Retries; the delay before retry n (0-based) is
// BackoffBase * 2^n.
type RetryPolicy struct {
	Timeout     time.Duration
	Retries     int
	BackoffBase time.Duration
}

// DefaultRetryPolicy returns 6s per attempt, 2 retries,
// 300ms then 600ms backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:     DefaultTimeout,
		Retries:     DefaultRetries,
		BackoffBase: DefaultBackoffBase,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BackoffBase
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = p.maxInterval()
	exp.MaxElapsedTime = 0
	exp.Reset()

	if p.Retries <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.Retries)), ctx)
}

// Gate runs before every attempt on the caller's context, outside the
// attempt timeout. Waiting for a rate-limit slot is a gate.
type Gate func(ctx context.Context) error

// Do runs attempt until it succeeds, returns a non-retryable error, or the
// retry bound is exhausted, in which case the last error is returned. Each
// attempt gets its own context bounded by p.Timeout.
func (p RetryPolicy) Do(ctx context.Context, ticker Ticker, attempt func(ctx context.Context) error) error {
	return p.DoGated(ctx, ticker, nil, attempt)
}

// DoGated is Do with gate run ahead of each attempt. A gate error ends the
// call as is; it is neither retried nor classified.
func (p RetryPolicy) DoGated(ctx context.Context, ticker Ticker, gate Gate, attempt func(ctx context.Context) error) error {
	n := 0
	operation := func() error {
		n++
		if gate != nil {
			if err := gate(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}

		err := attempt(attemptCtx)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		slog.Debug("retrying quote request",
			"ticker", ticker,
			"attempt", n,
			"backoff", wait,
			"error", err.Error())
	}

	return backoff.RetryNotify(operation, p.backOff(ctx), notify)
}

// maxInterval is BackoffBase * 2^Retries, saturating instead of overflowing.
func (p RetryPolicy) maxInterval() time.Duration {
	d := p.BackoffBase
	if d <= 0 {
		return d
	}
	for i := 0; i < p.Retries; i++ {
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	return d
}
