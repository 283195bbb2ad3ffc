// Package poller re-issues batched quote fetches on an interval while the
// consuming surface is visible.
package poller

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc"

	"quotefetcher/internal/fetcher"
)

// FetchFunc fetches quotes for tickers, in order.
type FetchFunc func(ctx context.Context, tickers []fetcher.Ticker) ([]fetcher.Quote, error)

// Update is delivered after every fetch of an active watch.
type Update struct {
	Key    string
	Quotes []fetcher.Quote
	Err    error
	At     time.Time
}

// Key is the identity of a ticker set: normalized, non-empty, deduplicated,
// sorted and comma-joined.
func Key(tickers []fetcher.Ticker) string {
	set := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if n := fetcher.Normalize(t); n != "" {
			set = append(set, string(n))
		}
	}
	slices.Sort(set)
	return strings.Join(slices.Compact(set), ",")
}

func splitKey(key string) []fetcher.Ticker {
	parts := strings.Split(key, ",")
	out := make([]fetcher.Ticker, len(parts))
	for i, p := range parts {
		out[i] = fetcher.Ticker(p)
	}
	return out
}

// Controller owns at most one active watch. Watch replaces it when the ticker
// set or interval changes; Stop tears it down and waits for the loop to exit.
type Controller struct {
	fetch    FetchFunc
	onUpdate func(Update)
	clock    clockwork.Clock
	visible  func() bool
	logger   *slog.Logger

	mu       sync.Mutex
	key      string
	interval time.Duration
	active   bool
	cancel   context.CancelFunc
	wake     chan struct{}
	wg       *conc.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock driving the refresh ticker.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithVisibility sets the predicate consulted at every tick; ticks are
// skipped while it reports false.
func WithVisibility(visible func() bool) Option {
	return func(c *Controller) {
		c.visible = visible
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New creates an idle controller. onUpdate runs on the controller's loop
// goroutine and must not call back into the controller.
func New(fetch FetchFunc, onUpdate func(Update), opts ...Option) *Controller {
	c := &Controller{
		fetch:    fetch,
		onUpdate: onUpdate,
		clock:    clockwork.NewRealClock(),
		visible:  func() bool { return true },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Watch starts fetching tickers: once immediately, then every interval
// (never, if interval <= 0). Calling Watch again with the same ticker set and
// interval is a no-op; anything else replaces the current watch.
func (c *Controller) Watch(tickers []fetcher.Ticker, interval time.Duration) {
	key := Key(tickers)
	if interval < 0 {
		interval = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active && c.key == key && c.interval == interval {
		return
	}
	c.stopLocked()

	c.key = key
	c.interval = interval
	c.active = true

	if key == "" {
		c.onUpdate(Update{Key: key, Quotes: []fetcher.Quote{}, At: c.clock.Now()})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg = conc.NewWaitGroup()
	if interval > 0 {
		c.wake = make(chan struct{}, 1)
	}

	wake := c.wake
	c.wg.Go(func() {
		c.run(ctx, key, interval, wake)
	})
}

// VisibilityChanged should be called when the surface's visibility flips.
// If a refresh interval is active and the surface is now visible, a fetch is
// issued right away. It is a no-op without an active interval.
func (c *Controller) VisibilityChanged() {
	c.mu.Lock()
	wake := c.wake
	c.mu.Unlock()

	if wake == nil {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

// Stop cancels the active watch and waits for its loop to exit. No update is
// delivered after Stop returns.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
	c.cancel = nil
	c.wg = nil
	c.wake = nil
	c.active = false
	c.key = ""
	c.interval = 0
}

func (c *Controller) run(ctx context.Context, key string, interval time.Duration, wake <-chan struct{}) {
	tickers := splitKey(key)
	c.fetchNow(ctx, key, tickers)

	if interval <= 0 {
		return
	}

	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !c.visible() {
				c.logger.Debug("surface hidden, skipping refresh", "tickers", key)
				continue
			}
			c.fetchNow(ctx, key, tickers)
		case <-wake:
			if c.visible() {
				c.fetchNow(ctx, key, tickers)
			}
		}
	}
}

func (c *Controller) fetchNow(ctx context.Context, key string, tickers []fetcher.Ticker) {
	quotes, err := c.fetch(ctx, tickers)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.logger.Warn("quote refresh failed", "tickers", key, "error", err)
	}
	c.onUpdate(Update{Key: key, Quotes: quotes, Err: err, At: c.clock.Now()})
}
