package coordinator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/poller"
)

// Source is the quote service the coordinator renders.
type Source interface {
	GetQuote(ctx context.Context, ticker fetcher.Ticker) (fetcher.Quote, error)
	NewPoller(onUpdate func(poller.Update), opts ...poller.Option) *poller.Controller
}

// Coordinator fetches quotes concurrently and prints one row per ticker
type Coordinator struct {
	source Source
	out    io.Writer

	// serializes writes from the poller goroutine and Run's collector
	mu sync.Mutex
}

// New creates a new Coordinator writing rows to out
func New(source Source, out io.Writer) *Coordinator {
	return &Coordinator{
		source: source,
		out:    out,
	}
}

// Run fetches every ticker in its own goroutine and prints results as they
// arrive, in the format:
//   - Success: "TICKER: $PRICE (+X.XX%) @ HH:MM:SS"
//   - Error: "TICKER: ERROR - error message"
//
// A failed ticker does not fail the run.
func (c *Coordinator) Run(ctx context.Context, tickers []fetcher.Ticker) error {
	if len(tickers) == 0 {
		return fmt.Errorf("no tickers configured")
	}

	resultChan := make(chan fetcher.Result, len(tickers))

	var wg sync.WaitGroup
	for _, t := range tickers {
		wg.Add(1)
		go func(ticker fetcher.Ticker) {
			defer wg.Done()

			q, err := c.source.GetQuote(ctx, ticker)
			resultChan <- fetcher.Result{
				Ticker: fetcher.Normalize(ticker),
				Quote:  q,
				Error:  err,
			}
		}(t)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for result := range resultChan {
		c.print(result)
	}

	return nil
}

// Watch polls tickers every interval and prints each refresh until ctx is
// done. visible is consulted before each scheduled refresh; nil means always.
func (c *Coordinator) Watch(ctx context.Context, tickers []fetcher.Ticker, interval time.Duration, visible func() bool) error {
	if len(tickers) == 0 {
		return fmt.Errorf("no tickers configured")
	}

	var opts []poller.Option
	if visible != nil {
		opts = append(opts, poller.WithVisibility(visible))
	}

	p := c.source.NewPoller(c.printUpdate, opts...)
	p.Watch(tickers, interval)
	<-ctx.Done()
	p.Stop()
	return nil
}

func (c *Coordinator) printUpdate(u poller.Update) {
	for _, r := range updateResults(u) {
		c.print(r)
	}
}

// updateResults expands a batch update into per-ticker rows. A batch error
// is reported against every ticker of the batch.
func updateResults(u poller.Update) []fetcher.Result {
	if u.Err == nil {
		out := make([]fetcher.Result, len(u.Quotes))
		for i, q := range u.Quotes {
			out[i] = fetcher.Result{Ticker: q.Ticker, Quote: q}
		}
		return out
	}

	var out []fetcher.Result
	for _, t := range strings.Split(u.Key, ",") {
		out = append(out, fetcher.Result{Ticker: fetcher.Ticker(t), Error: u.Err})
	}
	return out
}

func (c *Coordinator) print(r fetcher.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, FormatResult(r))
}

// FormatResult renders one output row.
func FormatResult(r fetcher.Result) string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Ticker, r.Error)
	}
	q := r.Quote
	return fmt.Sprintf("%s: $%.2f (%+.2f%%) @ %s", q.Ticker, q.Price, q.ChangePct, q.ObservedAt.Format(time.TimeOnly))
}
