// Package provider chooses the process's single live quote provider.
package provider

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/finnhub"
	"quotefetcher/internal/ratelimit"
	"quotefetcher/internal/simulator"
)

// Mode selects which provider variant is live.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeRemote    Mode = "remote"
)

// ParseMode accepts "simulated"/"remote" and the legacy names "mock" and
// "finnhub". An empty string means simulated.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simulated", "mock":
		return ModeSimulated, nil
	case "remote", "finnhub":
		return ModeRemote, nil
	default:
		return "", fmt.Errorf("unknown quote provider %q (want simulated or remote)", s)
	}
}

// RemoteConfig carries what the remote client needs.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Policy  fetcher.RetryPolicy
	Limiter *ratelimit.Limiter
}

// Selector lazily constructs exactly one provider on first use and hands
// the same instance to every caller afterwards. There is no way back to the
// uninitialized state.
type Selector struct {
	mode   Mode
	remote RemoteConfig
	clock  clockwork.Clock
	logger *slog.Logger

	once     sync.Once
	mu       sync.Mutex
	provider fetcher.Provider
}

// NewSelector creates a selector in the uninitialized state.
func NewSelector(mode Mode, remote RemoteConfig, clock clockwork.Clock, logger *slog.Logger) *Selector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		mode:   mode,
		remote: remote,
		clock:  clock,
		logger: logger,
	}
}

// Ready reports whether a provider has been constructed.
func (s *Selector) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider != nil
}

// Provider returns the live provider, constructing it on the first call.
func (s *Selector) Provider() fetcher.Provider {
	s.once.Do(func() {
		p := s.build()
		s.mu.Lock()
		s.provider = p
		s.mu.Unlock()
		s.logger.Info("quote provider selected", "provider", p.Name())
	})
	return s.provider
}

func (s *Selector) build() fetcher.Provider {
	if s.mode == ModeRemote {
		return finnhub.NewClient(s.remote.APIKey, s.remote.BaseURL,
			finnhub.WithRetryPolicy(s.remote.Policy),
			finnhub.WithLimiter(s.remote.Limiter),
			finnhub.WithClock(s.clock),
			finnhub.WithLogger(s.logger),
		)
	}
	return simulator.New(s.clock)
}
