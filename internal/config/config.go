package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"quotefetcher/internal/cache"
	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/finnhub"
	"quotefetcher/internal/provider"
)

// MaxRetries bounds FINNHUB_RETRIES.
const MaxRetries = 10

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"provider":   "provider",
	"ttl-ms":     "cache_ttl_ms",
	"refresh-ms": "refresh_ms",
	"log-level":  "log_level",
}

// Config holds all configuration for the quote fetcher. It is read once at
// process start.
type Config struct {
	// Provider selection: simulated | remote
	Provider string `mapstructure:"provider"`

	// Remote endpoint (configurable for testing) and credential
	FinnhubBaseURL string `mapstructure:"finnhub_base_url"`
	FinnhubAPIKey  string `mapstructure:"finnhub_api_key"`

	// Cache and remote hardening, in milliseconds
	CacheTTLMs int `mapstructure:"cache_ttl_ms"`
	TimeoutMs  int `mapstructure:"timeout_ms"`
	Retries    int `mapstructure:"retries"`
	BackoffMs  int `mapstructure:"backoff_ms"`

	// Remote rate limit in requests per second (0 = unlimited)
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	// Items to fetch and optional refresh cadence
	Tickers   []string `mapstructure:"tickers"`
	RefreshMs int      `mapstructure:"refresh_ms"`

	LogLevel string `mapstructure:"log_level"`
}

// Mode returns the parsed provider mode. Load has already validated it.
func (c *Config) Mode() provider.Mode {
	m, _ := provider.ParseMode(c.Provider)
	return m
}

// CacheTTL returns the cache freshness window.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}

// RefreshInterval returns the polling cadence; zero disables polling.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshMs) * time.Millisecond
}

// RetryPolicy returns the remote client's timeout/retry/backoff policy.
func (c *Config) RetryPolicy() fetcher.RetryPolicy {
	return fetcher.RetryPolicy{
		Timeout:     time.Duration(c.TimeoutMs) * time.Millisecond,
		Retries:     c.Retries,
		BackoffBase: time.Duration(c.BackoffMs) * time.Millisecond,
	}
}

// TickerList returns the configured tickers as fetcher.Ticker values.
func (c *Config) TickerList() []fetcher.Ticker {
	out := make([]fetcher.Ticker, 0, len(c.Tickers))
	for _, t := range c.Tickers {
		out = append(out, fetcher.Ticker(t))
	}
	return out
}

// Load reads configuration from an optional .env file, environment
// variables, an optional config file, and flags (when fs is non-nil).
// Flags take precedence over environment variables, which take precedence
// over config file values.
//
// Expected environment variables:
//   - QUOTES_PROVIDER (optional, simulated | remote, defaults to simulated)
//   - FINNHUB_API_KEY (required only for the remote provider, checked on first fetch)
//   - FINNHUB_API_BASE (optional, defaults to production)
//   - QUOTES_TTL_MS (optional, defaults to 20000)
//   - FINNHUB_TIMEOUT_MS, FINNHUB_RETRIES, FINNHUB_BACKOFF_MS (optional, default 6000 / 2 / 300)
//   - FINNHUB_RATE_LIMIT, FINNHUB_RATE_BURST (optional, default 1 / 5)
//   - QUOTES_TICKERS (optional, comma separated)
//   - QUOTES_REFRESH_MS (optional, defaults to 0 = no refresh)
//   - LOG_LEVEL (optional, defaults to info)
func Load(fs *pflag.FlagSet) (*Config, error) {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	v := viper.New()

	// Set up environment variable support
	v.SetEnvPrefix("") // No prefix, use full names
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("provider", string(provider.ModeSimulated))
	v.SetDefault("finnhub_base_url", finnhub.DefaultBaseURL)
	v.SetDefault("cache_ttl_ms", cache.DefaultTTL.Milliseconds())
	v.SetDefault("timeout_ms", fetcher.DefaultTimeout.Milliseconds())
	v.SetDefault("retries", fetcher.DefaultRetries)
	v.SetDefault("backoff_ms", fetcher.DefaultBackoffBase.Milliseconds())
	v.SetDefault("rate_limit", 1.0)
	v.SetDefault("rate_burst", 5)
	v.SetDefault("refresh_ms", 0)
	v.SetDefault("log_level", "info")

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.quotefetcher")

	// Read config file (ignore if not found)
	_ = v.ReadInConfig()

	v.BindEnv("provider", "QUOTES_PROVIDER")
	v.BindEnv("finnhub_api_key", "FINNHUB_API_KEY")
	v.BindEnv("finnhub_base_url", "FINNHUB_API_BASE")
	v.BindEnv("cache_ttl_ms", "QUOTES_TTL_MS")
	v.BindEnv("timeout_ms", "FINNHUB_TIMEOUT_MS")
	v.BindEnv("retries", "FINNHUB_RETRIES")
	v.BindEnv("backoff_ms", "FINNHUB_BACKOFF_MS")
	v.BindEnv("rate_limit", "FINNHUB_RATE_LIMIT")
	v.BindEnv("rate_burst", "FINNHUB_RATE_BURST")
	v.BindEnv("tickers", "QUOTES_TICKERS")
	v.BindEnv("refresh_ms", "QUOTES_REFRESH_MS")
	v.BindEnv("log_level", "LOG_LEVEL")

	// Bind command-line flags that override individual keys
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Unmarshal config into struct
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Tickers = splitTickers(config.Tickers)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	var problems []string
	if _, err := provider.ParseMode(c.Provider); err != nil {
		problems = append(problems, err.Error())
	}
	for name, val := range map[string]int{
		"cache_ttl_ms": c.CacheTTLMs,
		"timeout_ms":   c.TimeoutMs,
		"retries":      c.Retries,
		"backoff_ms":   c.BackoffMs,
		"rate_burst":   c.RateBurst,
		"refresh_ms":   c.RefreshMs,
	} {
		if val < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative", name))
		}
	}
	if c.Retries > MaxRetries {
		problems = append(problems, fmt.Sprintf("retries must be at most %d", MaxRetries))
	}
	if c.RateLimit < 0 {
		problems = append(problems, "rate_limit must not be negative")
	}

	if len(problems) > 0 {
		// map iteration order is random; keep the message stable
		slices.Sort(problems)
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// splitTickers flattens comma-separated entries, since an env var arrives as
// a single string.
func splitTickers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, t := range strings.Split(entry, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
