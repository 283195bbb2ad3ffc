package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"quotefetcher/internal/provider"
)

var allEnvVars = []string{
	"QUOTES_PROVIDER",
	"FINNHUB_API_KEY",
	"FINNHUB_API_BASE",
	"QUOTES_TTL_MS",
	"FINNHUB_TIMEOUT_MS",
	"FINNHUB_RETRIES",
	"FINNHUB_BACKOFF_MS",
	"FINNHUB_RATE_LIMIT",
	"FINNHUB_RATE_BURST",
	"QUOTES_TICKERS",
	"QUOTES_REFRESH_MS",
	"LOG_LEVEL",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.Mode() != provider.ModeSimulated {
		t.Errorf("Mode() = %q, want %q", cfg.Mode(), provider.ModeSimulated)
	}
	if cfg.FinnhubBaseURL != "https://finnhub.io/api/v1" {
		t.Errorf("FinnhubBaseURL = %q, want production default", cfg.FinnhubBaseURL)
	}
	if cfg.CacheTTL() != 20*time.Second {
		t.Errorf("CacheTTL() = %v, want 20s", cfg.CacheTTL())
	}

	policy := cfg.RetryPolicy()
	if policy.Timeout != 6*time.Second || policy.Retries != 2 || policy.BackoffBase != 300*time.Millisecond {
		t.Errorf("RetryPolicy() = %+v, want 6s/2/300ms", policy)
	}
	if cfg.RefreshInterval() != 0 {
		t.Errorf("RefreshInterval() = %v, want 0", cfg.RefreshInterval())
	}
	if cfg.RateLimit != 1 || cfg.RateBurst != 5 {
		t.Errorf("rate limit = %v/%d, want 1/5", cfg.RateLimit, cfg.RateBurst)
	}
	if len(cfg.Tickers) != 0 {
		t.Errorf("Tickers = %v, want empty", cfg.Tickers)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	envVars := map[string]string{
		"QUOTES_PROVIDER":    "remote",
		"FINNHUB_API_KEY":    "test_finnhub_key",
		"FINNHUB_API_BASE":   "https://test.finnhub.io",
		"QUOTES_TTL_MS":      "5000",
		"FINNHUB_TIMEOUT_MS": "1500",
		"FINNHUB_RETRIES":    "0",
		"FINNHUB_BACKOFF_MS": "50",
		"FINNHUB_RATE_LIMIT": "0.5",
		"FINNHUB_RATE_BURST": "2",
		"QUOTES_TICKERS":     "aapl, MSFT ,,googl",
		"QUOTES_REFRESH_MS":  "10000",
		"LOG_LEVEL":          "debug",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"Mode", cfg.Mode(), provider.ModeRemote},
		{"FinnhubAPIKey", cfg.FinnhubAPIKey, "test_finnhub_key"},
		{"FinnhubBaseURL", cfg.FinnhubBaseURL, "https://test.finnhub.io"},
		{"CacheTTL", cfg.CacheTTL(), 5 * time.Second},
		{"Timeout", cfg.RetryPolicy().Timeout, 1500 * time.Millisecond},
		{"Retries", cfg.RetryPolicy().Retries, 0},
		{"BackoffBase", cfg.RetryPolicy().BackoffBase, 50 * time.Millisecond},
		{"RateLimit", cfg.RateLimit, 0.5},
		{"RateBurst", cfg.RateBurst, 2},
		{"Tickers", strings.Join(cfg.Tickers, "|"), "aapl|MSFT|googl"},
		{"RefreshInterval", cfg.RefreshInterval(), 10 * time.Second},
		{"LogLevel", cfg.LogLevel, "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if got := cfg.TickerList(); len(got) != 3 || got[0] != "aapl" {
		t.Errorf("TickerList() = %v", got)
	}
}

func TestLoad_LegacyProviderNames(t *testing.T) {
	tests := []struct {
		value string
		want  provider.Mode
	}{
		{"mock", provider.ModeSimulated},
		{"finnhub", provider.ModeRemote},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("QUOTES_PROVIDER", tt.value)

			cfg, err := Load(nil)
			if err != nil {
				t.Fatalf("Load() returned unexpected error: %v", err)
			}
			if cfg.Mode() != tt.want {
				t.Errorf("Mode() = %q, want %q", cfg.Mode(), tt.want)
			}
		})
	}
}

func TestLoad_MissingKeyIsNotALoadError(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUOTES_PROVIDER", "remote")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.FinnhubAPIKey != "" {
		t.Errorf("FinnhubAPIKey = %q, want empty", cfg.FinnhubAPIKey)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    map[string]string
		wantErrText string
	}{
		{
			name:        "unknown provider",
			setupEnv:    map[string]string{"QUOTES_PROVIDER": "yahoo"},
			wantErrText: `unknown quote provider "yahoo"`,
		},
		{
			name:        "negative ttl",
			setupEnv:    map[string]string{"QUOTES_TTL_MS": "-1"},
			wantErrText: "cache_ttl_ms must not be negative",
		},
		{
			name:        "negative retries",
			setupEnv:    map[string]string{"FINNHUB_RETRIES": "-2"},
			wantErrText: "retries must not be negative",
		},
		{
			name:        "too many retries",
			setupEnv:    map[string]string{"FINNHUB_RETRIES": "64"},
			wantErrText: "retries must be at most 10",
		},
		{
			name:        "negative rate limit",
			setupEnv:    map[string]string{"FINNHUB_RATE_LIMIT": "-1"},
			wantErrText: "rate_limit must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tt.setupEnv {
				t.Setenv(key, value)
			}

			_, err := Load(nil)
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrText) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrText)
			}
		})
	}
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUOTES_PROVIDER", "simulated")
	t.Setenv("QUOTES_REFRESH_MS", "1000")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("provider", "", "")
	fs.Int("refresh-ms", 0, "")
	fs.Int("ttl-ms", 0, "")
	if err := fs.Parse([]string{"--provider=remote", "--refresh-ms=2500"}); err != nil {
		t.Fatalf("Parse() returned unexpected error: %v", err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.Mode() != provider.ModeRemote {
		t.Errorf("Mode() = %q, want remote", cfg.Mode())
	}
	if cfg.RefreshInterval() != 2500*time.Millisecond {
		t.Errorf("RefreshInterval() = %v, want 2.5s", cfg.RefreshInterval())
	}
	// An unset flag must not clobber the default.
	if cfg.CacheTTL() != 20*time.Second {
		t.Errorf("CacheTTL() = %v, want 20s", cfg.CacheTTL())
	}
}
