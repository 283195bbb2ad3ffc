package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quotefetcher/internal/config"
	"quotefetcher/internal/coordinator"
	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/logger"
	"quotefetcher/internal/quotes"
)

func main() {
	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		log.Fatalf("quotefetcher failed: %v", err)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:           "quotefetcher [TICKER...]",
		Short:         "Print stock quotes from the simulated or remote provider",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			lg := logger.New(cfg.LogLevel)
			slog.SetDefault(lg)

			svc := quotes.New(cfg, quotes.WithLogger(lg))
			coord := coordinator.New(svc, out)

			tickers := cfg.TickerList()
			if len(args) > 0 {
				tickers = make([]fetcher.Ticker, len(args))
				for i, a := range args {
					tickers[i] = fetcher.Ticker(a)
				}
			}

			interval := cfg.RefreshInterval()
			if cmd.Flags().Changed("refresh") {
				interval = refresh
			}

			if interval > 0 {
				return coord.Watch(cmd.Context(), tickers, interval, nil)
			}

			// Bound a one-shot run so a dead endpoint cannot hang the CLI
			fetchCtx, fetchCancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer fetchCancel()
			return coord.Run(fetchCtx, tickers)
		},
	}

	cmd.Flags().String("provider", "", "Quote provider: simulated or remote")
	cmd.Flags().Int("ttl-ms", 0, "Cache freshness window in milliseconds (0 disables caching)")
	cmd.Flags().Int("refresh-ms", 0, "Refresh interval in milliseconds (0 prints once)")
	cmd.Flags().DurationVar(&refresh, "refresh", 0, "Refresh interval, e.g. 5s (overrides --refresh-ms)")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn or error")

	return cmd
}
