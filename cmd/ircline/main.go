// Command ircline reads raw IRC lines on stdin, dumps each parsed message and
// re-renders it once per capability set, the way a server would fan it out to
// clients with different capabilities.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pior/ircline"
	"github.com/pior/ircline/internal/config"
	"github.com/pior/ircline/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to a .toml or .yaml config file")
	envFile := flag.String("env", ".env", "Optional .env file")
	flag.Parse()

	if err := config.LoadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "ircline: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ircline: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ircline: %v\n", err)
		os.Exit(1)
	}
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdin, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("ircline stopped")
		os.Exit(1)
	}
}

// newLogger builds the process logger from the log section of cfg.
func newLogger(cfg *config.Config, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}

	if cfg.Log.Format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Str("app", "ircline")
	if cfg.Server.Network != "" {
		logger = logger.Str("network", cfg.Server.Network)
	}
	return logger.Logger(), nil
}

// serveMetrics exposes the broadcaster statistics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, b *ircline.Broadcaster, logger zerolog.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(metrics.NewRegistry(b)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server failed")
	}
}
