package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	httpapi "github.com/i474232898/weather-api-wrapper/internal/api/http"
	"github.com/i474232898/weather-api-wrapper/internal/config"
	"github.com/i474232898/weather-api-wrapper/internal/scheduler"
	"github.com/i474232898/weather-api-wrapper/internal/store"
	"github.com/i474232898/weather-api-wrapper/internal/weather"
	"github.com/i474232898/weather-api-wrapper/internal/weather/providers"
)

func main() {
	os.Exit(run())
}

// run wires the service and blocks until shutdown. Deferred cleanup runs
// before the exit code is returned.
func run() int {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "weather-api-wrapper").Logger()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load config.")
		return 1
	}
	logger = logger.Level(cfg.LogLevel)

	// Cache store connection, shared by every lookup.
	initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	cacheStore, err := store.New(initCtx, cfg, logger)
	cancelInit()
	if err != nil {
		logger.Error().Err(err).Str("backend", cfg.CacheBackend).Msg("Failed to start cache store.")
		return 1
	}
	defer func() {
		if err := cacheStore.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing cache store.")
		}
	}()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.UpstreamTimeout,
	}

	fetcher := providers.NewVisualCrossingProvider(httpClient, providers.VisualCrossingConfig{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		UnitGroup: cfg.UnitGroup,
		Lang:      cfg.Lang,
	}, logger)

	service := weather.NewService(cacheStore, fetcher,
		weather.WithTTL(cfg.CacheTTL),
		weather.WithPolicy(cfg.CachePolicy),
		weather.WithFetchTimeout(cfg.UpstreamTimeout),
		weather.WithCoalescing(cfg.Coalesce),
		weather.WithLogger(logger),
	)

	// Periodic cache health probe.
	sched := scheduler.New(cacheStore, cfg.HealthInterval, logger)
	if err := sched.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start scheduler.")
		return 1
	}
	defer sched.Stop()

	app := httpapi.NewApp(service, sched, logger)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("port", cfg.Port).
		Str("cache_backend", cfg.CacheBackend).
		Str("cache_policy", string(service.Policy())).
		Dur("cache_ttl", service.TTL()).
		Msg("Server is running.")
	if err := serve(ctx, app, ":"+cfg.Port, logger); err != nil {
		logger.Error().Err(err).Msg("Fiber server stopped.")
		return 1
	}
	return 0
}

// serve runs the app until ctx is done, then shuts it down gracefully.
// A listener that fails to start returns its error at once.
func serve(ctx context.Context, app *fiber.App, addr string, logger zerolog.Logger) error {
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("Shutting down.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
