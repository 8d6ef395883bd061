// Package store provides the cache backends behind weather.Store.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/i474232898/weather-api-wrapper/internal/config"
	"github.com/i474232898/weather-api-wrapper/internal/weather"
)

// New opens the cache backend selected by cfg.CacheBackend.
func New(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (weather.Store, error) {
	switch cfg.CacheBackend {
	case "redis":
		return NewRedisStore(ctx, &RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
	case "memcache":
		s := NewMemcacheStore(logger, cfg.MemcacheAddrs...)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to connect to memcache: %w", err)
		}
		logger.Info().Strs("memcache_servers", cfg.MemcacheAddrs).Msg("Successfully connected to memcache.")
		return s, nil
	case "memory":
		logger.Info().Msg("Using in-process memory cache store.")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
