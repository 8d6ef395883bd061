package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-api-wrapper/internal/weather"
)

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps snapshots in Redis. Keys are the trimmed location verbatim,
// values are the raw snapshot JSON, and expiry is enforced by Redis itself.
type RedisStore struct {
	redisClient *redis.Client
	logger      zerolog.Logger
}

// NewRedisStore creates and connects a new RedisStore.
// It pings the Redis server to ensure connectivity before returning.
func NewRedisStore(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")
	return NewRedisStoreFromClient(rdb, logger), nil
}

// NewRedisStoreFromClient wraps an existing client. The store takes ownership
// and closes it on Close.
func NewRedisStoreFromClient(rdb *redis.Client, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisStore").Logger(),
	}
}

// Get returns the cached snapshot for key. redis.Nil is a normal miss.
func (s *RedisStore) Get(ctx context.Context, key string) (weather.Snapshot, bool, error) {
	data, err := s.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		s.logger.Error().Err(err).Str("key", key).Msg("Unexpected Redis error during fetch.")
		return nil, false, fmt.Errorf("%w: redis get %q: %v", weather.ErrStoreUnavailable, key, err)
	}

	s.logger.Debug().Str("key", key).Msg("Redis cache hit.")
	return weather.Snapshot(data), true, nil
}

// SetIfAbsent issues SET key value NX EX ttl. A key that already exists keeps
// its value and its remaining TTL.
func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, snapshot weather.Snapshot, ttl time.Duration) error {
	created, err := s.redisClient.SetNX(ctx, key, []byte(snapshot), ttl).Result()
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to set data in Redis cache.")
		return fmt.Errorf("%w: redis set %q: %v", weather.ErrStoreUnavailable, key, err)
	}

	if created {
		s.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Stored snapshot in Redis cache.")
	} else {
		s.logger.Debug().Str("key", key).Msg("Entry already present, write discarded.")
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", weather.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	if s.redisClient != nil {
		s.logger.Info().Msg("Closing Redis client connection...")
		return s.redisClient.Close()
	}
	return nil
}
