package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-api-wrapper/internal/weather"
)

const (
	// maxMemcacheKey is the memcached protocol key length limit.
	maxMemcacheKey = 250
	// maxMemcacheTTL is the longest relative expiration memcached accepts.
	// Larger exptime values are read as absolute unix timestamps.
	maxMemcacheTTL = 30 * 24 * time.Hour
)

// MemcacheStore keeps snapshots in memcached. Writes use the add command,
// which memcached only applies when the key is not already present.
type MemcacheStore struct {
	mc     *memcache.Client
	logger zerolog.Logger
}

// NewMemcacheStore creates a client for the given servers.
func NewMemcacheStore(logger zerolog.Logger, servers ...string) *MemcacheStore {
	return &MemcacheStore{
		mc:     memcache.New(servers...),
		logger: logger.With().Str("component", "MemcacheStore").Logger(),
	}
}

// Get returns the cached snapshot for key. ErrCacheMiss is a normal miss.
func (s *MemcacheStore) Get(_ context.Context, key string) (weather.Snapshot, bool, error) {
	item, err := s.mc.Get(memcacheKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		s.logger.Warn().Err(err).Str("key", key).Msg("mc.Get failed.")
		return nil, false, fmt.Errorf("%w: memcache get %q: %v", weather.ErrStoreUnavailable, key, err)
	}
	return weather.Snapshot(item.Value), true, nil
}

// SetIfAbsent adds the snapshot unless the key is present. Losing the race
// (ErrNotStored) is not an error.
func (s *MemcacheStore) SetIfAbsent(_ context.Context, key string, snapshot weather.Snapshot, ttl time.Duration) error {
	exp, err := memcacheExpiration(ttl)
	if err != nil {
		return err
	}
	err = s.mc.Add(&memcache.Item{
		Key:        memcacheKey(key),
		Value:      []byte(snapshot),
		Expiration: exp,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, memcache.ErrNotStored):
		s.logger.Debug().Str("key", key).Msg("Entry already present, write discarded.")
		return nil
	default:
		s.logger.Error().Err(err).Str("key", key).Msg("mc.Add failed.")
		return fmt.Errorf("%w: memcache add %q: %v", weather.ErrStoreUnavailable, key, err)
	}
}

// Ping checks every configured server.
func (s *MemcacheStore) Ping(context.Context) error {
	if err := s.mc.Ping(); err != nil {
		return fmt.Errorf("%w: %v", weather.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases idle connections.
func (s *MemcacheStore) Close() error {
	return s.mc.Close()
}

// memcacheKey maps a location onto a legal memcached key. Memcached rejects
// whitespace and control characters, so the location is query-escaped; keys
// still over the length limit are replaced by their SHA-256.
func memcacheKey(key string) string {
	escaped := url.QueryEscape(key)
	if len(escaped) <= maxMemcacheKey {
		return escaped
	}
	sum := sha256.Sum256([]byte(key))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// memcacheExpiration converts ttl to a relative exptime in whole seconds,
// rounding up so a sub-second ttl never becomes 0 (no expiry).
func memcacheExpiration(ttl time.Duration) (int32, error) {
	if ttl <= 0 || ttl > maxMemcacheTTL {
		return 0, fmt.Errorf("memcache ttl %s out of range (0, %s]", ttl, maxMemcacheTTL)
	}
	return int32((ttl + time.Second - 1) / time.Second), nil
}
