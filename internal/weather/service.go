package weather

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CachePolicy decides what a lookup does when the cache store fails.
type CachePolicy string

const (
	// PolicyStrict fails the lookup when the cache store cannot be read or written.
	PolicyStrict CachePolicy = "strict"
	// PolicyDegraded bypasses the cache store on failure and serves straight
	// from upstream, skipping the write-back.
	PolicyDegraded CachePolicy = "degraded"
)

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides DefaultCacheTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPolicy selects the cache failure policy.
func WithPolicy(p CachePolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithFetchTimeout bounds each upstream call. Zero leaves the bound to the
// fetcher's own transport.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.fetchTimeout = d
	}
}

// WithCoalescing collapses concurrent misses for the same location into a
// single upstream call.
func WithCoalescing(enabled bool) Option {
	return func(s *Service) {
		s.coalesce = enabled
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service serves weather lookups from the cache store, falling back to the
// upstream provider on a miss. It holds no per-lookup state and is safe for
// concurrent use.
type Service struct {
	store   Store
	fetcher Fetcher

	ttl          time.Duration
	policy       CachePolicy
	fetchTimeout time.Duration
	coalesce     bool
	inflight     singleflight.Group

	logger zerolog.Logger
}

// NewService creates a new Service.
func NewService(store Store, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		store:   store,
		fetcher: fetcher,
		ttl:     DefaultCacheTTL,
		policy:  PolicyStrict,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "WeatherService").Logger()
	return s
}

// TTL returns the lifetime given to new cache entries.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Policy returns the configured cache failure policy.
func (s *Service) Policy() CachePolicy {
	return s.policy
}

// Lookup returns the weather snapshot for location, reading through the cache.
//
// Failed upstream calls are never cached, so the next lookup for the same
// location goes upstream again.
func (s *Service) Lookup(ctx context.Context, location string) (LookupResult, error) {
	key := strings.TrimSpace(location)
	if key == "" {
		return LookupResult{}, ErrInvalidLocation
	}

	useCache := true
	cached, found, err := s.store.Get(ctx, key)
	if err != nil {
		if s.policy != PolicyDegraded {
			return LookupResult{}, err
		}
		s.logger.Warn().Err(err).Str("location", key).Msg("Cache read failed, bypassing cache.")
		useCache = false
	}
	if found {
		s.logger.Debug().Str("location", key).Msg("Cache hit.")
		return LookupResult{Snapshot: cached, Origin: OriginCache}, nil
	}

	fresh, err := s.fetch(ctx, key)
	if err != nil {
		return LookupResult{}, err
	}

	if useCache {
		if err := s.store.SetIfAbsent(ctx, key, fresh, s.ttl); err != nil {
			if s.policy != PolicyDegraded {
				return LookupResult{}, err
			}
			s.logger.Warn().Err(err).Str("location", key).Msg("Cache write failed, serving fresh data.")
		}
	}

	return LookupResult{Snapshot: fresh, Origin: OriginFresh}, nil
}

// fetch calls upstream detached from the caller's cancellation: once started
// a fetch runs until it completes or the fetch timeout expires.
func (s *Service) fetch(ctx context.Context, key string) (Snapshot, error) {
	call := func() (Snapshot, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if s.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, s.fetchTimeout)
			defer cancel()
		}

		snap, err := s.fetcher.Fetch(fetchCtx, key)
		if err != nil {
			s.logger.Error().Err(err).Str("location", key).Msg("Upstream fetch failed.")
			return nil, err
		}
		if snap.IsEmpty() {
			return nil, ErrUpstreamEmptyResult
		}
		return snap, nil
	}

	if !s.coalesce {
		return call()
	}

	v, err, shared := s.inflight.Do(key, func() (interface{}, error) {
		return call()
	})
	if err != nil {
		return nil, err
	}
	snap, ok := v.(Snapshot)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T from coalesced fetch", v)
	}
	if shared {
		s.logger.Debug().Str("location", key).Msg("Joined in-flight upstream fetch.")
	}
	return snap, nil
}
