package weather

import (
	"context"
	"time"
)

// DefaultCacheTTL is how long a fetched snapshot stays in the cache store.
const DefaultCacheTTL = 180 * time.Second

// Fetcher abstracts the upstream weather provider.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (Snapshot, error)
}

// Store is the contract every cache backend must satisfy.
//
// Get returns (snapshot, true, nil) on a hit and (nil, false, nil) when no live
// entry exists. Backend failures are returned wrapped around ErrStoreUnavailable.
//
// SetIfAbsent creates the entry only if none exists. When an entry is already
// present it does nothing: no overwrite, no TTL extension, no error.
type Store interface {
	Get(ctx context.Context, key string) (Snapshot, bool, error)
	SetIfAbsent(ctx context.Context, key string, snapshot Snapshot, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}
