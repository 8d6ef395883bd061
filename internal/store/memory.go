package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/weather-api-wrapper/internal/weather"
)

// memoryEntry holds a snapshot and the absolute time it stops being served.
type memoryEntry struct {
	snapshot  weather.Snapshot
	expiresAt time.Time
}

// MemoryStore is a concurrency-safe in-process implementation of weather.Store.
// Expired entries are invisible to Get immediately; Sweep reclaims their memory.
type MemoryStore struct {
	mu sync.RWMutex

	// key: trimmed location, value: cached snapshot
	data map[string]memoryEntry

	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// Get returns the live snapshot for key.
func (s *MemoryStore) Get(_ context.Context, key string) (weather.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.snapshot, true, nil
}

// SetIfAbsent stores snapshot under key unless a live entry already exists.
func (s *MemoryStore) SetIfAbsent(_ context.Context, key string, snapshot weather.Snapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.data[key]; ok && now.Before(e.expiresAt) {
		return nil
	}

	stored := make(weather.Snapshot, len(snapshot))
	copy(stored, snapshot)
	s.data[key] = memoryEntry{snapshot: stored, expiresAt: now.Add(ttl)}
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.data {
		if !now.Before(e.expiresAt) {
			delete(s.data, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries held, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
