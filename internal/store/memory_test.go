package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-api-wrapper/internal/weather"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemoryStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = clock.Now
	return s, clock
}

func TestMemoryStore_GetMiss(t *testing.T) {
	s, _ := newTestMemoryStore()
	snap, ok, err := s.Get(context.Background(), "Tokyo")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestMemoryStore_SetIfAbsentKeepsFirstWriter(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestMemoryStore()

	require.NoError(t, s.SetIfAbsent(ctx, "Tokyo", weather.Snapshot(`{"temp":72}`), 180*time.Second))
	clock.Advance(100 * time.Second)
	require.NoError(t, s.SetIfAbsent(ctx, "Tokyo", weather.Snapshot(`{"temp":99}`), 180*time.Second))

	snap, ok, err := s.Get(ctx, "Tokyo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"temp":72}`, string(snap), "later writer must not overwrite")

	// The losing write must not have extended the TTL.
	clock.Advance(80 * time.Second)
	_, ok, err = s.Get(ctx, "Tokyo")
	require.NoError(t, err)
	assert.False(t, ok, "entry expires 180s after the first write")
}

func TestMemoryStore_ExpiredEntryCanBeRecreated(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestMemoryStore()

	require.NoError(t, s.SetIfAbsent(ctx, "Lima", weather.Snapshot(`{"v":1}`), time.Minute))
	clock.Advance(time.Minute)
	require.NoError(t, s.SetIfAbsent(ctx, "Lima", weather.Snapshot(`{"v":2}`), time.Minute))

	snap, ok, err := s.Get(ctx, "Lima")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(snap))
}

func TestMemoryStore_KeysAreVerbatim(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	require.NoError(t, s.SetIfAbsent(ctx, "Paris,France", weather.Snapshot(`{"v":1}`), time.Minute))
	_, ok, _ := s.Get(ctx, "paris,france")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "Paris,France")
	assert.True(t, ok)
}

func TestMemoryStore_StoresCopy(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	payload := []byte(`{"v":1}`)
	require.NoError(t, s.SetIfAbsent(ctx, "k", weather.Snapshot(payload), time.Minute))
	payload[5] = '9'

	snap, _, _ := s.Get(ctx, "k")
	assert.JSONEq(t, `{"v":1}`, string(snap))
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestMemoryStore()

	require.NoError(t, s.SetIfAbsent(ctx, "short", weather.Snapshot(`1`), time.Second))
	require.NoError(t, s.SetIfAbsent(ctx, "long", weather.Snapshot(`2`), time.Hour))
	clock.Advance(2 * time.Second)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_ConcurrentSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.SetIfAbsent(ctx, "race", weather.Snapshot(fmt.Sprintf(`{"writer":%d}`, i)), time.Minute))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
	_, ok, err := s.Get(ctx, "race")
	require.NoError(t, err)
	assert.True(t, ok)
}
