package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-api-wrapper/internal/weather"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(context.Background(), &RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_GetMiss(t *testing.T) {
	s, _ := newTestRedisStore(t)
	snap, ok, err := s.Get(context.Background(), "Tokyo")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestRedisStore_SetIfAbsentWritesRawValueWithTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.SetIfAbsent(ctx, "New York", weather.Snapshot(`{"temp":72}`), 180*time.Second))

	raw, err := mr.Get("New York")
	require.NoError(t, err)
	assert.Equal(t, `{"temp":72}`, raw, "key is the trimmed location and value is the raw snapshot")
	assert.Equal(t, 180*time.Second, mr.TTL("New York"))

	snap, ok, err := s.Get(ctx, "New York")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"temp":72}`, string(snap))
}

func TestRedisStore_LosingWriteDoesNotOverwriteOrExtendTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.SetIfAbsent(ctx, "Tokyo", weather.Snapshot(`{"temp":72}`), 180*time.Second))
	mr.FastForward(60 * time.Second)
	require.NoError(t, s.SetIfAbsent(ctx, "Tokyo", weather.Snapshot(`{"temp":99}`), 180*time.Second))

	raw, err := mr.Get("Tokyo")
	require.NoError(t, err)
	assert.Equal(t, `{"temp":72}`, raw)
	assert.Equal(t, 120*time.Second, mr.TTL("Tokyo"))

	mr.FastForward(120 * time.Second)
	_, ok, err := s.Get(ctx, "Tokyo")
	require.NoError(t, err)
	assert.False(t, ok, "entry expires on the first writer's schedule")
}

func TestRedisStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)
	mr.Close()

	_, _, err := s.Get(ctx, "Tokyo")
	assert.ErrorIs(t, err, weather.ErrStoreUnavailable)

	err = s.SetIfAbsent(ctx, "Tokyo", weather.Snapshot(`{}`), time.Minute)
	assert.ErrorIs(t, err, weather.ErrStoreUnavailable)

	assert.ErrorIs(t, s.Ping(ctx), weather.ErrStoreUnavailable)
}

func TestNewRedisStore_FailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), &RedisConfig{Addr: addr}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRedisStore_ReadThroughWithService(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zerolog.Nop())
	t.Cleanup(func() { _ = s.Close() })

	calls := 0
	svc := weather.NewService(s, fetcherFunc(func(context.Context, string) (weather.Snapshot, error) {
		calls++
		return weather.Snapshot(`{"temp":72}`), nil
	}))

	first, err := svc.Lookup(ctx, " Tokyo ")
	require.NoError(t, err)
	assert.Equal(t, weather.OriginFresh, first.Origin)
	assert.True(t, mr.Exists("Tokyo"))

	second, err := svc.Lookup(ctx, "Tokyo")
	require.NoError(t, err)
	assert.Equal(t, weather.OriginCache, second.Origin)
	assert.Equal(t, 1, calls)

	mr.FastForward(weather.DefaultCacheTTL)
	third, err := svc.Lookup(ctx, "Tokyo")
	require.NoError(t, err)
	assert.Equal(t, weather.OriginFresh, third.Origin)
	assert.Equal(t, 2, calls)
}

type fetcherFunc func(ctx context.Context, location string) (weather.Snapshot, error)

func (f fetcherFunc) Fetch(ctx context.Context, location string) (weather.Snapshot, error) {
	return f(ctx, location)
}
