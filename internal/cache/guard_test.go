package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestGuardAcquireRelease(t *testing.T) {
	_, rdb := newTestRedis(t)
	logger := zerolog.New(io.Discard)
	guard := NewBookingGuard(rdb, 10*time.Second, &logger)
	ctx := context.Background()

	ok, err := guard.Acquire(ctx, "org-1", "a-1", day)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second writer on the same partition is refused.
	ok, err = guard.Acquire(ctx, "org-1", "a-1", day)
	require.NoError(t, err)
	assert.False(t, ok)

	// Different partitions do not contend.
	ok, err = guard.Acquire(ctx, "org-1", "a-1", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = guard.Acquire(ctx, "org-1", "a-2", day)
	require.NoError(t, err)
	assert.True(t, ok)

	guard.Release(ctx, "org-1", "a-1", day)
	ok, err = guard.Acquire(ctx, "org-1", "a-1", day)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuardTTLExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	logger := zerolog.New(io.Discard)
	guard := NewBookingGuard(rdb, time.Second, &logger)
	ctx := context.Background()

	ok, err := guard.Acquire(ctx, "org-1", "a-1", day)
	require.NoError(t, err)
	require.True(t, ok)

	// A crashed holder cannot wedge the partition past the TTL.
	mr.FastForward(2 * time.Second)

	ok, err = guard.Acquire(ctx, "org-1", "a-1", day)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuardFallsBackWhenRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	logger := zerolog.New(io.Discard)
	guard := NewBookingGuard(rdb, 10*time.Second, &logger)
	ctx := context.Background()

	mr.Close()

	// Redis is unreachable: the in-process table still serializes writers.
	ok, err := guard.Acquire(ctx, "org-1", "a-1", day)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.Acquire(ctx, "org-1", "a-1", day)
	require.NoError(t, err)
	assert.False(t, ok)

	guard.Release(ctx, "org-1", "a-1", day)
	ok, err = guard.Acquire(ctx, "org-1", "a-1", day)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuardWithoutRedis(t *testing.T) {
	logger := zerolog.New(io.Discard)
	guard := NewBookingGuard(nil, 10*time.Second, &logger)
	ctx := context.Background()

	ok, err := guard.Acquire(ctx, "org-1", "a-1", day)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.Acquire(ctx, "org-1", "a-1", day)
	require.NoError(t, err)
	assert.False(t, ok)
}
