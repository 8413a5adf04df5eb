//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/cache"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/testutil"
)

func TestRedisStore_FixedWindow(t *testing.T) {
	ctx := context.Background()
	addr := testutil.StartRedis(t)

	rc, err := cache.NewRedisClient(cache.RedisConfig{Addr: addr, Prefix: "test:"})
	require.NoError(t, err)
	defer rc.Close()

	store := NewRedisStore(rc.Raw(), rc.Prefix(), Config{MaxRequests: 3, Window: time.Minute})

	passed := 0
	var last Result
	for i := 0; i < 5; i++ {
		last, err = store.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		if last.Allowed {
			passed++
		}
	}
	assert.Equal(t, 3, passed)
	assert.False(t, last.Allowed)
	assert.Greater(t, last.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, last.RetryAfter, time.Minute)

	other, err := store.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
	assert.Equal(t, 2, other.Remaining)

	ttl, err := rc.Raw().TTL(ctx, "test:ratelimit:10.0.0.1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisClient_Cache(t *testing.T) {
	ctx := context.Background()
	addr := testutil.StartRedis(t)

	client := redis.NewClient(&redis.Options{Addr: addr})
	rc := cache.NewRedisClientFrom(client, "")
	defer rc.Close()

	_, err := rc.Get(ctx, "route:x")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, rc.Set(ctx, "route:x", []byte("v"), time.Minute))
	got, err := rc.Get(ctx, "route:x")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, rc.Delete(ctx, "route:x"))
	_, err = rc.Get(ctx, "route:x")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
