package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTTL = 15 * time.Minute

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client, testTTL)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	state := `{"version":1,"lines":[{"product_id":"p1","quantity":2,"snapshot":{"price":"10"}}]}`
	require.NoError(t, mr.Set(cacheKey("session-1"), state))

	result, err := cache.Get(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, state, string(result))
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_ServerDown(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.Close()

	_, err := cache.Get(context.Background(), "session-1")
	require.ErrorContains(t, err, "redis get failed")
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	err := cache.Set(context.Background(), "session-2", []byte(`{"version":1,"lines":[]}`))
	require.NoError(t, err)

	stored, err := mr.Get(cacheKey("session-2"))
	require.NoError(t, err)
	assert.Equal(t, `{"version":1,"lines":[]}`, stored)
}

func TestSet_WithTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), "session-3", []byte("{}")))

	ttl := mr.TTL(cacheKey("session-3"))
	assert.True(t, ttl >= testTTL, "TTL should be at least base TTL")
	assert.True(t, ttl < testTTL+maxJitterMinutes*time.Minute, "TTL should be base + max jitter")
}

func TestDelete_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(cacheKey("session-4"), "{}"))
	assert.True(t, mr.Exists(cacheKey("session-4")))

	require.NoError(t, cache.Delete(context.Background(), "session-4"))

	assert.False(t, mr.Exists(cacheKey("session-4")))
}

func TestDelete_NonExistentKey(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.NoError(t, cache.Delete(context.Background(), "nonexistent"))
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "cart:test123", cacheKey("test123"))
}
