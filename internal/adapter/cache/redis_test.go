package cache

import (
	"context"
	"os"
	"testing"
	"time"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set REDIS_ADDR (e.g. 127.0.0.1:6379) to run these against a live server.
func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisCacheStatus(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	c := NewRedisCache(rdb, time.Minute)

	id := time.Now().UnixNano()
	_, ok, err := c.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetStatus(ctx, id, domain.StatusPaid))
	st, ok, err := c.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.StatusPaid, st)

	require.NoError(t, c.DeleteStatus(ctx, id))
	_, ok, err = c.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rdb.Set(ctx, statusKey(id), "garbage", time.Minute).Err())
	_, ok, err = c.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisIdempotencyLifecycle(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	s := NewRedisIdempotencyStore(rdb, time.Minute)
	key := uuid.NewString()

	ok, err := s.TryLock(ctx, "orders", key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryLock(ctx, "orders", key)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	require.NoError(t, s.Remember(ctx, "orders", key, "42"))
	val, found, err := s.Recall(ctx, "orders", key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "42", val)

	require.NoError(t, s.Forget(ctx, "orders", key))
	_, found, err = s.Recall(ctx, "orders", key)
	require.NoError(t, err)
	assert.False(t, found)

	ok, err = s.TryLock(ctx, "orders", key)
	require.NoError(t, err)
	assert.True(t, ok, "forgotten key can be claimed again")
	require.NoError(t, s.Forget(ctx, "orders", key))
}
