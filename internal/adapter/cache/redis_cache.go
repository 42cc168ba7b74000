package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/aq2208/gorder-inventory/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps the last written status per order. Storage is the source
// of truth; a miss falls back to it.
type RedisCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisCache(rdb redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func statusKey(orderID int64) string {
	return "order:status:" + strconv.FormatInt(orderID, 10)
}

func (r *RedisCache) SetStatus(ctx context.Context, orderID int64, status domain.Status) error {
	return r.rdb.Set(ctx, statusKey(orderID), string(status), r.ttl).Err()
}

func (r *RedisCache) GetStatus(ctx context.Context, orderID int64) (domain.Status, bool, error) {
	val, err := r.rdb.Get(ctx, statusKey(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	st, err := domain.ParseStatus(val)
	if err != nil {
		// unreadable entry: treat as a miss and let the caller overwrite it
		return "", false, nil
	}
	return st, true, nil
}

func (r *RedisCache) DeleteStatus(ctx context.Context, orderID int64) error {
	return r.rdb.Del(ctx, statusKey(orderID)).Err()
}

var _ usecase.OrderCache = (*RedisCache)(nil)
