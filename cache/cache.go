// Package cache provides the short-TTL balance cache. Keys are deleted
// synchronously on every group mutation; deleting an absent key is a no-op,
// which keeps invalidation idempotent under concurrent writers.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the minimal surface the balance read/write paths need.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Del removes key. Removing an absent key is not an error.
	Del(ctx context.Context, key string) error
}

// BalanceKey is the cache key for a group's balance result.
func BalanceKey(groupID string) string {
	return "balances:" + groupID
}

type redisCache struct {
	rdb *redis.Client
}

// NewRedis returns a Cache backed by the given Redis client.
func NewRedis(rdb *redis.Client) Cache {
	return &redisCache{rdb: rdb}
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}
