package lethe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Cache backed by redis, for deployments running several
// replicas of the same satellite application behind one client id. Expiry is
// delegated to redis TTLs.
type RedisCache struct {
	client *redis.Client
	maxAge time.Duration
	prefix string
}

// NewRedisCache connects to redis and returns a cache using the given key
// prefix. maxAge of zero stores entries without a TTL.
func NewRedisCache(addr string, db int, password, prefix string, maxAge time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{client: client, maxAge: maxAge, prefix: prefix}, nil
}

// NewRedisCacheWithClient wraps an existing redis client, e.g. in tests.
func NewRedisCacheWithClient(client *redis.Client, prefix string, maxAge time.Duration) *RedisCache {
	return &RedisCache{client: client, maxAge: maxAge, prefix: prefix}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.key(key), value, c.maxAge).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return nil
}

// Close releases the underlying redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
