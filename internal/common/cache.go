package common

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the key-value capability the services are given. The concrete
// implementation is Redis; callers must treat every error as advisory and
// fall back to the document store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LSet(ctx context.Context, key string, index int64, value string) error
	LRem(ctx context.Context, key string, count int64, value string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}

type RedisCache struct {
	rdb *redis.Client
}

// NewCache connects to Redis using a URL such as redis://:pass@host:6379/0
// and fails fast if the server is unreachable.
func NewCache(URI string) (*RedisCache, error) {
	opt, err := redis.ParseURL(URI)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	return b, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *RedisCache) RPush(ctx context.Context, key string, values ...string) error {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}

	return c.rdb.RPush(ctx, key, args...).Err()
}

func (c *RedisCache) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.rdb.LRange(ctx, key, start, stop).Result()
}

func (c *RedisCache) LSet(ctx context.Context, key string, index int64, value string) error {
	return c.rdb.LSet(ctx, key, index, value).Err()
}

func (c *RedisCache) LRem(ctx context.Context, key string, count int64, value string) error {
	return c.rdb.LRem(ctx, key, count, value).Err()
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func CacheKeyBlog(id string) string {
	return "blog:" + id
}

func CacheKeyAllBlogs() string {
	return "blogs:all"
}
