package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openblog/backend/internal/logger"
)

// Cache is a JSON read-through cache on Redis. Failures are logged and
// treated as misses so the store stays the source of truth.
type Cache struct {
	client *redis.Client
	log    *logger.Logger
}

func New(ctx context.Context, addr string, log *logger.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("cache")
	log.Info(ctx, "connected to redis", logger.Fields{"addr": addr})
	return &Cache{client: client, log: log}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		c.log.Debug(ctx, "cache miss", logger.Fields{"key": key})
		return "", false
	}
	if err != nil {
		c.log.Warn(ctx, "cache get failed", logger.Fields{"key": key, "error": err.Error()})
		return "", false
	}
	c.log.Debug(ctx, "cache hit", logger.Fields{"key": key})
	return val, true
}

func (c *Cache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache set failed", logger.Fields{"key": key, "error": err.Error()})
		return err
	}
	return nil
}

// GetJSON decodes the cached value for key into dst.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	val, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		c.log.Warn(ctx, "cache decode failed", logger.Fields{"key": key, "error": err.Error()})
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn(ctx, "cache encode failed", logger.Fields{"key": key, "error": err.Error()})
		return
	}
	_ = c.Set(ctx, key, string(data), ttl)
}

// Generation returns the counter stored at key, 0 when it is unset. ok is
// false when Redis could not be read.
func (c *Cache) Generation(ctx context.Context, key string) (gen int64, ok bool) {
	gen, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.log.Warn(ctx, "cache generation read failed", logger.Fields{"key": key, "error": err.Error()})
		return 0, false
	}
	return gen, true
}

// Bump increments the counter at key, orphaning every entry keyed on the
// previous value.
func (c *Cache) Bump(ctx context.Context, key string) {
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		c.log.Warn(ctx, "cache bump failed", logger.Fields{"key": key, "error": err.Error()})
	}
}
