package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/jafarov01/property-management-bot/config"
)

// RedisCache caches read-heavy listings (status summaries, available
// property lists). When disabled it reports every lookup as a miss so the
// service runs without Redis at all.
type RedisCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisCache creates a Redis cache from config.
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisCache{
		client:  client,
		enabled: true,
		ttl:     cfg.TTL,
	}, nil
}

// Enabled reports whether the cache is backed by a live Redis connection.
func (c *RedisCache) Enabled() bool {
	return c.enabled
}

// Get retrieves a cached value into value. ok is false on any miss,
// including when the cache is disabled.
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) (bool, error) {
	if !c.enabled {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to get value from Redis")
	}

	if err := json.Unmarshal(data, value); err != nil {
		return false, errors.Wrap(err, "failed to unmarshal cached value")
	}
	return true, nil
}

// Set stores a value under the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}
	return nil
}

// Invalidate removes keys after a state change so listings never serve
// stale occupancy.
func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if !c.enabled || len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "failed to invalidate cache keys")
	}
	return nil
}

// StatusSummaryKey is the cache key for the per-status property counts.
const StatusSummaryKey = "properties:status-summary"

// AvailableListKey is the cache key for the available-property listing.
const AvailableListKey = "properties:available"

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}

	return c.client.Close()
}
