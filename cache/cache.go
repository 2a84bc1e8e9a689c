// Package cache provides an optional Redis-backed cache for rendered
// prediction payloads, keyed by period and horizon.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// PredictionCache stores serialized prediction responses with a TTL. Cache
// failures are never surfaced to callers; a broken cache degrades to misses.
type PredictionCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry
}

// New connects to Redis and verifies the connection with a ping.
func New(addr, password string, db int, ttl time.Duration, logger *logrus.Logger) (*PredictionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: connect to redis at %s: %w", addr, err)
	}

	return &PredictionCache{
		client: client,
		ttl:    ttl,
		log:    logger.WithField("component", "prediction_cache"),
	}, nil
}

func key(kind, period string, days int) string {
	return fmt.Sprintf("forecast:%s:%s:%d", kind, period, days)
}

// Get returns a cached payload, or nil and false on a miss or cache error.
func (c *PredictionCache) Get(ctx context.Context, kind, period string, days int) ([]byte, bool) {
	data, err := c.client.Get(ctx, key(kind, period, days)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).Warn("cache read failed")
		return nil, false
	}
	return data, true
}

// Set stores a payload with the configured TTL. Errors are logged and
// swallowed.
func (c *PredictionCache) Set(ctx context.Context, kind, period string, days int, payload []byte) {
	if err := c.client.Set(ctx, key(kind, period, days), payload, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("cache write failed")
	}
}

// Invalidate drops every cached prediction. Called when a new model record
// is published so stale forecasts never outlive the model that produced
// them.
func (c *PredictionCache) Invalidate(ctx context.Context) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, "forecast:*", 100).Result()
		if err != nil {
			c.log.WithError(err).Warn("cache invalidation scan failed")
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.log.WithError(err).Warn("cache invalidation delete failed")
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Close releases the Redis connection.
func (c *PredictionCache) Close() error {
	return c.client.Close()
}
