// Package redis keeps the latest classification per sensor in Redis (or
// Valkey) for dashboards that only need current state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
)

const keyPrefix = "sensor:last:"

// StatusCache is a sink that overwrites sensor:last:<topic> with every new
// event. Keys expire after ttl so retired sensors disappear.
type StatusCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewClient creates a Redis client for addr and checks that it answers.
func NewClient(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis not reachable at %s: %w", addr, err)
	}
	return rdb, nil
}

// NewStatusCache creates a StatusCache backed by client.
func NewStatusCache(client goredis.UniversalClient, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

// Key returns the cache key for a sensor topic.
func Key(topic string) string { return keyPrefix + topic }

func (c *StatusCache) Name() string { return "redis" }

func (c *StatusCache) Write(ctx context.Context, event domain.ClassificationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize classification event: %w", err)
	}
	if err := c.client.Set(ctx, Key(event.Topic), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", Key(event.Topic), err)
	}
	return nil
}

// WriteBatch pipelines the writes. Later events for the same topic win.
func (c *StatusCache) WriteBatch(ctx context.Context, events []domain.ClassificationEvent) error {
	if len(events) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("serialize classification event: %w", err)
		}
		pipe.Set(ctx, Key(e.Topic), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Latest returns the cached event for topic. ok is false when nothing is
// cached.
func (c *StatusCache) Latest(ctx context.Context, topic string) (event domain.ClassificationEvent, ok bool, err error) {
	data, err := c.client.Get(ctx, Key(topic)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.ClassificationEvent{}, false, nil
	}
	if err != nil {
		return domain.ClassificationEvent{}, false, fmt.Errorf("redis get %s: %w", Key(topic), err)
	}
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.ClassificationEvent{}, false, fmt.Errorf("decode cached event: %w", err)
	}
	return event, true, nil
}
