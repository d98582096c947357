package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSONCache stores JSON encoded values under a single key with a TTL.
type JSONCache[T any] struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewJSONCache[T any](client *redis.Client, key string, ttl time.Duration) *JSONCache[T] {
	return &JSONCache[T]{client: client, key: key, ttl: ttl}
}

// Load returns ok=false on a miss.
func (c *JSONCache[T]) Load(ctx context.Context) (T, bool, error) {
	var zero T
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		// drop undecodable entries so the next read repopulates
		_ = c.client.Del(ctx, c.key).Err()
		return zero, false, nil
	}
	return v, true, nil
}

func (c *JSONCache[T]) Store(ctx context.Context, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, raw, c.ttl).Err()
}

func (c *JSONCache[T]) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
