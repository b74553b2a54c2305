package metering

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCounter keeps counts in Redis hashes: one hash per user at
// <prefix><userID>, one field per interface.
type RedisCounter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCounter creates a counter over an existing client.
func NewRedisCounter(client *redis.Client, keyPrefix string) *RedisCounter {
	return &RedisCounter{client: client, keyPrefix: keyPrefix}
}

// Key returns the hash key for userID.
func (c *RedisCounter) Key(userID string) string {
	return c.keyPrefix + userID
}

// Increment implements Counter.
func (c *RedisCounter) Increment(ctx context.Context, userID, interfaceID string) error {
	if err := c.client.HIncrBy(ctx, c.Key(userID), interfaceID, 1).Err(); err != nil {
		return fmt.Errorf("redis increment %s/%s: %w", userID, interfaceID, err)
	}
	return nil
}

// Count returns the stored count for (userID, interfaceID).
func (c *RedisCounter) Count(ctx context.Context, userID, interfaceID string) (int64, error) {
	n, err := c.client.HGet(ctx, c.Key(userID), interfaceID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Ping implements Pinger.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close implements Counter.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}
