package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimKeyPrefix namespaces claim keys in a shared Redis instance.
const claimKeyPrefix = "sniper:claim:"

// RedisGate is a Gate backed by Redis SET NX PX, giving atomic claims
// that survive across process restarts within the TTL.
type RedisGate struct {
	client *redis.Client
}

// NewRedisGate connects to the Redis instance at url and verifies the
// connection before returning.
func NewRedisGate(ctx context.Context, url string) (*RedisGate, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisGate{client: client}, nil
}

// TryClaim claims key with SET NX PX. The write and the existence check
// are a single atomic operation on the server.
func (g *RedisGate) TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	won, err := g.client.SetNX(ctx, claimKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return won, nil
}

// Close closes the underlying Redis client.
func (g *RedisGate) Close() error {
	return g.client.Close()
}
