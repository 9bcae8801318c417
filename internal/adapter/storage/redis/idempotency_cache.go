package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vcard-gateway/internal/core/domain"

	jsoniter "github.com/json-iterator/go"
	goredis "github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IdempotencyCache implements ports.IdempotencyCache using Redis.
type IdempotencyCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client goredis.UniversalClient) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "idempotency:",
	}
}

// Get returns the initiate result cached under key, or nil, nil if absent.
func (c *IdempotencyCache) Get(ctx context.Context, key string) (*domain.InitiatedPayment, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}

	var result domain.InitiatedPayment
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, fmt.Errorf("decode cached initiate result: %w", err)
	}
	return &result, nil
}

// Set caches an initiate result with TTL.
func (c *IdempotencyCache) Set(ctx context.Context, key string, result *domain.InitiatedPayment, ttl time.Duration) error {
	val, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode initiate result: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}
