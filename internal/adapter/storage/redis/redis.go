// Package redis holds the Redis-backed stores: idempotency replay, the
// status-poll guard and the rate-limit counters.
package redis

import (
	"context"
	"fmt"

	"vcard-gateway/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewClient dials Redis with the configured pool and timeouts, and fails
// fast when the server does not answer.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	opts := &goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", opts.Addr, err)
	}

	log.Info().
		Str("addr", opts.Addr).
		Int("db", opts.DB).
		Int("pool_size", opts.PoolSize).
		Msg("Redis client ready")

	return client, nil
}

// Checker reports Redis health for GET /health.
type Checker struct {
	client goredis.UniversalClient
}

func NewChecker(client goredis.UniversalClient) *Checker {
	return &Checker{client: client}
}

func (c *Checker) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Checker) Name() string { return "redis" }
