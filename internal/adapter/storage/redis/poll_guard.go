package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PollGuard implements ports.PollGuard with SET NX: the first caller in a
// TTL window gets the slot, later callers are told to use stored state.
type PollGuard struct {
	client goredis.UniversalClient
	prefix string
}

// NewPollGuard creates a Redis-backed poll throttle.
func NewPollGuard(client goredis.UniversalClient) *PollGuard {
	return &PollGuard{
		client: client,
		prefix: "pollguard:",
	}
}

// Acquire claims the poll slot for key. It returns false while a previous
// claim is still live.
// A non-positive ttl disables throttling.
func (g *PollGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	result, err := g.client.SetArgs(ctx, g.prefix+key, time.Now().UnixMilli(), goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis poll guard: %w", err)
	}
	return result == "OK", nil
}
