package redis

import (
	"context"
	"testing"
	"time"

	"vcard-gateway/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := domain.BuildIdempotencyKey(uuid.New(), "client-key-1")
	value := &domain.InitiatedPayment{
		TransactionID:    uuid.New(),
		Status:           domain.TransactionStatusPending,
		PaymentReference: "99999001",
		Message:          "Confirm the payment on your phone",
	}

	// Get before set => nil
	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, cache.Set(ctx, key, value, 24*time.Hour))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
	assert.True(t, s.Exists("idempotency:"+key))
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", &domain.InitiatedPayment{PaymentReference: "r"}, time.Minute))

	s.FastForward(2 * time.Minute)

	result, err := cache.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestIdempotencyCache_CorruptValue(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)

	require.NoError(t, s.Set("idempotency:bad", "not-json"))

	result, err := cache.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.Nil(t, result)
}
