package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"realtime-chat/internal/database"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRateLimiter(t *testing.T) {
	l := NewLocalRateLimiter()
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.CheckRateLimit(ctx, "k", 3, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.CheckRateLimit(ctx, "k", 3, time.Minute)
	assert.False(t, ok)

	ok, _ = l.CheckRateLimit(ctx, "other", 3, time.Minute)
	assert.True(t, ok)

	now = now.Add(20 * time.Second)
	ok, _ = l.CheckRateLimit(ctx, "k", 3, time.Minute)
	assert.True(t, ok)
}

func TestRedisRateLimitCountsSameInstant(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()
	pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if testing.Short() || client.Ping(pingCtx).Err() != nil {
		t.Skip("Redis is not available, skipping test")
	}

	svc := NewRedisService(database.NewRedisClient(client))
	frozen := time.Now()
	svc.now = func() time.Time { return frozen }

	ctx := context.Background()
	key := fmt.Sprintf("test:ratelimit:%d", frozen.UnixNano())
	defer client.Del(ctx, key)

	for i := 0; i < 3; i++ {
		ok, err := svc.CheckRateLimit(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := svc.CheckRateLimit(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
