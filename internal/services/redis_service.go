package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"realtime-chat/internal/database"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const onlineUsersKey = "online_users"

type RedisService struct {
	client *database.RedisClient
	now    func() time.Time
}

func NewRedisService(client *database.RedisClient) *RedisService {
	return &RedisService{
		client: client,
		now:    time.Now,
	}
}

// =============================================================================
// User Status Management
// =============================================================================

func (r *RedisService) SetUserOnline(ctx context.Context, userID uint) error {
	id := strconv.FormatUint(uint64(userID), 10)
	now := time.Now().Unix()

	pipe := r.client.GetClient().Pipeline()
	pipe.SAdd(ctx, onlineUsersKey, id)
	pipe.HSet(ctx, statusKey(id), map[string]interface{}{
		"status":    "online",
		"last_seen": now,
	})
	pipe.Expire(ctx, statusKey(id), 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set user %d online: %w", userID, err)
	}
	slog.Debug("User set to online", "userID", userID)
	return nil
}

func (r *RedisService) SetUserOffline(ctx context.Context, userID uint) error {
	id := strconv.FormatUint(uint64(userID), 10)
	now := time.Now().Unix()

	pipe := r.client.GetClient().Pipeline()
	pipe.SRem(ctx, onlineUsersKey, id)
	pipe.HSet(ctx, statusKey(id), map[string]interface{}{
		"status":    "offline",
		"last_seen": now,
	})
	pipe.Expire(ctx, statusKey(id), 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set user %d offline: %w", userID, err)
	}
	slog.Debug("User set to offline", "userID", userID)
	return nil
}

func (r *RedisService) IsUserOnline(ctx context.Context, userID uint) (bool, error) {
	return r.client.GetClient().SIsMember(ctx, onlineUsersKey, strconv.FormatUint(uint64(userID), 10)).Result()
}

func statusKey(id string) string {
	return fmt.Sprintf("user:%s:status", id)
}

// =============================================================================
// Rate Limiting
// =============================================================================

// CheckRateLimit is a sliding window over a sorted set. It reports whether the
// request identified by key is still within limit for the window. Every
// request gets its own member so requests sharing a timestamp all count.
func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := r.now()
	windowStart := now.Add(-window).UnixNano()

	pipe := r.client.GetClient().Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return card.Val() < int64(limit), nil
}
