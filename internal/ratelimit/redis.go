package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

const usageKeyPrefix = "comms:usage:"

// RedisLimiter keeps each channel's send timestamps in a sorted set so
// multiple instances sharing one Redis agree on the sliding windows.
type RedisLimiter struct {
	Client   *redis.Client
	FailOpen bool

	now func() time.Time
}

// NewRedisLimiter builds a limiter over an already-connected client.
func NewRedisLimiter(client *redis.Client, failOpen bool) *RedisLimiter {
	return &RedisLimiter{Client: client, FailOpen: failOpen, now: time.Now}
}

func usageKey(channelID string) string { return usageKeyPrefix + channelID }

// Allow trims entries older than 24h, then counts the hour and day
// windows in one round trip.
func (l *RedisLimiter) Allow(ctx context.Context, ch *domain.Channel) (bool, error) {
	if ch.RateLimit.Unlimited() {
		return true, nil
	}
	now := l.now().UTC()
	key := usageKey(ch.ID)
	dayAgo := now.Add(-24 * time.Hour).UnixNano()
	hourAgo := now.Add(-time.Hour).UnixNano()

	pipe := l.Client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(dayAgo, 10))
	hourCount := pipe.ZCount(ctx, key, strconv.FormatInt(hourAgo, 10), "+inf")
	dayCount := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return l.FailOpen, err
	}

	if ch.RateLimit.MaxPerHour > 0 && hourCount.Val() >= int64(ch.RateLimit.MaxPerHour) {
		return false, nil
	}
	if ch.RateLimit.MaxPerDay > 0 && dayCount.Val() >= int64(ch.RateLimit.MaxPerDay) {
		return false, nil
	}
	return true, nil
}

// Record adds one timestamped member and refreshes the key TTL so idle
// channels do not leak sets.
func (l *RedisLimiter) Record(ctx context.Context, ch *domain.Channel, _ bool) error {
	now := l.now().UTC()
	key := usageKey(ch.ID)

	pipe := l.Client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, key, 25*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}
