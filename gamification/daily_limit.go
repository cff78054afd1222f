package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DailyLimiter tracks how many times an action was rewarded for an account
// on the current day.
type DailyLimiter interface {
	// Allow reports whether another award is still within the daily cap and,
	// when it is, records it. A cap of zero means unlimited.
	Allow(ctx context.Context, accountID uint, actionKey string, cap int) bool
}

// RedisDailyLimiter implements DailyLimiter with a rolling counter keyed by
// account, action and UTC date. Counters expire on their own; an INCR on a
// fresh key both creates and counts in one round trip. Redis outages
// fail open so an infrastructure problem never blocks awards.
type RedisDailyLimiter struct {
	rdb    *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisDailyLimiter creates a limiter backed by the given Redis client.
func NewRedisDailyLimiter(rdb *redis.Client, logger *zap.SugaredLogger) *RedisDailyLimiter {
	return &RedisDailyLimiter{rdb: rdb, logger: logger}
}

func dailyKey(accountID uint, actionKey string, day time.Time) string {
	return fmt.Sprintf("xp:daily:%d:%s:%s", accountID, actionKey, day.UTC().Format("20060102"))
}

// Allow increments the counter and compares it with the cap.
func (l *RedisDailyLimiter) Allow(ctx context.Context, accountID uint, actionKey string, cap int) bool {
	if cap <= 0 {
		return true
	}
	key := dailyKey(accountID, actionKey, time.Now())
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warnw("daily limiter unavailable, allowing award", "action", actionKey, "err", err)
		return true
	}
	if n == 1 {
		// first award of the day; keep the key past midnight so late jobs
		// from the previous day still count against it, then let it expire
		l.rdb.Expire(ctx, key, 48*time.Hour)
	}
	return n <= int64(cap)
}

// UnlimitedLimiter never blocks. Used in tests and when Redis is disabled.
type UnlimitedLimiter struct{}

// Allow always reports true.
func (UnlimitedLimiter) Allow(context.Context, uint, string, int) bool { return true }
