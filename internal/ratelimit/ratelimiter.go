package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ai_orchestrator/internal/models"
)

// Window is the sliding window every limit is expressed over.
const Window = time.Minute

// Limiter enforces per-key request limits. A limit of zero or less means
// unlimited and reports remaining as -1.
type Limiter interface {
	AllowWithDetails(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt time.Time, err error)
}

// TierLimits maps a tier to its requests per Window.
type TierLimits map[models.Tier]int

// DefaultTierLimits returns the built-in limits. Enterprise is unlimited.
func DefaultTierLimits() TierLimits {
	return TierLimits{
		models.TierTrial:        10,
		models.TierStandard:     60,
		models.TierProfessional: 300,
		models.TierEnterprise:   0,
	}
}

// For returns the limit of tier; unknown tiers get the trial limit.
func (l TierLimits) For(tier models.Tier) int {
	if limit, ok := l[tier]; ok {
		return limit
	}
	return l[models.TierTrial]
}

// NoopLimiter allows all requests.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) Allow(ctx context.Context, key string) bool {
	return true
}

func (l *NoopLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	return true, -1, time.Time{}, nil
}

// slidingWindow trims the window, admits the request when there is room
// and returns {allowed, count, reset_ms}. Rejected requests are not counted.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, window)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
	reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// RateLimiter implements a sliding-window limiter on Redis sorted sets,
// shared by every orchestrator instance using the same Redis.
type RateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

func (rl *RateLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	if limit <= 0 {
		return true, -1, time.Time{}, nil
	}

	now := rl.now().UnixMilli()
	res, err := slidingWindow.Run(ctx, rl.client, []string{redisKey(key)},
		now, Window.Milliseconds(), limit, fmt.Sprintf("%d-%s", now, uuid.NewString())).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check returned %d values", len(res))
	}

	remaining := limit - int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	return res[0] == 1, remaining, time.UnixMilli(res[2]), nil
}

// GetCurrentUsage returns the number of admitted requests in the window.
func (rl *RateLimiter) GetCurrentUsage(ctx context.Context, key string) (int64, error) {
	k := redisKey(key)
	windowStart := rl.now().Add(-Window).UnixMilli()

	if err := rl.client.ZRemRangeByScore(ctx, k, "-inf", fmt.Sprintf("%d", windowStart)).Err(); err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}
	count, err := rl.client.ZCard(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get current usage: %w", err)
	}
	return count, nil
}

// Reset clears the window of key.
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, redisKey(key)).Err()
}

func redisKey(key string) string {
	return "ratelimit:" + key
}
