package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// spendTTL keeps two months of counters.
const spendTTL = 60 * 24 * time.Hour

// SpendTracker accumulates spend per account (organization, or caller
// when the request had no organization).
type SpendTracker interface {
	AddSpend(ctx context.Context, account string, costUSD float64, at time.Time) error
	MonthlySpend(ctx context.Context, account string) (float64, error)
}

// NoopSpendTracker discards spend. Used when Redis is not configured.
type NoopSpendTracker struct{}

func (NoopSpendTracker) AddSpend(ctx context.Context, account string, costUSD float64, at time.Time) error {
	return nil
}

func (NoopSpendTracker) MonthlySpend(ctx context.Context, account string) (float64, error) {
	return 0, nil
}

// addSpendScript increments a float counter and refreshes its TTL atomically.
var addSpendScript = redis.NewScript(`
	local key = KEYS[1]
	local cost = tonumber(ARGV[1])
	local ttl = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key)) or 0
	local new_total = current + cost

	redis.call('SET', key, new_total, 'EX', ttl)
	return tostring(new_total)
`)

// RedisSpendTracker keeps monthly spend counters in Redis.
type RedisSpendTracker struct {
	redis *redis.Client
	now   func() time.Time
}

func NewRedisSpendTracker(client *redis.Client) *RedisSpendTracker {
	return &RedisSpendTracker{redis: client, now: time.Now}
}

// AddSpend adds cost to the counter of the month containing at.
func (s *RedisSpendTracker) AddSpend(ctx context.Context, account string, costUSD float64, at time.Time) error {
	at = at.UTC()
	key := monthlyKey(account, at.Year(), int(at.Month()))

	if err := addSpendScript.Run(ctx, s.redis, []string{key}, costUSD, int(spendTTL.Seconds())).Err(); err != nil {
		return fmt.Errorf("failed to add spend: %w", err)
	}
	return nil
}

// MonthlySpend returns the current month's spend for an account
func (s *RedisSpendTracker) MonthlySpend(ctx context.Context, account string) (float64, error) {
	now := s.now().UTC()
	return s.Spending(ctx, account, now.Year(), int(now.Month()))
}

// Spending returns spend for a specific month
func (s *RedisSpendTracker) Spending(ctx context.Context, account string, year, month int) (float64, error) {
	val, err := s.redis.Get(ctx, monthlyKey(account, year, month)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get spending: %w", err)
	}
	return val, nil
}

// ResetMonthlySpend clears the current month's counter (admin use)
func (s *RedisSpendTracker) ResetMonthlySpend(ctx context.Context, account string) error {
	now := s.now().UTC()
	return s.redis.Del(ctx, monthlyKey(account, now.Year(), int(now.Month()))).Err()
}

func monthlyKey(account string, year, month int) string {
	return fmt.Sprintf("spend:%s:%d:%02d", account, year, month)
}
