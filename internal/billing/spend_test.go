package billing

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) (*miniredis.Miniredis, *RedisSpendTracker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisSpendTracker(client)
}

func TestRedisSpendTracker_AccumulatesPerMonth(t *testing.T) {
	mr, tracker := newTestTracker(t)
	ctx := context.Background()

	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return fixed }

	require.NoError(t, tracker.AddSpend(ctx, "org:acme", 0.005, fixed))
	require.NoError(t, tracker.AddSpend(ctx, "org:acme", 0.010, fixed.Add(time.Hour)))
	require.NoError(t, tracker.AddSpend(ctx, "org:acme", 1.0, fixed.AddDate(0, -1, 0)))

	spend, err := tracker.MonthlySpend(ctx, "org:acme")
	require.NoError(t, err)
	assert.InDelta(t, 0.015, spend, 1e-9)

	previous, err := tracker.Spending(ctx, "org:acme", 2026, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, previous, 1e-9)

	assert.True(t, mr.Exists("spend:org:acme:2026:03"))
	assert.Greater(t, mr.TTL("spend:org:acme:2026:03"), 59*24*time.Hour)
}

func TestRedisSpendTracker_MissingAndReset(t *testing.T) {
	_, tracker := newTestTracker(t)
	ctx := context.Background()

	spend, err := tracker.MonthlySpend(ctx, "org:none")
	require.NoError(t, err)
	assert.Zero(t, spend)

	require.NoError(t, tracker.AddSpend(ctx, "org:x", 2, time.Now()))
	require.NoError(t, tracker.ResetMonthlySpend(ctx, "org:x"))

	spend, err = tracker.MonthlySpend(ctx, "org:x")
	require.NoError(t, err)
	assert.Zero(t, spend)
}

func TestNoopSpendTracker(t *testing.T) {
	var tracker SpendTracker = NoopSpendTracker{}
	assert.NoError(t, tracker.AddSpend(context.Background(), "a", 1, time.Now()))
	spend, err := tracker.MonthlySpend(context.Background(), "a")
	assert.NoError(t, err)
	assert.Zero(t, spend)
}
