package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	_, _ = c.Get("a") // a is now most recent
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }

	c.Set("x", 1)
	c.Set("y", 2)

	now = now.Add(2 * time.Second)
	_, ok := c.Get("x")
	assert.False(t, ok)

	c.Set("z", 3)
	assert.Equal(t, 1, c.CleanupExpired())
	assert.Equal(t, 1, c.Len())

	c.Delete("z")
	c.Clear()
	assert.Zero(t, c.Len())
}
