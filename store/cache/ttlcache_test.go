package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New[string, int](10, time.Hour)
	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestExpiry(t *testing.T) {
	c := New[string, int](10, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok, "expected expired entry to be absent")
}

func TestLRUEviction(t *testing.T) {
	c := New[int, int](2, time.Hour)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Get(1) // touch 1, making 2 the LRU victim
	c.Set(3, 3)

	_, ok := c.Get(2)
	assert.False(t, ok, "expected key 2 to be evicted as least recently used")
	_, ok = c.Get(1)
	assert.True(t, ok, "expected key 1 to survive eviction")
	_, ok = c.Get(3)
	assert.True(t, ok, "expected newly inserted key 3 to be present")
}

func TestCleanupExpiredRemovesOnlyExpired(t *testing.T) {
	c := New[string, int](10, 0)
	c.SetWithTTL("stale", 1, time.Millisecond)
	c.SetWithTTL("fresh", 2, time.Hour)
	time.Sleep(5 * time.Millisecond)

	removed := c.CleanupExpired()
	require.Equal(t, 1, removed)
	_, ok := c.Get("fresh")
	assert.True(t, ok, "fresh entry should survive cleanup")
}

func TestDelete(t *testing.T) {
	c := New[string, int](10, time.Hour)
	c.Set("a", 1)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok, "expected key to be gone after Delete")
}
