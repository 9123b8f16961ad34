package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLGetSet(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewWithClock[string, int](time.Minute, func() time.Time { return now })

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 42)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestTTLExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewWithClock[string, string](time.Minute, func() time.Time { return now })

	c.Set("k", "v")
	now = now.Add(61 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLSweep(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewWithClock[int, string](time.Minute, func() time.Time { return now })

	c.Set(1, "a")
	c.Set(2, "b")
	now = now.Add(30 * time.Second)
	c.Set(3, "c")
	now = now.Add(45 * time.Second)

	dropped := c.Sweep()
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get(3)
	assert.True(t, ok)
}
