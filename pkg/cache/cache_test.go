package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache(t *testing.T) {
	t.Run("SetAndGet", func(t *testing.T) {
		c := New(time.Minute)
		defer c.Stop()

		c.Set("wallet-1", "balance report")

		value, found := c.Get("wallet-1")
		assert.True(t, found)
		assert.Equal(t, "balance report", value)
	})

	t.Run("MissingKey", func(t *testing.T) {
		c := New(time.Minute)
		defer c.Stop()

		_, found := c.Get("absent")
		assert.False(t, found)
	})

	t.Run("ExpiresAfterTTL", func(t *testing.T) {
		c := New(20 * time.Millisecond)
		defer c.Stop()

		c.Set("wallet-1", "stale report")
		time.Sleep(40 * time.Millisecond)

		_, found := c.Get("wallet-1")
		assert.False(t, found)
	})

	t.Run("Delete", func(t *testing.T) {
		c := New(time.Minute)
		defer c.Stop()

		c.Set("wallet-1", "report")
		c.Delete("wallet-1")

		_, found := c.Get("wallet-1")
		assert.False(t, found)
		assert.Equal(t, 0, c.Size())
	})
}
