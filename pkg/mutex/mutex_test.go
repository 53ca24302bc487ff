package mutex

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("SerializesSameKey", func(t *testing.T) {
		km := New(time.Minute)
		defer km.Stop()

		counter := 0
		var wg sync.WaitGroup

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				km.Lock("tuple")
				counter++
				km.Unlock("tuple")
			}()
		}
		wg.Wait()

		assert.Equal(t, 50, counter)
	})

	t.Run("ConcurrentReuseOfExistingKey", func(t *testing.T) {
		km := New(time.Minute)
		defer km.Stop()

		km.Lock("tuple")
		km.Unlock("tuple")

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				km.Lock("tuple")
				km.Unlock("tuple")
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, km.Size())
	})

	t.Run("DifferentKeysDoNotBlock", func(t *testing.T) {
		km := New(time.Minute)
		defer km.Stop()

		km.Lock("a")
		defer km.Unlock("a")

		done := make(chan struct{})
		go func() {
			km.Lock("b")
			km.Unlock("b")
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock on a different key blocked")
		}
	})

	t.Run("SizeTracksKeys", func(t *testing.T) {
		km := New(time.Minute)
		defer km.Stop()

		km.Lock("a")
		km.Unlock("a")
		km.Lock("b")
		km.Unlock("b")

		assert.Equal(t, 2, km.Size())
	})
}
