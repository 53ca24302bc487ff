package mutex

import (
	"sync"
	"sync/atomic"
	"time"
)

// KeyedMutex provides per-key mutex locking. The pending-transaction
// service uses it to serialize duplicate checks for the same
// (session, recipient, amount) tuple within this process; the storage
// uniqueness constraint remains the arbiter across processes.
type KeyedMutex struct {
	mutexes    map[string]*mutexEntry
	mapMutex   sync.RWMutex
	cleanupTTL time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// lastAccess is atomic because the fast path in get touches it while
// holding only the map's read lock.
type mutexEntry struct {
	mutex      *sync.Mutex
	lastAccess atomic.Int64
}

func (e *mutexEntry) touch() {
	e.lastAccess.Store(time.Now().UnixNano())
}

// New creates a new KeyedMutex with automatic cleanup of idle entries
func New(cleanupTTL time.Duration) *KeyedMutex {
	km := &KeyedMutex{
		mutexes:    make(map[string]*mutexEntry),
		cleanupTTL: cleanupTTL,
		stopCh:     make(chan struct{}),
	}

	go km.cleanup()

	return km
}

// Lock locks the mutex for the given key, creating it if needed
func (km *KeyedMutex) Lock(key string) {
	km.get(key).Lock()
}

// Unlock unlocks the mutex for the given key
func (km *KeyedMutex) Unlock(key string) {
	km.mapMutex.RLock()
	entry, exists := km.mutexes[key]
	km.mapMutex.RUnlock()

	if exists {
		entry.mutex.Unlock()
	}
}

// Size returns the number of mutexes currently stored
func (km *KeyedMutex) Size() int {
	km.mapMutex.RLock()
	defer km.mapMutex.RUnlock()
	return len(km.mutexes)
}

func (km *KeyedMutex) get(key string) *sync.Mutex {
	km.mapMutex.RLock()
	if entry, exists := km.mutexes[key]; exists {
		entry.touch()
		km.mapMutex.RUnlock()
		return entry.mutex
	}
	km.mapMutex.RUnlock()

	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()

	// Another goroutine may have created it in the meantime
	if entry, exists := km.mutexes[key]; exists {
		entry.touch()
		return entry.mutex
	}

	entry := &mutexEntry{mutex: &sync.Mutex{}}
	entry.touch()
	km.mutexes[key] = entry

	return entry.mutex
}

func (km *KeyedMutex) cleanup() {
	ticker := time.NewTicker(km.cleanupTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			km.removeIdle()
		case <-km.stopCh:
			return
		}
	}
}

func (km *KeyedMutex) removeIdle() {
	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()

	now := time.Now()
	for key, entry := range km.mutexes {
		if now.Sub(time.Unix(0, entry.lastAccess.Load())) > km.cleanupTTL {
			// Only drop entries that are not currently held
			if entry.mutex.TryLock() {
				entry.mutex.Unlock()
				delete(km.mutexes, key)
			}
		}
	}
}

// Stop stops the cleanup goroutine
func (km *KeyedMutex) Stop() {
	km.stopOnce.Do(func() {
		close(km.stopCh)
	})
}
