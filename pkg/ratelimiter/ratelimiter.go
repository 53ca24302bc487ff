package ratelimiter

import (
	"fmt"
	"sync"
	"time"
)

// Counter tracks request count and window reset time for a key
type Counter struct {
	Count   int
	ResetAt time.Time
}

// Store holds fixed-window request counters keyed by (actor, operation
// class). Counters are process-local and live for the process lifetime;
// nothing is persisted across restarts.
type Store struct {
	counters map[string]*Counter
	mutex    sync.Mutex
}

// NewStore creates an empty counter store
func NewStore() *Store {
	return &Store{
		counters: make(map[string]*Counter),
	}
}

// LimitExceededError is returned when a key is over its window limit.
// It carries the operation label so callers can surface which class of
// operation was throttled.
type LimitExceededError struct {
	Label   string
	Limit   int
	ResetAt time.Time
}

// Error implements the error interface
func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s operations (limit %d, resets at %s)",
		e.Label, e.Limit, e.ResetAt.UTC().Format(time.RFC3339))
}

// Check performs an atomic check-and-increment for key. On first use of
// a key, or when the stored window has elapsed, it starts a fresh window
// with count 1 and allows. Below the limit it increments and allows. At
// or above the limit it denies without touching the counter, so repeated
// denials never extend the window.
func (s *Store) Check(key, label string, limit int, window time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()

	counter, exists := s.counters[key]
	if !exists || counter.ResetAt.Before(now) {
		s.counters[key] = &Counter{
			Count:   1,
			ResetAt: now.Add(window),
		}
		return nil
	}

	if counter.Count >= limit {
		return &LimitExceededError{
			Label:   label,
			Limit:   limit,
			ResetAt: counter.ResetAt,
		}
	}

	counter.Count++
	return nil
}

// Snapshot returns the current count and reset time for a key. An absent
// or elapsed window reads as count 0 with a reset one window from now.
func (s *Store) Snapshot(key string, window time.Duration) (count int, resetAt time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	counter, exists := s.counters[key]
	if !exists || counter.ResetAt.Before(time.Now()) {
		return 0, time.Now().Add(window)
	}
	return counter.Count, counter.ResetAt
}

// Cleanup removes elapsed counters to prevent unbounded growth
func (s *Store) Cleanup() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	for key, counter := range s.counters {
		if counter.ResetAt.Before(now) {
			delete(s.counters, key)
		}
	}
}
