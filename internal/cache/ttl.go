// Package cache provides a keyed store whose entries expire after a fixed TTL.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL bounds how long a market payload is served without refetching.
const DefaultTTL = 60 * time.Second

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// TTLCache is a keyed store with expiry.
//
// Stale entries are not evicted; Get treats them as absent and a later Put overwrites them.
// Key growth is bounded only by the number of distinct keys used in a process lifetime.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   Clock
	entries map[K]entry[V]
}

// New creates a cache with the given TTL and clock. A nil clock uses the wall clock.
func New[K comparable, V any](ttl time.Duration, clock Clock) *TTLCache[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &TTLCache[K, V]{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the value for key only if now - fetchedAt < TTL.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.clock.Now().Sub(e.fetchedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, overwriting any previous entry, stamped with the current time.
func (c *TTLCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, fetchedAt: c.clock.Now()}
}

// Len returns the number of stored entries, stale ones included.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TTL returns the configured time-to-live.
func (c *TTLCache[K, V]) TTL() time.Duration {
	return c.ttl
}
