// Package cache holds the in-process caching layer: a generic TTL
// cache with an injected clock, the sparse day-series store the range
// reconciler works against, and the derived-report snapshot cache.
package cache

import (
	"context"
	"sync"
	"time"

	"stockgraphv1/internal/clock"
)

// TTL is a process-local key/value cache with a fixed idle expiry per
// key. Set refreshes the expiry; Get treats an expired entry as absent.
// Expired entries are also removed by a periodic sweep so abandoned
// keys do not accumulate between reads.
type TTL[V any] struct {
	mu      sync.Mutex
	clk     clock.Clock
	ttl     time.Duration
	entries map[string]ttlEntry[V]
}

type ttlEntry[V any] struct {
	val       V
	expiresAt time.Time
}

// NewTTL creates a TTL cache. A non-positive ttl means entries never
// expire.
func NewTTL[V any](clk clock.Clock, ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		clk:     clk,
		ttl:     ttl,
		entries: make(map[string]ttlEntry[V]),
	}
}

// Get returns the live value for key. An expired entry behaves as if
// it was never stored.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !e.expiresAt.IsZero() && !c.clk.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.val, true
}

// Set stores the value and restarts its expiry.
func (c *TTL[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.clk.Now().Add(c.ttl)
	}
	c.entries[key] = ttlEntry[V]{val: v, expiresAt: expiresAt}
}

// Delete removes a key.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, expired or not.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes every expired entry.
func (c *TTL[V]) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	for key, e := range c.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (c *TTL[V]) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}
