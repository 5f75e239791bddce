// Package cache provides a generic in-process TTL cache with a periodic eviction pass.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Clock returns the current time. Tests swap it to drive TTL expiry.
type Clock func() time.Time

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

// Cache is safe for concurrent use. Reads, writes and the eviction scan are
// serialized by one RWMutex; the scan holds the write lock only while it walks
// the map.
type Cache[K comparable, V any] struct {
	mu         sync.RWMutex
	items      map[K]entry[V]
	defaultTTL time.Duration
	now        Clock

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New creates a cache. defaultTTL applies to Set calls with a non-positive ttl.
func New[K comparable, V any](defaultTTL time.Duration, opts ...Option) *Cache[K, V] {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[K, V]{
		items:      make(map[K]entry[V]),
		defaultTTL: defaultTTL,
		now:        o.clock,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Get returns the value for key if it is still fresh.
func (c *Cache[K, V]) Get(_ context.Context, key K) (V, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || !fresh(e, now) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *Cache[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	e := entry[V]{value: value, storedAt: c.now(), ttl: ttl}

	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
}

// Delete removes key.
func (c *Cache[K, V]) Delete(_ context.Context, key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// EvictExpired removes every entry whose age reached its TTL and returns how
// many were removed.
func (c *Cache[K, V]) EvictExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for k, e := range c.items {
		if !fresh(e, now) {
			delete(c.items, k)
			evicted++
		}
	}
	return evicted
}

// StartEviction runs EvictExpired every interval until ctx is done or Close
// is called. Only the first call starts a loop; later calls return false.
func (c *Cache[K, V]) StartEviction(ctx context.Context, interval time.Duration, onEvict func(int)) bool {
	if !c.started.CompareAndSwap(false, true) {
		return false
	}

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				n := c.EvictExpired()
				if onEvict != nil && n > 0 {
					onEvict(n)
				}
			}
		}
	}()

	return true
}

// Close stops the eviction loop, if any, and waits for it to exit.
func (c *Cache[K, V]) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	if c.started.Load() {
		<-c.done
	}
}

func fresh[V any](e entry[V], now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}
