/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package expirecache

import (
	"sync"
	"time"
)

// Cache represents an in-memory key-value cache with time-based expiry,
// an optional size bound, and Prometheus metrics.
//
// An entry expires liveTime after it was last touched (added or read).
// Expired entries are removed lazily: every method except Clear starts by
// evicting expired entries from the head of the internal recency queue.
// There are no background goroutines and no timers.
//
// All methods are safe for concurrent use.
type Cache[K comparable, V any] struct {
	liveTime time.Duration
	limit    int

	mu    sync.Mutex
	index map[K]*entry[K, V]
	queue recencyQueue[K, V]

	loadGroup singleFlightGroup[K, V]

	metricsCollector MetricsCollector
}

// Options represents options for the cache.
type Options struct {
	// Limit is the maximum number of entries.
	// Zero or a negative value means the cache is unbounded.
	Limit int

	// MetricsCollector collects statistics about cache usage.
	// It can be nil, in this case metrics are disabled.
	MetricsCollector MetricsCollector
}

// New creates a new unbounded Cache whose entries expire liveTime after the last touch.
func New[K comparable, V any](liveTime time.Duration) *Cache[K, V] {
	return NewWithOpts[K, V](liveTime, Options{})
}

// NewWithOpts creates a new Cache whose entries expire liveTime after the last touch,
// configured with the provided options.
func NewWithOpts[K comparable, V any](liveTime time.Duration, opts Options) *Cache[K, V] {
	limit := opts.Limit
	if limit < 0 {
		limit = 0
	}
	metricsCollector := opts.MetricsCollector
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	return &Cache[K, V]{
		liveTime:         liveTime,
		limit:            limit,
		index:            make(map[K]*entry[K, V], limit),
		metricsCollector: metricsCollector,
	}
}

// Add adds a value to the cache with the provided key, replacing any existing value.
// It returns the value previously associated with the key, if any.
// If the size limit would be exceeded, the least recently touched entry is evicted.
func (c *Cache[K, V]) Add(key K, value V) (prev V, replaced bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.removeExpired(now)

	if old, ok := c.index[key]; ok {
		c.queue.unlink(old)
		prev, replaced = old.value, true
	}
	c.addNew(key, value, now)
	return prev, replaced
}

// Get returns a value from the cache by the provided key.
// A successful Get touches the entry: its expiry is reset to liveTime from now,
// and it becomes the most recently used entry. Get never creates entries.
func (c *Cache[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.removeExpired(now)

	ent, ok := c.index[key]
	if !ok {
		c.metricsCollector.IncMisses()
		return value, false
	}
	c.touch(ent, now)
	c.metricsCollector.IncHits()
	return ent.value, true
}

// GetOrAdd returns a value from the cache by the provided key.
// If the key is absent, valueProvider is called under the cache lock and
// its result is added. A hit touches the entry like Get does.
func (c *Cache[K, V]) GetOrAdd(key K, valueProvider func() V) (value V, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.removeExpired(now)

	if ent, ok := c.index[key]; ok {
		c.touch(ent, now)
		c.metricsCollector.IncHits()
		return ent.value, true
	}
	c.metricsCollector.IncMisses()
	value = valueProvider()
	c.addNew(key, value, now)
	return value, false
}

// GetOrLoad returns a value from the cache by the provided key,
// loading it with loadFn on a miss. Concurrent loads for the same key are
// coalesced: only one loadFn call is in flight per key, and every caller
// receives its result. loadFn runs outside the cache lock. On error nothing
// is cached and the error is returned as is.
func (c *Cache[K, V]) GetOrLoad(key K, loadFn func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	return c.loadGroup.Do(key, func() (V, error) {
		value, err := loadFn()
		if err != nil {
			var zero V
			return zero, err
		}
		c.Add(key, value)
		return value, nil
	})
}

// Remove removes a value from the cache by the provided key.
// It reports whether the key was present and not expired.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeExpired(time.Now())

	ent, ok := c.index[key]
	if !ok {
		return false
	}
	c.queue.unlink(ent)
	delete(c.index, key)
	c.metricsCollector.SetAmount(len(c.index))
	return true
}

// Len returns the number of live entries in the cache.
// Expired entries are removed first, so Len mutates the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeExpired(time.Now())
	return len(c.index)
}

// Clear removes all entries from the cache.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = make(map[K]*entry[K, V], c.limit)
	c.queue.clear()
	c.metricsCollector.SetAmount(0)
}

// touch resets the entry's expiry to liveTime from now and moves it to the
// queue tail, keeping the queue ordered by expiry from head to tail.
func (c *Cache[K, V]) touch(ent *entry[K, V], now time.Time) {
	c.queue.unlink(ent)
	ent.expiresAt = now.Add(c.liveTime)
	c.queue.append(ent)
}

// addNew inserts a fresh entry for a key that is not in the index and evicts
// the queue head if the size limit is exceeded. Each call grows the index by
// exactly one, so a single eviction is always enough.
func (c *Cache[K, V]) addNew(key K, value V, now time.Time) {
	ent := &entry[K, V]{key: key, value: value, expiresAt: now.Add(c.liveTime)}
	c.index[key] = ent
	c.queue.append(ent)

	if c.limit > 0 && len(c.index) > c.limit {
		if head := c.queue.popHead(); head != nil {
			delete(c.index, head.key)
			c.metricsCollector.AddEvictions(1)
		}
	}
	c.metricsCollector.SetAmount(len(c.index))
}

// removeExpired evicts expired entries from the queue head. The queue is
// ordered by expiry time, so the walk stops at the first live entry and
// never inspects the rest of the queue.
func (c *Cache[K, V]) removeExpired(now time.Time) {
	expired := 0
	for head := c.queue.peekHead(); head != nil && !head.expiresAt.After(now); head = c.queue.peekHead() {
		c.queue.popHead()
		delete(c.index, head.key)
		expired++
	}
	if expired > 0 {
		c.metricsCollector.AddExpirations(expired)
		c.metricsCollector.SetAmount(len(c.index))
	}
}
