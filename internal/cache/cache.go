// Package cache provides the bounded in-memory language pair cache consulted
// before any remote translation call.
package cache

import (
	"container/list"
	"sync"
	"time"

	"lingorelay/pkg/relay"
)

const (
	defaultCapacity = 4096
	defaultTTL      = 24 * time.Hour
)

// Option mutates pair cache configuration.
type Option func(*PairCache)

// WithCapacity sets the cache entry capacity.
func WithCapacity(capacity int) Option {
	return func(cache *PairCache) {
		if capacity > 0 {
			cache.capacity = capacity
		}
	}
}

// WithTTL sets how long an entry can be returned without refresh.
func WithTTL(ttl time.Duration) Option {
	return func(cache *PairCache) {
		if ttl > 0 {
			cache.ttl = ttl
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(cache *PairCache) {
		if clock != nil {
			cache.clock = clock
		}
	}
}

// PairCache is a bounded LRU cache keyed by (text hash, source lang, target
// lang). Eviction removes the least-recently-used entry; ties on recency fall
// to the oldest creation time because insertion order is preserved within the
// recency list. Expired entries are treated as misses and evicted lazily.
type PairCache struct {
	capacity int
	ttl      time.Duration
	clock    func() time.Time

	mu      sync.Mutex
	entries map[relay.PairKey]*entry
	lru     *list.List
	index   map[relay.PairKey]*list.Element
}

type entry struct {
	text       string
	createdAt  time.Time
	lastUsedAt time.Time
	expiresAt  time.Time
}

// New creates a pair cache with bounded in-memory storage.
func New(options ...Option) *PairCache {
	cache := &PairCache{
		capacity: defaultCapacity,
		ttl:      defaultTTL,
		clock:    time.Now,
		entries:  make(map[relay.PairKey]*entry),
		lru:      list.New(),
		index:    make(map[relay.PairKey]*list.Element),
	}
	for _, option := range options {
		option(cache)
	}

	return cache
}

// Lookup returns the cached translation for key when present and fresh.
func (c *PairCache) Lookup(key relay.PairKey) (string, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, exists := c.entries[key]
	if !exists {
		return "", false
	}
	if c.isExpired(cached, now) {
		c.deleteLocked(key)
		return "", false
	}

	cached.lastUsedAt = now
	c.touchLocked(key)

	return cached.text, true
}

// Insert stores one translation, refreshing an existing entry in place.
// Stale-then-overwrite between concurrent callers is acceptable.
func (c *PairCache) Insert(key relay.PairKey, text string) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, exists := c.entries[key]; exists && !c.isExpired(cached, now) {
		cached.text = text
		cached.lastUsedAt = now
		cached.expiresAt = c.expiryFrom(now)
		c.touchLocked(key)
		return
	}

	c.deleteLocked(key)
	element := c.lru.PushFront(key)
	c.index[key] = element
	c.entries[key] = &entry{
		text:       text,
		createdAt:  now,
		lastUsedAt: now,
		expiresAt:  c.expiryFrom(now),
	}
	c.trimToCapacityLocked()
}

// Len returns the current entry count.
func (c *PairCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *PairCache) trimToCapacityLocked() {
	for len(c.entries) > c.capacity {
		back := c.lru.Back()
		if back == nil {
			break
		}
		oldestKey, ok := back.Value.(relay.PairKey)
		if !ok {
			c.lru.Remove(back)
			continue
		}
		c.deleteLocked(oldestKey)
	}
}

func (c *PairCache) touchLocked(key relay.PairKey) {
	element, exists := c.index[key]
	if !exists {
		return
	}
	c.lru.MoveToFront(element)
}

func (c *PairCache) deleteLocked(key relay.PairKey) {
	if element, exists := c.index[key]; exists {
		c.lru.Remove(element)
		delete(c.index, key)
	}
	delete(c.entries, key)
}

func (c *PairCache) isExpired(cached *entry, now time.Time) bool {
	if cached == nil {
		return true
	}
	if cached.expiresAt.IsZero() {
		return false
	}

	return !now.Before(cached.expiresAt)
}

func (c *PairCache) expiryFrom(now time.Time) time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}

	return now.Add(c.ttl)
}

func (c *PairCache) now() time.Time {
	return c.clock().UTC()
}

var _ relay.PairCache = (*PairCache)(nil)
