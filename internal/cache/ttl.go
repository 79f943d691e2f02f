package cache

import (
	"sync"
	"time"
)

// TTLCache is a map whose entries expire after a per-entry time to live.
// Expired entries are invisible to Get and are removed by CleanExpired.
type TTLCache[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]ttlItem[T]
	now   func() time.Time
}

type ttlItem[T any] struct {
	data      T
	expiresAt time.Time
}

var (
	_ Cache[int] = (*TTLCache[int])(nil)
	_ Cleaner    = (*TTLCache[int])(nil)
)

// NewTTLCache creates a cache whose Set uses ttl as the default lifetime.
func NewTTLCache[T any](ttl time.Duration) *TTLCache[T] {
	return &TTLCache[T]{
		ttl:   ttl,
		items: make(map[string]ttlItem[T]),
		now:   time.Now,
	}
}

// Get retrieves a live value from the cache
func (c *TTLCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	item, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.now().After(item.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	return item.data, true
}

// Set stores a value with the default TTL
func (c *TTLCache[T]) Set(key string, data T) {
	c.SetWithTTL(key, data, c.ttl)
}

// SetWithTTL stores a value that expires after ttl
func (c *TTLCache[T]) SetWithTTL(key string, data T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = ttlItem[T]{data: data, expiresAt: c.now().Add(ttl)}
}

// Update applies fn to the live value under key while holding the lock.
// It reports false if the key is missing or expired. The entry keeps its
// expiry.
func (c *TTLCache[T]) Update(key string, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok || c.now().After(item.expiresAt) {
		return false
	}
	item.data = fn(item.data)
	c.items[key] = item
	return true
}

// Delete removes a key from the cache
func (c *TTLCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Size returns the number of stored entries, expired or not
func (c *TTLCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *TTLCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}
