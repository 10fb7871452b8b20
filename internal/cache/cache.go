// Package cache provides a bounded in-memory LRU cache for full content
// bodies, fronting the expensive store fetch when the same item is viewed
// or edited repeatedly. One instance per content type; always subordinate
// to the store, so write paths update it only after the store commit.
package cache

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the per-instance entry cap.
const DefaultCapacity = 50

// Cache is a fixed-capacity LRU cache keyed by content ID. All operations
// are serialized through one mutex and never perform I/O. Eviction removes
// the least-recently-accessed entry, in O(1) via a doubly-linked recency
// list plus a key map.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently accessed
	entries  map[string]*list.Element
}

type cacheEntry[V any] struct {
	key   string
	value V
}

// New creates a cache holding at most capacity entries. A capacity of zero
// (or below) degenerates to "always miss".
func New[V any](capacity int) *Cache[V] {
	return &Cache[V]{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get returns the cached value for id and refreshes its recency.
func (c *Cache[V]) Get(id string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[id]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry[V]).value, true
}

// Set inserts or replaces the value for id. Replacing refreshes recency
// without changing occupancy; inserting at capacity first evicts the
// least-recently-accessed entry.
func (c *Cache[V]) Set(id string, value V) {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[id]; ok {
		elem.Value.(*cacheEntry[V]).value = value
		c.order.MoveToFront(elem)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[id] = c.order.PushFront(&cacheEntry[V]{key: id, value: value})
}

// evictOldest removes the back of the recency list. No-op when empty.
// Caller holds the mutex.
func (c *Cache[V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.order.Remove(oldest)
	delete(c.entries, oldest.Value.(*cacheEntry[V]).key)
}

// Remove invalidates one entry, used after edits and deletes to keep the
// cache consistent with the store.
func (c *Cache[V]) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[id]; ok {
		c.order.Remove(elem)
		delete(c.entries, id)
	}
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// Len returns the current occupancy.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
