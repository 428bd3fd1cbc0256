// Package blobcache implements a bounded, in-memory LRU cache of blob
// bytes in front of a persistent blobstore.Store. BlobCache holds only
// short-lived references: it is authoritative for nothing, and every
// entry can always be rematerialized via its loader.
package blobcache

import (
	"container/list"
	"errors"
	"sync"

	"playercore/internal/callgroup"
	"playercore/internal/fileid"
)

// ErrEvictedBeforeReturn is returned in the pathological case where a
// single loaded item is larger than the cache's entire byte budget, so
// it is evicted by its own insertion before GetOrLoad can hand it back.
// Callers should treat this the same as a cache miss and re-fetch.
var ErrEvictedBeforeReturn = errors.New("blobcache: item evicted before it could be returned")

type node struct {
	key   fileid.StoreKey
	bytes []byte
}

// Cache is an LRU cache bounded by total byte budget. The zero value is
// not usable; construct with New. Safe for concurrent use: a single mutex
// guards the LRU bookkeeping, while the cached byte slices themselves are
// reference-shared outside the lock (callers must treat returned slices
// as immutable).
type Cache struct {
	mu     sync.Mutex
	budget int64
	used   int64
	ll     *list.List
	items  map[fileid.StoreKey]*list.Element

	// group coalesces concurrent misses for the same key so a loader
	// backed by a slow disk or network read runs at most once per key
	// at a time, regardless of how many goroutines ask for it.
	group callgroup.Group[fileid.StoreKey]
}

// New creates a Cache bounded by budgetBytes.
func New(budgetBytes int64) *Cache {
	return &Cache{
		budget: budgetBytes,
		ll:     list.New(),
		items:  make(map[fileid.StoreKey]*list.Element),
	}
}

// SetBudget changes the byte budget, evicting immediately if the cache is
// now over budget.
func (c *Cache) SetBudget(budgetBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.budget = budgetBytes
	c.evictLocked()
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// UsedBytes reports the total bytes currently cached.
func (c *Cache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// peek returns the cached bytes for key, touching it as most-recently-used.
func (c *Cache) peek(key fileid.StoreKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*node).bytes, true
}

// insert adds or replaces key's bytes and evicts least-recently-used
// entries until the cache is within budget.
func (c *Cache) insert(key fileid.StoreKey, bytes []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		n := el.Value.(*node)
		c.used += int64(len(bytes)) - int64(len(n.bytes))
		n.bytes = bytes
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&node{key: key, bytes: bytes})
		c.items[key] = el
		c.used += int64(len(bytes))
	}
	c.evictLocked()
}

// evictLocked pops from the back of the LRU list until used <= budget.
// Caller must hold c.mu.
func (c *Cache) evictLocked() {
	for c.used > c.budget {
		back := c.ll.Back()
		if back == nil {
			return
		}
		n := back.Value.(*node)
		c.ll.Remove(back)
		delete(c.items, n.key)
		c.used -= int64(len(n.bytes))
	}
}

// Invalidate removes key from the cache, if present.
func (c *Cache) Invalidate(key fileid.StoreKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return
	}
	n := el.Value.(*node)
	c.ll.Remove(el)
	delete(c.items, n.key)
	c.used -= int64(len(n.bytes))
}

// InvalidatePrefix removes every cached key sharing the given prefix.
func (c *Cache) InvalidatePrefix(prefix fileid.StoreKey) {
	c.mu.Lock()
	var toRemove []fileid.StoreKey
	for k := range c.items {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			toRemove = append(toRemove, k)
		}
	}
	c.mu.Unlock()
	for _, k := range toRemove {
		c.Invalidate(k)
	}
}

// GetOrLoad returns the cached bytes for key if present; otherwise it
// calls loader (typically a BlobStore read), caches the result, and
// evicts least-recently-used entries until back within budget. Concurrent
// misses for the same key are coalesced: loader runs once and every
// waiter receives the same result.
func (c *Cache) GetOrLoad(key fileid.StoreKey, loader func() ([]byte, error)) ([]byte, error) {
	if v, ok := c.peek(key); ok {
		return v, nil
	}

	errCh := c.group.DoChan(key, func() error {
		data, err := loader()
		if err != nil {
			return err
		}
		c.insert(key, data)
		return nil
	})

	if err := <-errCh; err != nil {
		return nil, err
	}
	if v, ok := c.peek(key); ok {
		return v, nil
	}
	return nil, ErrEvictedBeforeReturn
}
