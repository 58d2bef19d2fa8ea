package cache

import (
	"container/list"
	"sync"
	"time"
)

// TTLCache is a bounded LRU map with per-entry expiry. It backs the
// read-mostly lookups in the pipeline (address roles, pair metadata):
// concurrent reads are cheap, writes are last-write-wins on the TTL.
type TTLCache[K comparable, V any] struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	index map[K]*list.Element
	order *list.List // front = most recently used

	hits   int64
	misses int64

	nowFn func() time.Time
}

type slot[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

func NewTTL[K comparable, V any](capacity int, ttl time.Duration) *TTLCache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &TTLCache[K, V]{
		cap:   capacity,
		ttl:   ttl,
		index: make(map[K]*list.Element, capacity),
		order: list.New(),
		nowFn: time.Now,
	}
}

// Get returns the cached value if present and unexpired. Expired entries are
// dropped on access rather than by a background sweeper.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.index[key]
	if !ok {
		c.misses++
		return zero, false
	}
	s := elem.Value.(*slot[K, V])
	if c.nowFn().After(s.expiresAt) {
		c.drop(elem)
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return s.value, true
}

// Set inserts or refreshes key, evicting the least recently used entry when
// the cache is full.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		s := elem.Value.(*slot[K, V])
		s.value = value
		s.expiresAt = c.nowFn().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}
	if c.order.Len() >= c.cap {
		if oldest := c.order.Back(); oldest != nil {
			c.drop(oldest)
		}
	}
	elem := c.order.PushFront(&slot[K, V]{key: key, value: value, expiresAt: c.nowFn().Add(c.ttl)})
	c.index[key] = elem
}

// Remove deletes key if present, reporting whether it was there.
func (c *TTLCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return false
	}
	c.drop(elem)
	return true
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats reports hit/miss counters since construction.
func (c *TTLCache[K, V]) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *TTLCache[K, V]) drop(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.index, elem.Value.(*slot[K, V]).key)
}
