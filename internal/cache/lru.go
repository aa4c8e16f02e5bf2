package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache holds at most capacity entries, each valid for ttl after it was
// stored. The least recently read entry is evicted first.
type LRUCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	index    map[K]*list.Element
	order    *list.List // front is most recent
	hits     uint64
	misses   uint64
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// NewLRUCache returns an empty cache. A capacity below one is treated as one.
func NewLRUCache[K comparable, V any](capacity int, ttl time.Duration) *LRUCache[K, V] {
	return &LRUCache[K, V]{
		capacity: max(capacity, 1),
		ttl:      ttl,
		now:      time.Now,
		index:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

// SetClock replaces the time source used for expiry.
func (c *LRUCache[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if !c.now().Before(e.expires) {
		c.unlink(el)
		c.misses++
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[K, V]{key: key, value: value, expires: c.now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(e)
	for c.order.Len() > c.capacity {
		c.unlink(c.order.Back())
	}
}

// GetOrCompute returns the cached value for key, calling compute and
// storing its result on a miss.
func (c *LRUCache[K, V]) GetOrCompute(key K, compute func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}
	v := compute()
	c.Set(key, v)
	return v
}

func (c *LRUCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.unlink(el)
	}
}

// DeleteFunc drops every entry whose key matches and reports how many went.
func (c *LRUCache[K, V]) DeleteFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, el := range c.index {
		if match(key) {
			c.unlink(el)
			n++
		}
	}
	return n
}

// CleanExpired drops expired entries and reports how many went.
func (c *LRUCache[K, V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry[K, V]).expires) {
			c.unlink(el)
			n++
		}
		el = prev
	}
	return n
}

func (c *LRUCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *LRUCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.index)}
}

func (c *LRUCache[K, V]) unlink(el *list.Element) {
	delete(c.index, el.Value.(*entry[K, V]).key)
	c.order.Remove(el)
}
