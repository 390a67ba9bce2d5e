package catalog

import (
	"container/list"
	"sync"
	"time"
)

type cacheEntry struct {
	key       string
	value     any
	expiresAt time.Time
}

// ttlCache is a mutex-guarded TTL cache with LRU eviction beyond a fixed
// entry bound, capping memory on long-running processes. The clock is
// injectable so expiry is testable without sleeping.
type ttlCache struct {
	mu    sync.Mutex
	max   int
	items map[string]*list.Element
	order *list.List // front = most recently used
	now   func() time.Time
}

func newTTLCache(max int) *ttlCache {
	if max < 1 {
		max = 1
	}
	return &ttlCache{
		max:   max,
		items: make(map[string]*list.Element),
		order: list.New(),
		now:   time.Now,
	}
}

func (c *ttlCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(cacheEntry)
	if c.now().After(ent.expiresAt) {
		delete(c.items, key)
		c.order.Remove(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return ent.value, true
}

func (c *ttlCache) set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent := cacheEntry{key: key, value: value, expiresAt: c.now().Add(ttl)}
	if el, ok := c.items[key]; ok {
		el.Value = ent
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(ent)
	if c.order.Len() > c.max {
		tail := c.order.Back()
		delete(c.items, tail.Value.(cacheEntry).key)
		c.order.Remove(tail)
	}
}

func (c *ttlCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

func (c *ttlCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
