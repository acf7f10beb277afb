package fetch

import (
	"sync"
	"time"
)

// responseCache is a thread-safe LRU of response bodies keyed by URL. Entries
// older than the TTL are misses but stay in place until a fresh body replaces
// them or they fall off the tail.
type responseCache struct {
	ttl        time.Duration
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key      string
	body     []byte
	storedAt time.Time
	prev     *entry
	next     *entry
}

func newResponseCache(ttl time.Duration, maxEntries int) *responseCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &responseCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

// get returns the body stored for key if it is younger than the TTL at now.
func (c *responseCache) get(key string, now time.Time) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || now.Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	c.moveToFront(e)
	return e.body, true
}

func (c *responseCache) put(key string, body []byte, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.body = body
		e.storedAt = now
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, body: body, storedAt: now}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *responseCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *responseCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *responseCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *responseCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
