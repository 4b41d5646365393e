package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is one cached read of a snapshot key. found is false for keys the
// backend has never stored, so absence is cached too.
type entry struct {
	value string
	found bool
}

type slot struct {
	key     string
	snap    entry
	expires time.Time
}

// snapshots keeps the most recently read snapshots. Each one is served for
// ttl after it was stored; the least recently used is evicted first once
// capacity is reached.
type snapshots struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	recent *list.List // front is the most recently used *slot
	byKey  map[string]*list.Element
}

var _ Cleaner = (*snapshots)(nil)

func newSnapshots(capacity int, ttl time.Duration) *snapshots {
	return &snapshots{
		capacity: max(capacity, 1),
		ttl:      ttl,
		now:      time.Now,
		recent:   list.New(),
		byKey:    map[string]*list.Element{},
	}
}

func (c *snapshots) get(key string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byKey[key]
	if !ok {
		return entry{}, false
	}
	s := el.Value.(*slot)
	if c.now().After(s.expires) {
		c.unlink(el)
		return entry{}, false
	}
	c.recent.MoveToFront(el)
	return s.snap, true
}

func (c *snapshots) put(key string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.byKey[key]; ok {
		s := el.Value.(*slot)
		s.snap, s.expires = e, expires
		c.recent.MoveToFront(el)
		return
	}

	c.byKey[key] = c.recent.PushFront(&slot{key: key, snap: e, expires: expires})
	for c.recent.Len() > c.capacity {
		c.unlink(c.recent.Back())
	}
}

func (c *snapshots) drop(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byKey[key]; ok {
		c.unlink(el)
	}
}

// CleanExpired removes every expired snapshot and reports how many it dropped.
func (c *snapshots) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now, dropped := c.now(), 0
	for el := c.recent.Front(); el != nil; {
		next := el.Next()
		if now.After(el.Value.(*slot).expires) {
			c.unlink(el)
			dropped++
		}
		el = next
	}
	return dropped
}

func (c *snapshots) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recent.Len()
}

// unlink must be called with mu held.
func (c *snapshots) unlink(el *list.Element) {
	delete(c.byKey, el.Value.(*slot).key)
	c.recent.Remove(el)
}
