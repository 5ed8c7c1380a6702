package editor

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"editbot/internal/transport"
)

// DefaultCacheSize is used when a Cache is created with a non-positive capacity.
const DefaultCacheSize = 500

// RequestID identifies the invoking message of a command. Telegram message
// ids are only unique within a chat.
type RequestID struct {
	ChatID    int64
	MessageID int
}

// Artifact is the response message last sent for a request.
type Artifact struct {
	Ref       transport.MessageRef
	Content   transport.Content
	CreatedAt time.Time
	EditedAt  time.Time
}

type cacheEntry struct {
	id RequestID
	a  Artifact
}

// Cache maps request ids to their response artifacts in insertion order.
//
// When an insertion brings the size to capacity the cache keeps only the
// capacity-1 most recently inserted entries, so Len never exceeds
// capacity-1 between calls.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[RequestID]*list.Element

	onEvict func(n int)
	evicted atomic.Uint64
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[RequestID]*list.Element),
	}
}

// OnEvict registers a callback invoked (outside the lock) with the number of
// entries trimmed by a Put.
func (c *Cache) OnEvict(fn func(n int)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

func (c *Cache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Resize changes the capacity. Existing entries are trimmed on the next Put.
func (c *Cache) Resize(capacity int) {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	c.mu.Lock()
	c.capacity = capacity
	c.mu.Unlock()
}

// Evicted is the total number of entries trimmed by the size bound.
func (c *Cache) Evicted() uint64 { return c.evicted.Load() }

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) Get(id RequestID) (Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[id]
	if !ok {
		return Artifact{}, false
	}
	return el.Value.(*cacheEntry).a, true
}

// Put records a for id and returns the number of evicted entries. An existing
// id keeps its insertion position.
func (c *Cache) Put(id RequestID, a Artifact) int {
	c.mu.Lock()
	if el, ok := c.items[id]; ok {
		el.Value.(*cacheEntry).a = a
	} else {
		c.items[id] = c.order.PushBack(&cacheEntry{id: id, a: a})
	}

	evicted := 0
	if c.order.Len() >= c.capacity {
		for c.order.Len() > c.capacity-1 {
			front := c.order.Front()
			c.order.Remove(front)
			delete(c.items, front.Value.(*cacheEntry).id)
			evicted++
		}
	}
	fn := c.onEvict
	c.mu.Unlock()

	if evicted > 0 {
		c.evicted.Add(uint64(evicted))
		if fn != nil {
			fn(evicted)
		}
	}
	return evicted
}

// Remove drops id. Missing ids are ignored.
func (c *Cache) Remove(id RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		c.order.Remove(el)
		delete(c.items, id)
	}
}

// RemoveRef drops every entry whose artifact is ref and reports how many
// were removed.
func (c *Cache) RemoveRef(ref transport.MessageRef) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*cacheEntry)
		if e.a.Ref.ChatID == ref.ChatID && e.a.Ref.MessageID == ref.MessageID {
			c.order.Remove(el)
			delete(c.items, e.id)
			n++
		}
		el = next
	}
	return n
}

// Keys returns the cached request ids, oldest first.
func (c *Cache) Keys() []RequestID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RequestID, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*cacheEntry).id)
	}
	return out
}
