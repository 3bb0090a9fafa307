// Package cache holds artwork bytes in memory, bounded by entry count and
// total size.
package cache

import (
	"container/list"
	"sync"
)

// Artwork is one cached picture.
type Artwork struct {
	Data []byte
	MIME string
}

// LRUCache keys artwork by item id. Each entry remembers the catalog
// revision it was produced for; a lookup with another revision misses.
type LRUCache struct {
	capacity int
	size     int64
	maxSize  int64 // bytes
	items    map[int64]*list.Element
	order    *list.List
	hits     uint64
	misses   uint64
	mu       sync.Mutex
}

type cacheEntry struct {
	id       int64
	revision uint64
	art      Artwork
}

type Stats struct {
	Entries int
	Bytes   int64
	Hits    uint64
	Misses  uint64
}

func NewLRUCache(capacity int, maxSizeBytes int64) *LRUCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache{
		capacity: capacity,
		maxSize:  maxSizeBytes,
		items:    make(map[int64]*list.Element),
		order:    list.New(),
	}
}

func (c *LRUCache) Get(id int64, revision uint64) (Artwork, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		c.misses++
		return Artwork{}, false
	}
	entry := elem.Value.(*cacheEntry)
	if entry.revision != revision {
		c.removeElement(elem)
		c.misses++
		return Artwork{}, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return entry.art, true
}

// Set stores art for id at revision. Pictures larger than the size bound are
// not cached.
func (c *LRUCache) Set(id int64, revision uint64, art Artwork) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dataSize := int64(len(art.Data))
	if dataSize > c.maxSize {
		return
	}

	if elem, ok := c.items[id]; ok {
		c.removeElement(elem)
	}

	for c.order.Len() >= c.capacity || (c.size+dataSize > c.maxSize && c.order.Len() > 0) {
		c.removeElement(c.order.Back())
	}

	elem := c.order.PushFront(&cacheEntry{id: id, revision: revision, art: art})
	c.items[id] = elem
	c.size += dataSize
}

func (c *LRUCache) Delete(ids ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if elem, ok := c.items[id]; ok {
			c.removeElement(elem)
		}
	}
}

func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries: c.order.Len(),
		Bytes:   c.size,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

func (c *LRUCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.items, entry.id)
	c.size -= int64(len(entry.art.Data))
}
