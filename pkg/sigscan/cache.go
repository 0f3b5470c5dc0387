package sigscan

import (
	"container/list"
	"sync"

	"github.com/zeebo/xxh3"
)

// Cache memoises scan results per (content, pattern) with LRU eviction.
// The content key identifies the bytes scanned, e.g. Image.Hash or a hash
// of a module's path and load address.
type Cache struct {
	capacity int
	mu       sync.Mutex
	items    map[cacheKey]*list.Element
	lruList  *list.List

	hits, misses uint64
}

type cacheKey struct {
	content uint64
	pattern uint64
}

// cacheEntry represents a memoised scan in the cache.
type cacheEntry struct {
	key  cacheKey
	addr uint64
	err  error
}

// NewCache creates a cache holding at most capacity results.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[cacheKey]*list.Element),
		lruList:  list.New(),
	}
}

// ContentKey hashes an identity string (path, build id, load address) into a
// content key.
func ContentKey(identity string) uint64 {
	return xxh3.HashString(identity)
}

// Do returns the memoised result for (content, p), running scan on a miss.
// Failed scans are memoised too: the same bytes give the same answer.
func (c *Cache) Do(content uint64, p Pattern, scan func() (uint64, error)) (uint64, error) {
	key := cacheKey{content: content, pattern: xxh3.HashString(p.String())}

	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.lruList.MoveToFront(elem)
		c.hits++
		e := elem.Value.(*cacheEntry)
		c.mu.Unlock()
		return e.addr, e.err
	}
	c.misses++
	c.mu.Unlock()

	addr, err := scan()

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.lruList.MoveToFront(elem)
		e := elem.Value.(*cacheEntry)
		return e.addr, e.err
	}
	elem := c.lruList.PushFront(&cacheEntry{key: key, addr: addr, err: err})
	c.items[key] = elem
	if c.lruList.Len() > c.capacity {
		c.evictOldest()
	}
	return addr, err
}

// ScanImage scans img for p through the cache.
func (c *Cache) ScanImage(img *Image, p Pattern) (uint64, error) {
	return c.Do(img.Hash(), p, func() (uint64, error) { return img.Scan(p) })
}

// evictOldest removes the least recently used item from the cache.
func (c *Cache) evictOldest() {
	elem := c.lruList.Back()
	if elem != nil {
		c.lruList.Remove(elem)
		delete(c.items, elem.Value.(*cacheEntry).key)
	}
}

// Len returns the current number of items in the cache.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
