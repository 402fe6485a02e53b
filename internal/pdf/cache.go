package pdf

import (
	"sync"
)

// pageCache is a thread-safe least recently used cache of rendered pages
type pageCache struct {
	mutex    sync.Mutex
	capacity int
	items    map[string]*cacheNode
	head     *cacheNode // Most recently used
	tail     *cacheNode // Least recently used
	hits     int64
	misses   int64
}

type cacheNode struct {
	key   string
	value *PageImage
	prev  *cacheNode
	next  *cacheNode
}

func newPageCache(capacity int) *pageCache {
	if capacity <= 0 {
		capacity = 32
	}

	c := &pageCache{
		capacity: capacity,
		items:    make(map[string]*cacheNode),
		head:     &cacheNode{},
		tail:     &cacheNode{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

func (c *pageCache) get(key string) (*PageImage, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, ok := c.items[key]; ok {
		c.removeNode(node)
		c.addToFront(node)
		c.hits++
		return node.value, true
	}
	c.misses++
	return nil, false
}

func (c *pageCache) put(key string, value *PageImage) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, ok := c.items[key]; ok {
		node.value = value
		c.removeNode(node)
		c.addToFront(node)
		return
	}

	node := &cacheNode{key: key, value: value}
	c.addToFront(node)
	c.items[key] = node

	if len(c.items) > c.capacity {
		lru := c.tail.prev
		c.removeNode(lru)
		delete(c.items, lru.key)
	}
}

// CacheStats provides statistics about cache performance
type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Size     int   `json:"current_size"`
	Capacity int   `json:"max_capacity"`
}

func (c *pageCache) stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.items), Capacity: c.capacity}
}

func (c *pageCache) addToFront(node *cacheNode) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

func (c *pageCache) removeNode(node *cacheNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}
