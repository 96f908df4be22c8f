package ldevents

import (
	"container/list"
)

// A basic LRU cache for string keys. It is not safe for concurrent access.
type lruCache struct {
	capacity  int
	cacheMap  map[string]*list.Element
	cacheList *list.List
}

func newLruCache(capacity int) lruCache {
	return lruCache{
		capacity:  capacity,
		cacheMap:  make(map[string]*list.Element),
		cacheList: list.New(),
	}
}

func (c *lruCache) clear() {
	c.cacheMap = make(map[string]*list.Element)
	c.cacheList = list.New()
}

// add stores the value in the cache, evicting the least recently used value if the cache is at
// capacity. The return value is true if the value was already in the cache. A cache with a
// capacity of zero or less never retains anything.
func (c *lruCache) add(value string) bool {
	if e, ok := c.cacheMap[value]; ok {
		c.cacheList.MoveToFront(e)
		return true
	}
	if c.capacity <= 0 {
		return false
	}
	for len(c.cacheMap) >= c.capacity {
		oldest := c.cacheList.Back()
		delete(c.cacheMap, oldest.Value.(string))
		c.cacheList.Remove(oldest)
	}
	e := c.cacheList.PushFront(value)
	c.cacheMap[value] = e
	return false
}
