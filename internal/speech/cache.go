package speech

import (
	"container/list"
	"sync"
)

// audioKey identifies one synthesized artifact. text is the normalized form;
// the same text through a different voice or speed is a different artifact.
type audioKey struct {
	text    string
	voiceID string
	speed   float64
}

// audioCache is a fixed-capacity LRU over synthesized audio. Eviction is by
// recency of use; a Get refreshes the entry.
type audioCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[audioKey]*list.Element
}

type cacheItem struct {
	key  audioKey
	data []byte
}

func newAudioCache(capacity int) *audioCache {
	return &audioCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[audioKey]*list.Element, capacity),
	}
}

func (c *audioCache) get(key audioKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheItem).data, true
}

func (c *audioCache) put(key audioKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheItem).data = data
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheItem{key: key, data: data})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheItem).key)
	}
}

func (c *audioCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
