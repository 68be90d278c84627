// internal/cache/cache.go
package cache

import (
	"container/list"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/internal/dataset"
	"github.com/web-traces/wlprep/pkg/models"
)

// BBoxCache is a read-through LRU cache for parsed bounding box files.
//
// Metadata indexing walks a demonstration step by step, and consecutive steps
// usually resolve against the same carried-forward bboxes-<index>.json, so
// caching the parsed map avoids decoding the same file once per step.
type BBoxCache struct {
	store      map[string]*list.Element // Map path to list element
	lruList    *list.List               // Doubly-linked list for LRU ordering
	mu         sync.Mutex
	maxEntries int
	hits       uint64 // Cache hit counter
	misses     uint64 // Cache miss counter
}

// cacheEntry holds one parsed bounding box file
type cacheEntry struct {
	boxes map[string]models.BoundingBox
	key   string // For LRU tracking
}

// NewBBoxCache creates a cache bounded to maxEntries parsed files.
func NewBBoxCache(maxEntries int) *BBoxCache {
	if maxEntries <= 0 {
		maxEntries = 64
	}

	return &BBoxCache{
		store:      make(map[string]*list.Element),
		lruList:    list.New(),
		maxEntries: maxEntries,
	}
}

// Get returns the parsed content of the bounding box file at path, loading it
// on first access. Callers must treat the returned map as read-only.
func (c *BBoxCache) Get(path string) (map[string]models.BoundingBox, error) {
	c.mu.Lock()
	if element, exists := c.store[path]; exists {
		// Move to front (most recently used)
		c.lruList.MoveToFront(element)
		c.hits++
		boxes := element.Value.(*cacheEntry).boxes
		c.mu.Unlock()
		return boxes, nil
	}
	c.misses++
	c.mu.Unlock()

	// Load outside the lock. Concurrent misses on the same path both read the
	// file and the later put wins, which is harmless for immutable inputs.
	boxes, err := dataset.LoadBBoxes(path)
	if err != nil {
		return nil, err
	}
	c.put(path, boxes)

	log.Debug().Str("path", path).Int("boxes", len(boxes)).Msg("Cached bounding box file")
	return boxes, nil
}

func (c *BBoxCache) put(path string, boxes map[string]models.BoundingBox) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.store[path]; exists {
		element.Value = &cacheEntry{boxes: boxes, key: path}
		c.lruList.MoveToFront(element)
		return
	}

	for c.lruList.Len() >= c.maxEntries {
		c.evictLRU()
	}

	element := c.lruList.PushFront(&cacheEntry{boxes: boxes, key: path})
	c.store[path] = element
}

// Invalidate removes a single path from the cache.
func (c *BBoxCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.store[path]; exists {
		c.lruList.Remove(element)
		delete(c.store, path)
	}
}

// Clear removes all cached files.
func (c *BBoxCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*list.Element)
	c.lruList = list.New()
	c.hits = 0
	c.misses = 0
}

// evictLRU removes the least recently used entry (must be called with lock held)
func (c *BBoxCache) evictLRU() {
	element := c.lruList.Back()
	if element == nil {
		return
	}

	entry := element.Value.(*cacheEntry)
	c.lruList.Remove(element)
	delete(c.store, entry.key)

	log.Debug().Str("path", entry.key).Msg("Evicted from bbox cache (LRU)")
}

// Stats returns cache statistics including hit rate.
func (c *BBoxCache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := 0.0
	total := c.hits + c.misses
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"entries":     c.lruList.Len(),
		"max_entries": c.maxEntries,
		"hits":        c.hits,
		"misses":      c.misses,
		"hit_rate":    hitRate,
	}
}
