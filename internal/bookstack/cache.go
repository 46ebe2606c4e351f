package bookstack

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ListCache is a TTL cache in front of paginated gallery list queries. Expiry
// is lazy (checked on Get, no background sweep) and the workload is
// bounded-cardinality by construction, so there is no size limit. Any image
// mutation clears the whole cache rather than individual keys.
type ListCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]listEntry
	now     func() time.Time
	metrics *Metrics
}

type listEntry struct {
	timestamp time.Time
	data      any
	metadata  map[string]any
}

func NewListCache(ttl time.Duration, metrics *Metrics) *ListCache {
	return &ListCache{
		ttl:     ttl,
		entries: make(map[string]listEntry),
		now:     time.Now,
		metrics: metrics,
	}
}

// Key canonicalizes query parameters so semantically identical queries collide
// regardless of construction order: JSON encoding sorts map keys at every
// level while preserving list order.
func (c *ListCache) Key(params map[string]any) string {
	encoded, err := json.Marshal(params)
	if err != nil {
		// Params are built from scalars and small lists; this is unreachable
		// in practice but a distinct key keeps a failure from aliasing.
		return fmt.Sprintf("unserializable:%v", params)
	}
	return string(encoded)
}

// Get returns the cached data and metadata, or ok=false on a miss. Expired
// entries are dropped on the way out.
func (c *ListCache) Get(key string) (any, map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		c.metrics.cacheMiss()
		return nil, nil, false
	}
	if c.now().Sub(entry.timestamp) > c.ttl {
		delete(c.entries, key)
		c.metrics.cacheMiss()
		return nil, nil, false
	}
	c.metrics.cacheHit()
	return entry.data, entry.metadata, true
}

func (c *ListCache) Set(key string, data any, metadata map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = listEntry{timestamp: c.now(), data: data, metadata: metadata}
}

// InvalidateAll clears every entry. Called on any image mutation; coarse by
// design.
func (c *ListCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]listEntry)
}

// Len reports the number of live entries (expired ones included until their
// next lookup).
func (c *ListCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
