package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache stores computed vectors keyed by content hash. Implementations
// must be safe for concurrent use. A network-backed implementation can be
// swapped in at construction time without touching the Service.
type Cache interface {
	Get(key string) ([]float32, bool)
	Set(key string, vector []float32)
}

// CacheKey hashes the (provider, model, text) triple so a vector is never
// reused across models or providers.
func CacheKey(provider ProviderKind, model, text string) string {
	h := sha256.Sum256([]byte(string(provider) + ":" + model + ":" + text))
	return hex.EncodeToString(h[:])
}

// CacheStats reports hit/miss counters for logging and analytics.
type CacheStats struct {
	Size   int
	Hits   int64
	Misses int64
}

type cacheEntry struct {
	vector   []float32
	storedAt time.Time
}

// memoryCache is the in-process implementation: TTL expiry on read,
// oldest-insertion eviction once maxSize is reached.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string // insertion order, for capacity eviction
	maxSize int
	ttl     time.Duration
	hits    int64
	misses  int64
	now     func() time.Time
}

// NewMemoryCache creates an in-process cache holding up to maxSize
// vectors, each expiring after ttl.
func NewMemoryCache(maxSize int, ttl time.Duration) Cache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &memoryCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *memoryCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.vector, true
}

func (c *memoryCache) Set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.maxSize && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{vector: vector, storedAt: c.now()}
}

func (c *memoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Size: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// nopCache is used when caching is disabled in configuration.
type nopCache struct{}

func (nopCache) Get(string) ([]float32, bool) { return nil, false }
func (nopCache) Set(string, []float32)        {}
