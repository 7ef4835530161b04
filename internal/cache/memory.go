package cache

import (
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/patrace/patrace/internal/model"
)

// MemoryCache holds extraction results in process memory. Facts are
// stored as their JSON encoding, so a cached read goes through the same
// decode path as a fresh backend response.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get returns the cached facts for a key. Duration values are re-typed
// to int64 on the way out: the JSON round-trip widens every number to
// float64. An undecodable entry reads as a miss.
func (c *MemoryCache) Get(key string) ([]model.ExtractedFact, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	data, ok := val.([]byte)
	if !ok {
		return nil, false
	}

	var facts []model.ExtractedFact
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, false
	}
	for i, f := range facts {
		if n, ok := f.Value.(float64); ok {
			facts[i].Value = int64(n)
		}
	}
	return facts, true
}

// Set stores the facts under the key with the given TTL
func (c *MemoryCache) Set(key string, facts []model.ExtractedFact, ttl time.Duration) error {
	data, err := json.Marshal(facts)
	if err != nil {
		return fmt.Errorf("encode facts: %w", err)
	}
	c.cache.Set(key, data, ttl)
	return nil
}

// Delete removes the entry for a key
func (c *MemoryCache) Delete(key string) error {
	c.cache.Delete(key)
	return nil
}

// Clear removes every cached extraction
func (c *MemoryCache) Clear() error {
	c.cache.Flush()
	return nil
}
