// Package cache holds the in-memory metadata cache for photo records.
// Each process has its own cache; invalidation is local. Multi-instance
// deployments would need an invalidation broadcast, which this service
// does not provide.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"photostore/internal/model"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photostore_cache_hits_total",
		Help: "Total number of metadata cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photostore_cache_misses_total",
		Help: "Total number of metadata cache misses.",
	})
)

// PhotoCache is a size- and TTL-bounded LRU over photo metadata, read-through
// from the repository and explicitly invalidated by every mutating operation.
// Records are cached under two independent keys: record id and storage key.
type PhotoCache struct {
	byID  *expirable.LRU[string, *model.Photo]
	byKey *expirable.LRU[string, *model.Photo]
}

// New creates a PhotoCache bounded by maxEntries per key space and ttl.
func New(maxEntries int, ttl time.Duration) *PhotoCache {
	return &PhotoCache{
		byID:  expirable.NewLRU[string, *model.Photo](maxEntries, nil, ttl),
		byKey: expirable.NewLRU[string, *model.Photo](maxEntries, nil, ttl),
	}
}

// GetByID returns the cached record for a photo id, if present.
func (c *PhotoCache) GetByID(id string) (*model.Photo, bool) {
	p, ok := c.byID.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		return p, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// GetByStorageKey returns the cached record for a storage key, if present.
func (c *PhotoCache) GetByStorageKey(key string) (*model.Photo, bool) {
	p, ok := c.byKey.Get(key)
	if ok {
		cacheHitsTotal.Inc()
		return p, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Put stores the record under both its id and its storage key.
func (c *PhotoCache) Put(p *model.Photo) {
	if p == nil {
		return
	}
	c.byID.Add(p.ID, p)
	c.byKey.Add(p.StorageKey, p)
}

// Invalidate evicts the record from both key spaces. Safe to call with a
// record that was never cached.
func (c *PhotoCache) Invalidate(p *model.Photo) {
	if p == nil {
		return
	}
	c.byID.Remove(p.ID)
	c.byKey.Remove(p.StorageKey)
}

// InvalidateID evicts by record id alone, for callers that only know the id.
func (c *PhotoCache) InvalidateID(id string) {
	if p, ok := c.byID.Peek(id); ok {
		c.byKey.Remove(p.StorageKey)
	}
	c.byID.Remove(id)
}

// Len returns the number of entries in the id key space.
func (c *PhotoCache) Len() int {
	return c.byID.Len()
}
