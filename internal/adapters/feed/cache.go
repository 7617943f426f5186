package feed

import (
	"context"
	"time"

	"github.com/bluele/gcache"

	"github.com/okian/audax/internal/domain/model"
)

const defaultCacheSize = 16

// Cache keeps decoded documents keyed by resource name. Each entry expires
// after the TTL its caller passed when loading it.
type Cache struct {
	store gcache.Cache
}

// NewCache holds up to size resources, evicting least recently used.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	return &Cache{store: gcache.New(size).LRU().Build()}
}

// Loader produces the value for a cache miss.
type Loader func(ctx context.Context) ([]model.Rider, error)

// Get returns the cached riders for key, or calls load and keeps its result
// for ttl. A non-positive ttl disables caching for this call. The bool
// reports a hit. Load errors are not cached.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, load Loader) ([]model.Rider, bool, error) {
	if v, err := c.store.Get(key); err == nil {
		if riders, ok := v.([]model.Rider); ok {
			return riders, true, nil
		}
	}
	riders, err := load(ctx)
	if err != nil {
		return nil, false, err
	}
	if ttl > 0 {
		_ = c.store.SetWithExpire(key, riders, ttl)
	}
	return riders, false, nil
}

// Invalidate drops key so the next Get loads it.
func (c *Cache) Invalidate(key string) bool {
	return c.store.Remove(key)
}

// Len counts unexpired entries.
func (c *Cache) Len() int {
	return c.store.Len(true)
}
