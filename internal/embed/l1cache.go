package embed

import "github.com/prism-search/prism/internal/cache"

// L1Cache is the process-local, byte-bounded LRU layer in front of the
// persistent L2 cache (spec.md §4.8, §5's shared read-many/write-one
// caching note).
type L1Cache struct {
	lru *cache.ByteBoundedLRU
}

// NewL1Cache wraps a ByteBoundedLRU bounded by maxBytes.
func NewL1Cache(maxBytes int64) *L1Cache {
	return &L1Cache{lru: cache.NewByteBoundedLRU(maxBytes, nil)}
}

func (c *L1Cache) Get(key string) ([]float32, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]float32), true
}

func (c *L1Cache) Put(key string, vec []float32) {
	c.lru.Put(key, vec, int64(len(vec)*4))
}
