package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// DefaultMemoryMaxBytes bounds a MemoryCache when no size is configured.
const DefaultMemoryMaxBytes = 256 << 20

// MemoryCache is an in-process cache backed by ristretto, with each entry
// costed at its byte length. Admission is probabilistic: a Set may be
// dropped under contention, which callers see as a later miss.
type MemoryCache struct {
	cache *ristretto.Cache
}

// NewMemoryCache returns a cache holding at most maxBytes of image data.
// maxBytes <= 0 uses DefaultMemoryMaxBytes.
func NewMemoryCache(maxBytes int64) (*MemoryCache, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMemoryMaxBytes
	}
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryCache{cache: rc}, nil
}

// Get returns a copy of the stored bytes.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Set stores a copy of data and waits until it is visible to Get.
func (c *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := append([]byte(nil), data...)
	c.cache.SetWithTTL(key, buf, int64(len(buf)), ttl)
	c.cache.Wait()
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.cache.Del(key)
	return nil
}

// Close stops ristretto's background goroutines.
func (c *MemoryCache) Close() error {
	c.cache.Close()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
