package source

import (
	"context"
	"sync"
)

type readCacheKey struct{}

// ReadCache keeps parsed source files for the lifetime of a context, so
// that one pipeline run parses each file once however many partitions it
// loads. The zero value is not usable; see WithReadCache.
type ReadCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

// WithReadCache returns a context carrying a new ReadCache. A context that
// already carries one is returned unchanged.
func WithReadCache(ctx context.Context) context.Context {
	if readCacheFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, readCacheKey{}, &ReadCache{entries: make(map[string]interface{})})
}

func readCacheFrom(ctx context.Context) *ReadCache {
	c, _ := ctx.Value(readCacheKey{}).(*ReadCache)
	return c
}

// get is safe on a nil cache.
func (c *ReadCache) get(key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// put stores v unless key is already present and returns the stored value.
func (c *ReadCache) put(key string, v interface{}) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.entries[key]; ok {
		return prev
	}
	c.entries[key] = v
	return v
}
