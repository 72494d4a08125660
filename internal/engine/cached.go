package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultQueryCacheSize is the number of search results kept per engine.
const DefaultQueryCacheSize = 256

// CachedEngine wraps an Engine with an LRU of search results. A build drops
// every cached result of its index.
type CachedEngine struct {
	inner Engine
	cache *lru.Cache[string, *SearchResults]

	mu          sync.Mutex
	generations map[string]uint64
}

var _ Engine = (*CachedEngine)(nil)

// NewCachedEngine wraps inner. A non-positive size uses DefaultQueryCacheSize.
func NewCachedEngine(inner Engine, size int) *CachedEngine {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	cache, _ := lru.New[string, *SearchResults](size)
	return &CachedEngine{
		inner:       inner,
		cache:       cache,
		generations: make(map[string]uint64),
	}
}

// Unwrap returns the wrapped engine.
func (c *CachedEngine) Unwrap() Engine { return c.inner }

// Init implements Engine.
func (c *CachedEngine) Init(ctx context.Context, credential string) error {
	return c.inner.Init(ctx, credential)
}

// Backend implements Engine.
func (c *CachedEngine) Backend() Backend { return c.inner.Backend() }

func cacheKey(index string, q Query) string {
	return fmt.Sprintf("%s\x00%d\x00%d\x00%s", index, q.Limit, q.Offset, q.Text)
}

func (c *CachedEngine) generation(index string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[index]
}

// Build implements Engine and invalidates the index's cached results.
func (c *CachedEngine) Build(ctx context.Context, indexName string, src Source) (BuildStats, error) {
	stats, err := c.inner.Build(ctx, indexName, src)
	c.Invalidate(indexName)
	return stats, err
}

// Invalidate drops cached results for index.
func (c *CachedEngine) Invalidate(index string) {
	c.mu.Lock()
	c.generations[index]++
	c.mu.Unlock()

	prefix := index + "\x00"
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
}

// Search implements Engine. Results are shared between callers and must
// be treated as read-only.
func (c *CachedEngine) Search(ctx context.Context, indexName string, q Query) (*SearchResults, error) {
	key := cacheKey(indexName, q)
	if res, ok := c.cache.Get(key); ok {
		return res, nil
	}

	gen := c.generation(indexName)
	res, err := c.inner.Search(ctx, indexName, q)
	if err != nil {
		return nil, err
	}
	// A build that finished meanwhile makes this result stale.
	if c.generation(indexName) == gen {
		c.cache.Add(key, res)
	}
	return res, nil
}

// Len returns the number of cached results.
func (c *CachedEngine) Len() int {
	return c.cache.Len()
}

// Close implements Engine.
func (c *CachedEngine) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
