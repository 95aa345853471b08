package planner

import lru "github.com/hashicorp/golang-lru/v2"

// DefaultCacheSize is the plan cache's default capacity, per spec.md
// §4.7 ("a bounded LRU plan cache (default 100)").
const DefaultCacheSize = 100

// planCache wraps hashicorp/golang-lru/v2, the teacher's own (indirect)
// LRU dependency, keyed by a logical tree's structural digest.
type planCache struct {
	cache *lru.Cache[string, *Physical]
}

func newPlanCache(size int) *planCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, *Physical](size)
	if err != nil {
		// lru.New only errors on size <= 0, already guarded above.
		panic(err)
	}
	return &planCache{cache: c}
}

func (c *planCache) get(key string) (*Physical, bool) {
	return c.cache.Get(key)
}

func (c *planCache) put(key string, p *Physical) {
	c.cache.Add(key, p)
}
