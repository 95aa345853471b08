package planner

import (
	"context"

	"hareql.dev/catalogue"
)

// Planner ties Stage 1 rewrites, Stage 2 implementation, and the plan
// cache together into the Plan/PlanAndSelect driver from spec.md §4.7.
type Planner struct {
	cache *planCache
}

func New() *Planner {
	return &Planner{cache: newPlanCache(DefaultCacheSize)}
}

func NewWithCacheSize(size int) *Planner {
	return &Planner{cache: newPlanCache(size)}
}

// PlanAndSelect rewrites l, implements it against etx's live indexes
// and statistics, and returns the resulting physical plan. Identical
// logical trees (by structural digest) hit the cache and skip Stage 2
// entirely; bypassCache forces a fresh Stage 2 pass, for tests that
// need to observe planning against changed statistics or indexes.
func (pl *Planner) PlanAndSelect(ctx context.Context, etx *catalogue.EntityTx, l Logical, bypassCache bool) (*Physical, error) {
	rewritten := RewriteStage1(l)
	key := Digest(rewritten)

	if !bypassCache {
		if p, ok := pl.cache.get(key); ok {
			return p, nil
		}
	}

	p, err := implement(ctx, etx, rewritten)
	if err != nil {
		return nil, err
	}
	pl.cache.put(key, p)
	return p, nil
}
