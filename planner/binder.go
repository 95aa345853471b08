package planner

import (
	"hareql.dev/catalogue"
	"hareql.dev/hareerr"
	"hareql.dev/query"
	"hareql.dev/value"
)

// Binder resolves a wire-level query.Query, which names columns by
// string, against an already-opened EntityTx into the column-index
// logical tree PlanAndSelect consumes.
type Binder struct {
	etx *catalogue.EntityTx
}

func NewBinder(etx *catalogue.EntityTx) *Binder {
	return &Binder{etx: etx}
}

// Bind builds the logical tree for q. The caller is responsible for
// having already resolved q.From.Entity to the entity etx is bound to;
// Bind only uses q.From.Sample to decide between a full scan and a
// seeded sample.
func (b *Binder) Bind(q query.Query) (Logical, error) {
	var root Logical
	if q.From.Sample != nil {
		root = &LogicalSample{Entity: b.etx.Entity(), Size: q.From.Sample.Size, Seed: q.From.Sample.Seed}
	} else {
		root = &LogicalScan{Entity: b.etx.Entity()}
	}

	switch {
	case q.Knn != nil:
		kq, err := b.bindKnn(*q.Knn)
		if err != nil {
			return nil, err
		}
		var pre value.Predicate
		if q.Where != nil {
			pre, err = b.bindPredicate(q.Where)
			if err != nil {
				return nil, err
			}
		}
		root = &LogicalKnn{Input: root, Query: kq, Prefilter: pre}
	case q.Where != nil:
		pred, err := b.bindPredicate(q.Where)
		if err != nil {
			return nil, err
		}
		root = &LogicalFilter{Input: root, Predicate: pred}
	}

	if q.Projection != nil {
		cols := make([]int, len(q.Projection.Columns))
		for i, c := range q.Projection.Columns {
			_, idx, ok := b.etx.ColumnForName(catalogue.ColumnName(c.Name))
			if !ok {
				return nil, hareerr.Newf(hareerr.KindQueryBind, c.Name, "unknown projection column")
			}
			cols[i] = idx
		}
		root = &LogicalProjection{Input: root, Op: q.Projection.Op, Columns: cols}
	}

	if q.Limit != nil || q.Skip != nil {
		limit := int64(-1)
		var skip int64
		if q.Limit != nil {
			limit = *q.Limit
		}
		if q.Skip != nil {
			skip = *q.Skip
		}
		root = &LogicalLimit{Input: root, Skip: skip, Limit: limit}
	}

	return root, nil
}

func (b *Binder) bindKnn(p query.KnnPredicate) (value.KnnQuery, error) {
	_, idx, ok := b.etx.ColumnForName(catalogue.ColumnName(p.Column))
	if !ok {
		return value.KnnQuery{}, hareerr.Newf(hareerr.KindQueryBind, p.Column, "unknown kNN column")
	}
	return value.KnnQuery{
		Column:   idx,
		K:        p.K,
		Queries:  p.Queries,
		Weights:  p.Weights,
		Distance: p.Distance,
		Hint:     p.Hint,
	}, nil
}

func (b *Binder) bindPredicate(p query.BooleanPredicate) (value.Predicate, error) {
	switch pr := p.(type) {
	case query.Atomic:
		_, idx, ok := b.etx.ColumnForName(catalogue.ColumnName(pr.Column))
		if !ok {
			return nil, hareerr.Newf(hareerr.KindQueryBind, pr.Column, "unknown predicate column")
		}
		return value.Atomic{Column: idx, Op: pr.Op, Not: pr.Not, Values: pr.Values}, nil
	case query.Compound:
		left, err := b.bindPredicate(pr.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.bindPredicate(pr.Right)
		if err != nil {
			return nil, err
		}
		return value.Compound{Connector: pr.Connector, Left: left, Right: right}, nil
	default:
		return nil, hareerr.Newf(hareerr.KindQueryBind, "", "unrecognized predicate node %T", p)
	}
}
