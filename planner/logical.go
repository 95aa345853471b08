// Package planner implements the two-stage query planner from
// spec.md §4.7: Stage 1 rewrites a logical tree into an equivalent,
// cheaper logical tree; Stage 2 replaces each logical node with its
// cheapest physical implementation. binder.go resolves a wire-level
// query.Query against a catalogue.EntityTx into the logical tree
// PlanAndSelect consumes.
package planner

import (
	"hareql.dev/catalogue"
	"hareql.dev/query"
	"hareql.dev/value"
)

// Logical is a node in the logical query tree. Unlike the physical
// tree, logical nodes carry no cost and no chosen implementation —
// only what must happen, not how.
type Logical interface {
	isLogical()
	Children() []Logical
}

// LogicalScan reads every live tuple of an entity, projected to the
// column indices in Columns (nil means every column; populated by
// Stage 1's projection-pushdown rewrite).
type LogicalScan struct {
	Entity  *catalogue.Entity
	Columns []int
}

func (*LogicalScan) isLogical()          {}
func (*LogicalScan) Children() []Logical { return nil }

// LogicalSample reads a seeded reservoir sample of Size tuples.
type LogicalSample struct {
	Entity *catalogue.Entity
	Size   int
	Seed   int64
}

func (*LogicalSample) isLogical()          {}
func (*LogicalSample) Children() []Logical { return nil }

// LogicalFilter keeps only tuples matching Predicate.
type LogicalFilter struct {
	Input     Logical
	Predicate value.Predicate
}

func (*LogicalFilter) isLogical() {}
func (f *LogicalFilter) Children() []Logical { return []Logical{f.Input} }

// LogicalKnn restricts to the K nearest neighbors of each query vector.
// Prefilter, when set, is evaluated against each candidate as part of
// the kNN scan itself rather than as a separate downstream Filter node
// — this is what implements "kNN-before-where": the cheapest possible
// ordering never runs a full filter pass over rows the kNN stage would
// discard anyway.
type LogicalKnn struct {
	Input     Logical
	Query     value.KnnQuery
	Prefilter value.Predicate // nil if the query has no Boolean prefilter
}

func (*LogicalKnn) isLogical() {}
func (k *LogicalKnn) Children() []Logical { return []Logical{k.Input} }

// LogicalProjection reshapes the input into the query's requested
// output (SELECT column list, COUNT, EXISTS, or a SUM/MEAN/MIN/MAX
// aggregate over one column).
type LogicalProjection struct {
	Input   Logical
	Op      query.ProjectionOp
	Columns []int // resolved column indices, parallel to query.Projection.Columns
}

func (*LogicalProjection) isLogical() {}
func (p *LogicalProjection) Children() []Logical { return []Logical{p.Input} }

// LogicalLimit applies Skip then Limit to its input's record stream.
type LogicalLimit struct {
	Input Logical
	Skip  int64
	Limit int64 // <0 means unbounded
}

func (*LogicalLimit) isLogical() {}
func (l *LogicalLimit) Children() []Logical { return []Logical{l.Input} }
