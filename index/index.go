// Package index implements the engine's three secondary index
// families (UniqueHash, InvertedText, VA-file) over an entity's
// columns, per spec.md §4.6. Every index advertises what predicates
// it can answer and at what estimated cost, so the planner's Stage 2
// implementation rules can pick IndexedFilter/IndexedKnn over a linear
// scan when one applies.
package index

import (
	"context"
	"math"

	"hareql.dev/value"
)

// Type discriminates the three index families.
type Type int

const (
	TypeUniqueHash Type = iota
	TypeInvertedText
	TypeVAFile
)

func (t Type) String() string {
	switch t {
	case TypeUniqueHash:
		return "UNIQUE_HASH"
	case TypeInvertedText:
		return "INVERTED_TEXT"
	case TypeVAFile:
		return "VA_FILE"
	default:
		return "UNKNOWN"
	}
}

// Cost has three weighted components, summed into Total by the
// planner's cost model (spec.md §4.6: "Cost values have three
// components (I/O, CPU, memory) summed via weighted norm").
type Cost struct {
	CPU    float64
	IO     float64
	Memory float64
}

// weights mirror typical cost-model practice (I/O dominates, since a
// page fault costs orders of magnitude more than an in-memory compare).
const (
	weightIO     = 10.0
	weightCPU    = 1.0
	weightMemory = 0.1
)

func (c Cost) Total() float64 {
	return c.IO*weightIO + c.CPU*weightCPU + c.Memory*weightMemory
}

// Invalid is the disqualifying cost: a plan candidate that reports it
// can never be chosen by the planner's minimum-cost search.
var Invalid = Cost{CPU: math.Inf(1), IO: math.Inf(1), Memory: math.Inf(1)}

func (c Cost) IsInvalid() bool { return math.IsInf(c.Total(), 1) }

// Index is the surface every index family implements. canProcess/cost
// let the planner decide whether to route a predicate through this
// index; filter/filterRange produce the matching records; rebuild
// repopulates the index from a full entity scan; update/commit/
// rollback keep it consistent with the owning entity's transaction
// boundary (spec.md §4.4: "insert/update/delete emit DataChangeEvents
// that are dispatched to every incrementally-updatable index on this
// entity before the entity Tx commits").
type Index interface {
	Name() string
	Type() Type
	// SupportsIncrementalUpdate reports whether Update is wired to
	// DataChangeEvents rather than requiring a full Rebuild.
	SupportsIncrementalUpdate() bool
	// Dirty reports whether the index needs Rebuild before it may
	// participate in query plans (spec.md §3 invariant (iii)).
	Dirty() bool

	CanProcess(p value.Predicate) bool
	CostOf(p value.Predicate) Cost

	Filter(ctx context.Context, p value.Predicate) (value.Iterator, error)
	// FilterRange is optional; indexes that don't support a ranged
	// variant return ok=false.
	FilterRange(ctx context.Context, p value.Predicate, start, end value.TupleId) (it value.Iterator, ok bool, err error)

	Rebuild(ctx context.Context, source value.Iterator, columns []int) error
	Update(ctx context.Context, ev DataChangeEvent) error
	Commit() error
	Rollback() error

	Close() error
}
