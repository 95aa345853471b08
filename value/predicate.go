package value

// Op is a Boolean predicate comparison operator, per spec.md §6's wire
// Query object: Atomic(column, op, not, values).
type Op int

const (
	Equal Op = iota
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
	In
	Like
	Match
	IsNull
	Between
)

// Connector joins two Compound predicate branches.
type Connector int

const (
	And Connector = iota
	Or
)

// Predicate is the column-index-bound predicate shape that indexes
// and execution operators evaluate directly. The query package's
// wire-level BooleanPredicate (which names columns by string) is
// resolved into this shape by the planner's Binder.
type Predicate interface{ isPredicate() }

// Atomic is a single comparison against one column.
type Atomic struct {
	Column int
	Op     Op
	Not    bool
	Values []Value
}

func (Atomic) isPredicate() {}

// Compound joins two predicates with AND/OR.
type Compound struct {
	Connector   Connector
	Left, Right Predicate
}

func (Compound) isPredicate() {}

// KnnQuery is the column-index-bound form of the wire-level
// KnnPredicate(column, k, queries, weights?, distance, hint?).
type KnnQuery struct {
	Column   int
	K        int
	Queries  [][]float64
	Weights  []float64
	Distance Distance
	Hint     string
}

// UniformWeights reports whether every weight is ≈ 1 (or none were
// supplied), letting the kNN operator skip weighting entirely per
// spec.md §4.8 ("If weights are supplied and all weights are ≈ 1,
// they are ignored for efficiency").
func (q KnnQuery) UniformWeights() bool {
	for _, w := range q.Weights {
		if w < 0.999999 || w > 1.000001 {
			return false
		}
	}
	return true
}
