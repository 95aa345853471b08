package planner

import (
	"hareql.dev/catalogue"
	"hareql.dev/index"
	"hareql.dev/query"
	"hareql.dev/value"
)

// OpKind identifies which physical operator a Physical node represents,
// the named set from spec.md §4.8.
type OpKind int

const (
	OpEntityScan OpKind = iota
	OpRangedEntityScan
	OpEntitySample
	OpIndexedFilter
	OpLinearScanFilter
	OpFetchColumns
	OpKnnFullscan
	OpKnnIndexed
	OpSelectProjection
	OpCountProjection
	OpExistsProjection
	OpAggProjection
	OpLimit
)

func (k OpKind) String() string {
	switch k {
	case OpEntityScan:
		return "EntityScan"
	case OpRangedEntityScan:
		return "RangedEntityScan"
	case OpEntitySample:
		return "EntitySample"
	case OpIndexedFilter:
		return "IndexedFilter"
	case OpLinearScanFilter:
		return "LinearScanFilter"
	case OpFetchColumns:
		return "FetchColumns"
	case OpKnnFullscan:
		return "KnnFullscan"
	case OpKnnIndexed:
		return "KnnIndexed"
	case OpSelectProjection:
		return "SelectProjection"
	case OpCountProjection:
		return "CountProjection"
	case OpExistsProjection:
		return "ExistsProjection"
	case OpAggProjection:
		return "AggProjection"
	case OpLimit:
		return "Limit"
	default:
		return "Unknown"
	}
}

// Physical is a node in the physical plan tree Stage 2 produces. A
// single struct (rather than one Go type per operator) keeps the
// cost-annotated tree trivial to digest, compare, and cache; exec.Build
// interprets Kind to construct the concrete operator.
type Physical struct {
	Kind OpKind

	Entity  *catalogue.Entity
	Columns []catalogue.ColumnName

	Predicate value.Predicate
	Index     index.Index // set when Kind == OpIndexedFilter

	KnnQuery value.KnnQuery
	VAIndex  *index.VAFile // set when Kind == OpKnnIndexed

	SampleSize int
	SampleSeed int64

	ProjOp      query.ProjectionOp
	ProjColumns []int
	AggColumn   int

	Skip  int64
	Limit int64

	RangeStart value.TupleId
	RangeEnd   *value.TupleId

	Children []*Physical
	Cost     index.Cost
}

// TotalCost sums this node's own cost and every child's, the quantity
// planAndSelect minimizes over.
func (p *Physical) TotalCost() float64 {
	total := p.Cost.Total()
	for _, c := range p.Children {
		total += c.TotalCost()
	}
	return total
}
