package planner

import (
	"context"

	"hareql.dev/catalogue"
	"hareql.dev/hareerr"
	"hareql.dev/query"
	"hareql.dev/value"
)

// implement performs Stage 2: it replaces each logical node with its
// cheapest physical implementation, given etx's current index set and
// row-count statistics. Unlike Stage 1, Stage 2 needs live information
// (which indexes exist, whether they're dirty, how many rows an entity
// holds) that only an open EntityTx can provide.
func implement(ctx context.Context, etx *catalogue.EntityTx, l Logical) (*Physical, error) {
	switch n := l.(type) {
	case *LogicalScan:
		return implementScan(ctx, etx, n), nil
	case *LogicalSample:
		return implementSample(n), nil
	case *LogicalFilter:
		return implementFilter(ctx, etx, n)
	case *LogicalKnn:
		return implementKnn(ctx, etx, n)
	case *LogicalProjection:
		return implementProjection(ctx, etx, n)
	case *LogicalLimit:
		return implementLimit(ctx, etx, n)
	default:
		return nil, hareerr.Newf(hareerr.KindQueryPlanner, "", "unrecognized logical node %T", l)
	}
}

func columnNames(etx *catalogue.EntityTx, idxs []int) []catalogue.ColumnName {
	if idxs == nil {
		return nil
	}
	out := make([]catalogue.ColumnName, len(idxs))
	for i, c := range idxs {
		name, _ := etx.ColumnNameAt(c)
		out[i] = name
	}
	return out
}

func rowCount(ctx context.Context, etx *catalogue.EntityTx) int64 {
	return etx.Statistics(ctx).RowCount
}

func implementScan(ctx context.Context, etx *catalogue.EntityTx, n *LogicalScan) *Physical {
	return &Physical{
		Kind:    OpEntityScan,
		Entity:  n.Entity,
		Columns: columnNames(etx, n.Columns),
		Cost:    scanCost(rowCount(ctx, etx)),
	}
}

func implementSample(n *LogicalSample) *Physical {
	return &Physical{
		Kind:       OpEntitySample,
		Entity:     n.Entity,
		SampleSize: n.Size,
		SampleSeed: n.Seed,
		Cost:       sampleCost(n.Size),
	}
}

// implementFilter picks IndexedFilter when a non-dirty index can
// answer the predicate outright, otherwise LinearScanFilter over the
// input. Both candidates are built and the cheaper one kept, since an
// index match is not always cheaper than a scan already bounded by a
// previous operator (e.g. a ranged scan).
func implementFilter(ctx context.Context, etx *catalogue.EntityTx, n *LogicalFilter) (*Physical, error) {
	child, err := implement(ctx, etx, n.Input)
	if err != nil {
		return nil, err
	}

	linear := &Physical{
		Kind:      OpLinearScanFilter,
		Predicate: n.Predicate,
		Children:  []*Physical{child},
		Cost:      linearScanFilterCost(rowCount(ctx, etx)),
	}

	if idx, ok := etx.IndexForPredicate(n.Predicate); ok {
		indexed := &Physical{
			Kind:      OpIndexedFilter,
			Predicate: n.Predicate,
			Index:     idx,
			Children:  []*Physical{child},
			Cost:      idx.CostOf(n.Predicate),
		}
		if indexed.TotalCost() < linear.TotalCost() {
			return indexed, nil
		}
	}
	return linear, nil
}

// implementKnn picks IndexedKnn when the query's column has a VA-file,
// otherwise a brute-force KnnFullscan. The prefilter, if any,
// travels with the node unchanged — exec evaluates it per candidate
// inside the kNN operator rather than as a separate child stage.
func implementKnn(ctx context.Context, etx *catalogue.EntityTx, n *LogicalKnn) (*Physical, error) {
	child, err := implement(ctx, etx, n.Input)
	if err != nil {
		return nil, err
	}

	numQueries := len(n.Query.Queries)
	if numQueries == 0 {
		numQueries = 1
	}
	rows := rowCount(ctx, etx)

	if va, ok := etx.VAFileFor(n.Query.Column); ok && !va.Dirty() {
		return &Physical{
			Kind:      OpKnnIndexed,
			KnnQuery:  n.Query,
			VAIndex:   va,
			Predicate: n.Prefilter,
			Children:  []*Physical{child},
			Cost:      knnIndexedCost(rows, numQueries),
		}, nil
	}

	return &Physical{
		Kind:      OpKnnFullscan,
		KnnQuery:  n.Query,
		Predicate: n.Prefilter,
		Children:  []*Physical{child},
		Cost:      knnFullscanCost(rows, numQueries),
	}, nil
}

func implementProjection(ctx context.Context, etx *catalogue.EntityTx, n *LogicalProjection) (*Physical, error) {
	child, err := implement(ctx, etx, n.Input)
	if err != nil {
		return nil, err
	}
	rows := rowCount(ctx, etx)

	kind := OpSelectProjection
	switch n.Op {
	case query.Count:
		kind = OpCountProjection
	case query.Exists:
		kind = OpExistsProjection
	case query.Sum, query.Mean, query.Min, query.Max:
		kind = OpAggProjection
	}

	p := &Physical{
		Kind:        kind,
		ProjOp:      n.Op,
		ProjColumns: n.Columns,
		Children:    []*Physical{child},
		Cost:        projectionCost(rows),
	}
	if kind == OpAggProjection && len(n.Columns) > 0 {
		p.AggColumn = n.Columns[0]
	}
	return p, nil
}

// implementLimit folds into a RangedEntityScan when its child is a
// bare EntityScan touching the whole entity, letting exec stop after
// Skip+Limit tuples instead of materializing every row.
func implementLimit(ctx context.Context, etx *catalogue.EntityTx, n *LogicalLimit) (*Physical, error) {
	child, err := implement(ctx, etx, n.Input)
	if err != nil {
		return nil, err
	}
	if child.Kind == OpEntityScan && n.Limit >= 0 {
		child.Kind = OpRangedEntityScan
		child.RangeStart = value.TupleId(n.Skip)
		end := value.TupleId(n.Skip + n.Limit)
		child.RangeEnd = &end
		return child, nil
	}
	return &Physical{
		Kind:     OpLimit,
		Skip:     n.Skip,
		Limit:    n.Limit,
		Children: []*Physical{child},
		Cost:     limitCost(n.Limit),
	}, nil
}
