package exec

import (
	"context"
	"fmt"
	"math/rand"

	"hareql.dev/catalogue"
	"hareql.dev/hareerr"
	"hareql.dev/planner"
	"hareql.dev/query"
	"hareql.dev/value"
)

// Build interprets a physical plan into a lazy value.Iterator pipeline
// against etx. Most operators stream; Sample, the aggregate
// projections, Count, Exists, and both kNN operators are breakers that
// consume their input fully before returning.
func Build(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	switch p.Kind {
	case planner.OpEntityScan:
		return etx.Scan(ctx, p.Columns, 0, nil)
	case planner.OpRangedEntityScan:
		return etx.Scan(ctx, p.Columns, p.RangeStart, p.RangeEnd)
	case planner.OpEntitySample:
		return buildSample(ctx, etx, p)
	case planner.OpIndexedFilter:
		return buildIndexedFilter(ctx, etx, p)
	case planner.OpLinearScanFilter:
		return buildLinearScanFilter(ctx, etx, p)
	case planner.OpKnnFullscan:
		return buildKnnFullscan(ctx, etx, p)
	case planner.OpKnnIndexed:
		return buildKnnIndexed(ctx, etx, p)
	case planner.OpSelectProjection:
		return buildSelectProjection(ctx, etx, p)
	case planner.OpCountProjection:
		return buildCountProjection(ctx, etx, p)
	case planner.OpExistsProjection:
		return buildExistsProjection(ctx, etx, p)
	case planner.OpAggProjection:
		return buildAggProjection(ctx, etx, p)
	case planner.OpLimit:
		return buildLimit(ctx, etx, p)
	default:
		return nil, hareerr.Newf(hareerr.KindOperatorSetup, p.Kind.String(), "unsupported physical operator")
	}
}

func child(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	if len(p.Children) == 0 {
		return value.EmptyIterator, nil
	}
	return Build(ctx, etx, p.Children[0])
}

func prefilterFunc(p value.Predicate) Prefilter {
	if p == nil {
		return nil
	}
	return func(rec value.Record) bool { return catalogue.EvalPredicate(p, rec) }
}

// buildSample reservoir-samples SampleSize tuples from the entity,
// seeded for reproducibility — a breaker, since Algorithm R needs to
// see every candidate to decide what to keep.
func buildSample(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	src, err := etx.Scan(ctx, p.Columns, 0, nil)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	rng := rand.New(rand.NewSource(p.SampleSeed))
	reservoir := make([]value.Record, 0, p.SampleSize)
	seen := 0
	for {
		rec, ok, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		seen++
		if len(reservoir) < p.SampleSize {
			reservoir = append(reservoir, rec)
			continue
		}
		j := rng.Intn(seen)
		if j < p.SampleSize {
			reservoir[j] = rec
		}
	}
	return value.NewSliceIterator(reservoir), nil
}

// buildIndexedFilter answers the predicate against its index, then
// fetches the remaining requested columns by TupleId — an index's
// Filter only returns the indexed column's own value.
func buildIndexedFilter(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	matches, err := p.Index.Filter(ctx, p.Predicate)
	if err != nil {
		return nil, err
	}
	defer matches.Close()

	var tids []value.TupleId
	for {
		rec, ok, err := matches.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tids = append(tids, rec.Tid)
	}
	return etx.FetchColumns(ctx, tids, p.Columns)
}

type filterIterator struct {
	src  value.Iterator
	pred Prefilter
}

func (it *filterIterator) Next(ctx context.Context) (value.Record, bool, error) {
	for {
		rec, ok, err := it.src.Next(ctx)
		if err != nil || !ok {
			return rec, ok, err
		}
		if it.pred == nil || it.pred(rec) {
			return rec, true, nil
		}
	}
}

func (it *filterIterator) Close() error { return it.src.Close() }

func buildLinearScanFilter(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	src, err := child(ctx, etx, p)
	if err != nil {
		return nil, err
	}
	return &filterIterator{src: src, pred: prefilterFunc(p.Predicate)}, nil
}

// buildKnnFullscan runs one brute-force scan per query vector in the
// batch (KnnQuery.Queries), re-reading the child pipeline each time.
// This is simpler than a single shared pass accumulating one heap per
// query and is correct either way; it is not chosen for its constant
// factor, which only matters once query batches grow large relative
// to row counts — uncommon for the ad hoc probe batches this engine
// targets.
func buildKnnFullscan(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	pre := prefilterFunc(p.Predicate)
	weights := p.KnnQuery.Weights
	if p.KnnQuery.UniformWeights() {
		weights = nil
	}

	var allIds []value.TupleId
	for _, q := range p.KnnQuery.Queries {
		src, err := child(ctx, etx, p)
		if err != nil {
			return nil, err
		}
		ids, _, err := BruteForceKnnQuery(ctx, src, p.KnnQuery.Column, q, weights, p.KnnQuery.Distance, p.KnnQuery.K, pre)
		src.Close()
		if err != nil {
			return nil, err
		}
		allIds = append(allIds, ids...)
	}
	return etx.FetchColumns(ctx, allIds, p.Columns)
}

// buildKnnIndexed drives the VA-file's signature-pruned scan per query
// vector. A prefilter, when present, is applied after the index
// returns its k candidates rather than during the scan itself (the
// VA-file's ApproximateKnn has no prefilter hook) — documented
// limitation: a selective prefilter can leave fewer than k rows in the
// final result, the same tradeoff spec.md accepts for VA-SSA pruning
// generally.
func buildKnnIndexed(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	colName, ok := etx.ColumnNameAt(p.KnnQuery.Column)
	if !ok {
		return nil, hareerr.Newf(hareerr.KindOperatorSetup, "", "unknown kNN column index %d", p.KnnQuery.Column)
	}
	exact := func(tid value.TupleId) ([]float64, error) {
		it, err := etx.FetchColumns(ctx, []value.TupleId{tid}, []catalogue.ColumnName{colName})
		if err != nil {
			return nil, err
		}
		defer it.Close()
		rec, ok, err := it.Next(ctx)
		if err != nil || !ok {
			return nil, err
		}
		return ToFloat64Vector(rec.Get(0)), nil
	}
	distFn := func(a, b []float64) float64 { return Distance(p.KnnQuery.Distance, a, b) }

	var allIds []value.TupleId
	for _, q := range p.KnnQuery.Queries {
		ids, _, err := p.VAIndex.ApproximateKnn(ctx, q, p.KnnQuery.K, exact, distFn)
		if err != nil {
			return nil, err
		}
		allIds = append(allIds, ids...)
	}

	rows, err := etx.FetchColumns(ctx, allIds, p.Columns)
	if err != nil {
		return nil, err
	}
	if p.Predicate == nil {
		return rows, nil
	}
	return &filterIterator{src: rows, pred: prefilterFunc(p.Predicate)}, nil
}

func buildSelectProjection(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	src, err := child(ctx, etx, p)
	if err != nil {
		return nil, err
	}
	return &projectIterator{src: src, cols: p.ProjColumns}, nil
}

type projectIterator struct {
	src  value.Iterator
	cols []int
}

func (it *projectIterator) Next(ctx context.Context) (value.Record, bool, error) {
	rec, ok, err := it.src.Next(ctx)
	if err != nil || !ok {
		return rec, ok, err
	}
	if len(it.cols) == 0 {
		return rec, true, nil
	}
	vals := make([]value.Value, len(it.cols))
	for i, c := range it.cols {
		vals[i] = rec.Get(c)
	}
	return value.NewRecord(rec.Tid, vals), true, nil
}

func (it *projectIterator) Close() error { return it.src.Close() }

func buildCountProjection(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	src, err := child(ctx, etx, p)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	var n int64
	for {
		_, ok, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		n++
	}
	return value.NewSliceIterator([]value.Record{value.NewRecord(0, []value.Value{value.OfLong(n)})}), nil
}

func buildExistsProjection(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	src, err := child(ctx, etx, p)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	_, ok, err := src.Next(ctx)
	if err != nil {
		return nil, err
	}
	return value.NewSliceIterator([]value.Record{value.NewRecord(0, []value.Value{value.OfBool(ok)})}), nil
}

// buildAggProjection computes Sum/Mean/Min/Max over AggColumn — a
// breaker, since every aggregate here is global (no GROUP BY in this
// engine's query surface).
func buildAggProjection(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	src, err := child(ctx, etx, p)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var sum float64
	var count int64
	min, max := 0.0, 0.0
	first := true
	for {
		rec, ok, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		v := rec.Get(p.AggColumn)
		if v.Null {
			continue
		}
		f := v.AsFloat64()
		sum += f
		count++
		if first || f < min {
			min = f
		}
		if first || f > max {
			max = f
		}
		first = false
	}

	var result float64
	switch p.ProjOp {
	case query.Sum:
		result = sum
	case query.Mean:
		if count > 0 {
			result = sum / float64(count)
		}
	case query.Min:
		result = min
	case query.Max:
		result = max
	default:
		return nil, fmt.Errorf("exec: unsupported aggregate op %v", p.ProjOp)
	}
	return value.NewSliceIterator([]value.Record{value.NewRecord(0, []value.Value{value.OfDouble(result)})}), nil
}

type limitIterator struct {
	src        value.Iterator
	skip, left int64
}

func (it *limitIterator) Next(ctx context.Context) (value.Record, bool, error) {
	for it.skip > 0 {
		_, ok, err := it.src.Next(ctx)
		if err != nil || !ok {
			return value.Record{}, ok, err
		}
		it.skip--
	}
	if it.left == 0 {
		return value.Record{}, false, nil
	}
	rec, ok, err := it.src.Next(ctx)
	if err != nil || !ok {
		return rec, ok, err
	}
	if it.left > 0 {
		it.left--
	}
	return rec, true, nil
}

func (it *limitIterator) Close() error { return it.src.Close() }

func buildLimit(ctx context.Context, etx *catalogue.EntityTx, p *planner.Physical) (value.Iterator, error) {
	src, err := child(ctx, etx, p)
	if err != nil {
		return nil, err
	}
	left := p.Limit
	if left < 0 {
		left = -1
	}
	return &limitIterator{src: src, skip: p.Skip, left: left}, nil
}
