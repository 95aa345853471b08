package exec

import (
	"container/heap"
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"hareql.dev/value"
)

// neighbor is one kNN candidate: a TupleId and its distance to a query
// vector.
type neighbor struct {
	tid  value.TupleId
	dist float64
}

// maxHeap keeps the k best neighbors seen so far with the single worst
// one at the root, so a new candidate can be compared against the
// current cutoff in O(1) and, when it beats it, swapped in in O(log k).
// Ties break on TupleId: the larger id sits closer to the root, so
// among equal distances the smaller TupleId survives — spec.md's
// "ascending-TupleId tiebreak".
type maxHeap []neighbor

func (h maxHeap) Len() int { return len(h) }
func (h maxHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist > h[j].dist
	}
	return h[i].tid > h[j].tid
}
func (h maxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)   { *h = append(*h, x.(neighbor)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// offer admits n into the heap if it is among the k best seen so far.
func (h *maxHeap) offer(n neighbor, k int) {
	if k <= 0 {
		return
	}
	if h.Len() < k {
		heap.Push(h, n)
		return
	}
	worst := (*h)[0]
	if n.dist < worst.dist || (n.dist == worst.dist && n.tid < worst.tid) {
		(*h)[0] = n
		heap.Fix(h, 0)
	}
}

// sorted drains the heap into ascending (dist, TupleId) order, the
// order a kNN result set is returned in.
func (h maxHeap) sorted() []neighbor {
	out := make([]neighbor, len(h))
	copy(out, h)
	sort.Slice(out, func(i, j int) bool {
		if out[i].dist != out[j].dist {
			return out[i].dist < out[j].dist
		}
		return out[i].tid < out[j].tid
	})
	return out
}

// weightedDistance applies per-dimension feature weights to the
// kernels defined as a sum of per-dimension terms (L1, L2, L2Squared,
// ChiSquared); Cosine, InnerProduct, and Hamming have no natural
// per-dimension weighting and fall back to the unweighted kernel.
func weightedDistance(d value.Distance, a, b, weights []float64) float64 {
	if len(weights) == 0 {
		return Distance(d, a, b)
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if len(weights) < n {
		n = len(weights)
	}
	switch d {
	case value.L1:
		var sum float64
		for i := 0; i < n; i++ {
			diff := a[i] - b[i]
			if diff < 0 {
				diff = -diff
			}
			sum += weights[i] * diff
		}
		return sum
	case value.L2, value.L2Squared:
		var sum float64
		for i := 0; i < n; i++ {
			diff := a[i] - b[i]
			sum += weights[i] * diff * diff
		}
		if d == value.L2 {
			return math.Sqrt(sum)
		}
		return sum
	case value.ChiSquared:
		var sum float64
		for i := 0; i < n; i++ {
			s := a[i] + b[i]
			if s == 0 {
				continue
			}
			diff := a[i] - b[i]
			sum += weights[i] * (diff * diff) / s
		}
		return sum
	default:
		return Distance(d, a, b)
	}
}

// Prefilter evaluates a Boolean prefilter against a candidate record,
// used by both the fullscan and indexed kNN operators so a predicate
// attached to a kNN query is honored without a separate Filter pass.
type Prefilter func(value.Record) bool

// BruteForceKnnQuery scans src to completion, computing distance to a
// single query vector per candidate and keeping the k closest. Weights
// are used verbatim (pass nil, or a KnnQuery whose UniformWeights() is
// true, to take the unweighted fast path).
func BruteForceKnnQuery(ctx context.Context, src value.Iterator, column int, query, weights []float64, dist value.Distance, k int, prefilter Prefilter) ([]value.TupleId, []float64, error) {
	h := &maxHeap{}
	for {
		rec, ok, err := src.Next(ctx)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		if prefilter != nil && !prefilter(rec) {
			continue
		}
		vec := ToFloat64Vector(rec.Get(column))
		if vec == nil {
			continue
		}
		h.offer(neighbor{tid: rec.Tid, dist: weightedDistance(dist, query, vec, weights)}, k)
	}
	return splitNeighbors(h.sorted())
}

// ScanRange opens an Iterator over [start, end) of an entity's column
// set, the narrow surface ParallelFullscanKnn needs from an EntityTx
// without importing the catalogue package directly.
type ScanRange func(ctx context.Context, start, end value.TupleId) (value.Iterator, error)

// ParallelFullscanKnn partitions [0, totalRows) into one range per
// worker (bounded by GOMAXPROCS), computes each partition's own
// top-k independently, then merges the partitions' candidates into the
// overall top-k. A tuple in the global top-k is always present in its
// own partition's local top-k (it is at least as close as that
// partition's k-th best, or it wouldn't be globally in the top k),
// so merging the per-partition top-k sets never loses a true neighbor.
func ParallelFullscanKnn(ctx context.Context, scan ScanRange, totalRows int64, column int, query, weights []float64, dist value.Distance, k int, prefilter Prefilter) ([]value.TupleId, []float64, error) {
	if totalRows <= 0 || k <= 0 {
		return nil, nil, nil
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > 8 {
		workers = 8
	}
	if int64(workers) > totalRows {
		workers = int(totalRows)
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (totalRows + int64(workers) - 1) / int64(workers)

	partials := make([]*maxHeap, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		start := value.TupleId(int64(w) * chunk)
		end := value.TupleId(minInt64(int64(w+1)*chunk, totalRows))
		if int64(start) >= totalRows {
			continue
		}
		g.Go(func() error {
			it, err := scan(gctx, start, end)
			if err != nil {
				return err
			}
			defer it.Close()
			h := &maxHeap{}
			for {
				rec, ok, err := it.Next(gctx)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				if prefilter != nil && !prefilter(rec) {
					continue
				}
				vec := ToFloat64Vector(rec.Get(column))
				if vec == nil {
					continue
				}
				h.offer(neighbor{tid: rec.Tid, dist: weightedDistance(dist, query, vec, weights)}, k)
			}
			partials[w] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	merged := &maxHeap{}
	for _, h := range partials {
		if h == nil {
			continue
		}
		for _, n := range *h {
			merged.offer(n, k)
		}
	}
	return splitNeighbors(merged.sorted())
}

func splitNeighbors(ns []neighbor) ([]value.TupleId, []float64, error) {
	ids := make([]value.TupleId, len(ns))
	dists := make([]float64, len(ns))
	for i, n := range ns {
		ids[i] = n.tid
		dists[i] = n.dist
	}
	return ids, dists, nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
