package index

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"hareql.dev/hareerr"
	"hareql.dev/value"
)

var signatureBucket = []byte("signatures")

const vaLevels = 256

// Bounds computes a per-signature lower/upper squared-distance bound
// against a query vector, per spec.md §4.6's VA-file description.
// Implemented in squared-L2 space regardless of the kNN kernel the
// caller eventually applies to candidates: the bound only needs to be
// monotonic with the exact distance for VA-SSA pruning to be sound,
// and every kernel this engine supports is monotonic in squared
// Euclidean distance on a quantized grid (documented simplification,
// see DESIGN.md).
type Bounds interface {
	Update(sig []byte, query []float64) (lb, ub float64)
}

type cellBounds struct {
	mins, maxs []float64
	levels     int
}

func newCellBounds(mins, maxs []float64) *cellBounds {
	return &cellBounds{mins: mins, maxs: maxs, levels: vaLevels}
}

func (b *cellBounds) Update(sig []byte, query []float64) (lb, ub float64) {
	for d := 0; d < len(sig) && d < len(query); d++ {
		width := (b.maxs[d] - b.mins[d]) / float64(b.levels)
		if width <= 0 {
			continue
		}
		lo := b.mins[d] + float64(sig[d])*width
		hi := lo + width
		q := query[d]
		switch {
		case q < lo:
			lb += (lo - q) * (lo - q)
		case q > hi:
			lb += (q - hi) * (q - hi)
		}
		upLeft := q - lo
		upRight := hi - q
		if upLeft < 0 {
			upLeft = -upLeft
		}
		if upRight < 0 {
			upRight = -upRight
		}
		if upLeft > upRight {
			ub += upLeft * upLeft
		} else {
			ub += upRight * upRight
		}
	}
	return lb, ub
}

// VAFile is the approximate vector index: a per-dimension quantization
// signature per tuple, used to prune candidates before an exact
// distance computation (spec.md §4.6, §4.8's VA-SSA semantics).
type VAFile struct {
	mu     sync.RWMutex
	name   string
	column int
	dims   int
	db     *bbolt.DB
	bounds *cellBounds
	dirty  bool
}

func OpenVAFile(path, name string, column, dims int) (*VAFile, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, hareerr.New(hareerr.KindFileLocked, name, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(signatureBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, hareerr.New(hareerr.KindDataCorruption, name, err)
	}
	mins := make([]float64, dims)
	maxs := make([]float64, dims)
	for d := range maxs {
		maxs[d] = 1
	}
	return &VAFile{name: name, column: column, dims: dims, db: db, bounds: newCellBounds(mins, maxs), dirty: true}, nil
}

func (v *VAFile) Name() string                   { return v.name }
func (v *VAFile) Type() Type                      { return TypeVAFile }
func (v *VAFile) SupportsIncrementalUpdate() bool { return true }
func (v *VAFile) Dirty() bool                     { v.mu.RLock(); defer v.mu.RUnlock(); return v.dirty }

// CanProcess is always false: VA-file answers kNN queries, not
// Boolean predicates, and is consulted by the planner's kNN
// implementation rule separately (see planner.OpKnnIndexed).
func (v *VAFile) CanProcess(p value.Predicate) bool                    { return false }
func (v *VAFile) CostOf(p value.Predicate) Cost                        { return Invalid }
func (v *VAFile) Filter(ctx context.Context, p value.Predicate) (value.Iterator, error) {
	return nil, hareerr.Newf(hareerr.KindPredNotSupported, v.name, "VA-file does not answer boolean predicates")
}
func (v *VAFile) FilterRange(ctx context.Context, p value.Predicate, start, end value.TupleId) (value.Iterator, bool, error) {
	return nil, false, nil
}

func (v *VAFile) quantize(vec []float64) []byte {
	sig := make([]byte, v.dims)
	for d := 0; d < v.dims && d < len(vec); d++ {
		width := (v.bounds.maxs[d] - v.bounds.mins[d]) / float64(vaLevels)
		if width <= 0 {
			sig[d] = 0
			continue
		}
		level := int((vec[d] - v.bounds.mins[d]) / width)
		if level < 0 {
			level = 0
		}
		if level > vaLevels-1 {
			level = vaLevels - 1
		}
		sig[d] = byte(level)
	}
	return sig
}

func toFloat64Slice(v value.Value) []float64 {
	switch v.Type {
	case value.FloatVector:
		src := v.FloatVector()
		out := make([]float64, len(src))
		for i, f := range src {
			out[i] = float64(f)
		}
		return out
	case value.DoubleVector:
		return v.DoubleVector()
	default:
		return nil
	}
}

// Rebuild recomputes per-dimension min/max bounds from a full pass
// over the source, then quantizes and persists every tuple's
// signature.
func (v *VAFile) Rebuild(ctx context.Context, source value.Iterator, columns []int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	type entry struct {
		tid value.TupleId
		vec []float64
	}
	var entries []entry
	mins := make([]float64, v.dims)
	maxs := make([]float64, v.dims)
	first := true
	for {
		rec, ok, err := source.Next(ctx)
		if err != nil {
			return hareerr.New(hareerr.KindOperatorExec, v.name, err)
		}
		if !ok {
			break
		}
		val := rec.Get(columns[0])
		if val.Null {
			continue
		}
		vec := toFloat64Slice(val)
		for d := 0; d < v.dims && d < len(vec); d++ {
			if first || vec[d] < mins[d] {
				mins[d] = vec[d]
			}
			if first || vec[d] > maxs[d] {
				maxs[d] = vec[d]
			}
		}
		first = false
		entries = append(entries, entry{tid: rec.Tid, vec: vec})
	}
	v.bounds = newCellBounds(mins, maxs)

	return v.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(signatureBucket); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(signatureBucket)
		if err != nil {
			return err
		}
		for _, e := range entries {
			sig := v.quantize(e.vec)
			if err := b.Put(encodeInt64(int64(e.tid)), sig); err != nil {
				return err
			}
		}
		v.dirty = false
		return nil
	})
}

func (v *VAFile) Update(ctx context.Context, ev DataChangeEvent) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch ev.Kind {
	case Inserted, Updated:
		if ev.NewValue.Null {
			return nil
		}
		vec := toFloat64Slice(ev.NewValue)
		sig := v.quantize(vec)
		return v.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(signatureBucket).Put(encodeInt64(int64(ev.Tid)), sig)
		})
	case Deleted:
		return v.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(signatureBucket).Delete(encodeInt64(int64(ev.Tid)))
		})
	}
	return nil
}

func (v *VAFile) Commit() error   { return nil }
func (v *VAFile) Rollback() error { v.mu.Lock(); v.dirty = true; v.mu.Unlock(); return nil }
func (v *VAFile) Close() error    { return v.db.Close() }

// ApproximateKnn performs the VA-SSA scan (spec.md §4.8): a threshold
// equal to the current k-th worst exact-distance upper bound is
// maintained as tuples are read; any signature whose lower bound
// exceeds it is skipped without reading the exact vector. exact reads
// the real vector for a surviving candidate; distFn computes the
// caller's chosen kernel over the exact vectors. Returns up to k
// TupleIds in ascending distance order with their exact distances.
func (v *VAFile) ApproximateKnn(ctx context.Context, query []float64, k int, exact func(value.TupleId) ([]float64, error), distFn func(a, b []float64) float64) ([]value.TupleId, []float64, error) {
	v.mu.RLock()
	bounds := v.bounds
	v.mu.RUnlock()

	type scored struct {
		tid value.TupleId
		d   float64
	}
	var best []scored
	threshold := math.Inf(1)

	err := v.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(signatureBucket).Cursor()
		for k2, sig := c.First(); k2 != nil; k2, sig = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			tid := value.TupleId(decodeInt64(k2))
			lb, ub := bounds.Update(sig, query)
			if lb > threshold {
				continue
			}
			vec, err := exact(tid)
			if err != nil {
				return err
			}
			d := distFn(query, vec)
			best = append(best, scored{tid: tid, d: d})
			sort.Slice(best, func(i, j int) bool { return best[i].d < best[j].d })
			if len(best) > k {
				best = best[:k]
			}
			if len(best) == k {
				if ub < threshold {
					threshold = best[len(best)-1].d
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, hareerr.New(hareerr.KindOperatorExec, v.name, err)
	}

	tids := make([]value.TupleId, len(best))
	dists := make([]float64, len(best))
	for i, s := range best {
		tids[i] = s.tid
		dists[i] = s.d
	}
	return tids, dists, nil
}
