package index

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hareql.dev/value"
)

func openTestVAFile(t *testing.T, dims int) *VAFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vafile.db")
	v, err := OpenVAFile(path, "test_vec", 0, dims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func l2(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func TestQuantizeClampsOutOfRangeValues(t *testing.T) {
	v := openTestVAFile(t, 2)
	v.bounds = newCellBounds([]float64{0, 0}, []float64{10, 10})

	sig := v.quantize([]float64{-5, 50})
	require.Equal(t, byte(0), sig[0])
	require.Equal(t, byte(vaLevels-1), sig[1])
}

func TestCellBoundsUpdateZeroWhenQueryInsideCell(t *testing.T) {
	b := newCellBounds([]float64{0}, []float64{256})
	sig := []byte{10}
	lb, ub := b.Update(sig, []float64{10.5})
	require.Zero(t, lb)
	require.Greater(t, ub, 0.0)
}

func TestCellBoundsUpdateLowerBoundPositiveWhenQueryOutsideCell(t *testing.T) {
	b := newCellBounds([]float64{0}, []float64{256})
	sig := []byte{10}
	lb, _ := b.Update(sig, []float64{500})
	require.Greater(t, lb, 0.0)
}

func vecRecords() []value.Record {
	return []value.Record{
		value.NewRecord(1, []value.Value{value.OfDoubleVector([]float64{0, 0})}),
		value.NewRecord(2, []value.Value{value.OfDoubleVector([]float64{10, 10})}),
		value.NewRecord(3, []value.Value{value.OfDoubleVector([]float64{1, 1})}),
		value.NewRecord(4, []value.Value{value.OfDoubleVector([]float64{20, 20})}),
	}
}

func TestVAFileRebuildThenApproximateKnnReturnsAscendingNearest(t *testing.T) {
	v := openTestVAFile(t, 2)
	ctx := context.Background()
	recs := vecRecords()
	require.NoError(t, v.Rebuild(ctx, value.NewSliceIterator(recs), []int{0}))
	require.False(t, v.Dirty())

	exact := func(tid value.TupleId) ([]float64, error) {
		for _, r := range recs {
			if r.Tid == tid {
				return toFloat64Slice(r.Get(0)), nil
			}
		}
		return nil, nil
	}

	tids, dists, err := v.ApproximateKnn(ctx, []float64{0, 0}, 2, exact, l2)
	require.NoError(t, err)
	require.Equal(t, []value.TupleId{1, 3}, tids)
	require.Len(t, dists, 2)
	require.True(t, dists[0] <= dists[1])
}

func TestVAFileUpdateInsertedIsVisibleToApproximateKnn(t *testing.T) {
	v := openTestVAFile(t, 2)
	ctx := context.Background()
	recs := vecRecords()
	require.NoError(t, v.Rebuild(ctx, value.NewSliceIterator(recs), []int{0}))

	newVec := value.OfDoubleVector([]float64{0.5, 0.5})
	require.NoError(t, v.Update(ctx, DataChangeEvent{Kind: Inserted, Tid: 5, NewValue: newVec}))

	vectors := map[value.TupleId][]float64{1: {0, 0}, 2: {10, 10}, 3: {1, 1}, 4: {20, 20}, 5: {0.5, 0.5}}
	exact := func(tid value.TupleId) ([]float64, error) { return vectors[tid], nil }

	tids, _, err := v.ApproximateKnn(ctx, []float64{0.5, 0.5}, 1, exact, l2)
	require.NoError(t, err)
	require.Equal(t, []value.TupleId{5}, tids)
}

func TestVAFileUpdateDeletedRemovesCandidate(t *testing.T) {
	v := openTestVAFile(t, 2)
	ctx := context.Background()
	recs := vecRecords()
	require.NoError(t, v.Rebuild(ctx, value.NewSliceIterator(recs), []int{0}))

	require.NoError(t, v.Update(ctx, DataChangeEvent{Kind: Deleted, Tid: 1}))

	vectors := map[value.TupleId][]float64{2: {10, 10}, 3: {1, 1}, 4: {20, 20}}
	exact := func(tid value.TupleId) ([]float64, error) { return vectors[tid], nil }

	tids, _, err := v.ApproximateKnn(ctx, []float64{0, 0}, 1, exact, l2)
	require.NoError(t, err)
	require.Equal(t, []value.TupleId{3}, tids)
}

func TestVAFileCanProcessIsAlwaysFalse(t *testing.T) {
	v := openTestVAFile(t, 2)
	require.False(t, v.CanProcess(value.Atomic{Column: 0, Op: value.Equal}))
}
