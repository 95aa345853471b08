package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"hareql.dev/value"
)

func recordsWithVectors(vecs ...[]float64) []value.Record {
	out := make([]value.Record, len(vecs))
	for i, v := range vecs {
		out[i] = value.NewRecord(value.TupleId(i), []value.Value{value.OfDoubleVector(v)})
	}
	return out
}

func TestBruteForceKnnQueryReturnsClosestFirst(t *testing.T) {
	recs := recordsWithVectors(
		[]float64{10, 10},
		[]float64{0, 0},
		[]float64{1, 1},
		[]float64{5, 5},
	)
	src := value.NewSliceIterator(recs)

	ids, dists, err := BruteForceKnnQuery(context.Background(), src, 0, []float64{0, 0}, nil, value.L2, 2, nil)
	require.NoError(t, err)
	require.Equal(t, []value.TupleId{1, 2}, ids)
	require.Len(t, dists, 2)
	require.Less(t, dists[0], dists[1])
}

func TestBruteForceKnnQueryTiebreaksAscendingTupleId(t *testing.T) {
	recs := recordsWithVectors(
		[]float64{1, 0},
		[]float64{0, 1},
		[]float64{1, 0},
	)
	src := value.NewSliceIterator(recs)

	ids, _, err := BruteForceKnnQuery(context.Background(), src, 0, []float64{0, 0}, nil, value.L2Squared, 2, nil)
	require.NoError(t, err)
	require.Equal(t, []value.TupleId{0, 1}, ids)
}

func TestBruteForceKnnQueryHonorsPrefilter(t *testing.T) {
	recs := recordsWithVectors(
		[]float64{0, 0},
		[]float64{1, 1},
		[]float64{2, 2},
	)
	src := value.NewSliceIterator(recs)

	onlyOdd := func(rec value.Record) bool { return rec.Tid%2 == 1 }
	ids, _, err := BruteForceKnnQuery(context.Background(), src, 0, []float64{0, 0}, nil, value.L2, 2, onlyOdd)
	require.NoError(t, err)
	require.Equal(t, []value.TupleId{1}, ids)
}

func TestMaxHeapOfferBoundsToK(t *testing.T) {
	h := &maxHeap{}
	for i := 0; i < 10; i++ {
		h.offer(neighbor{tid: value.TupleId(i), dist: float64(i)}, 3)
	}
	require.Len(t, *h, 3)
	sorted := h.sorted()
	require.Equal(t, []value.TupleId{0, 1, 2}, []value.TupleId{sorted[0].tid, sorted[1].tid, sorted[2].tid})
}
