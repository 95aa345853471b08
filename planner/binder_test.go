package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hareql.dev/hareerr"
	"hareql.dev/query"
	"hareql.dev/value"
)

func TestBindPlainScanWithWhereProducesFilterOverScan(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	b := NewBinder(etx)

	q := query.Query{
		From:  query.From{Entity: "docs"},
		Where: query.Atomic{Column: "id", Op: value.Equal, Values: []value.Value{value.OfInt(2)}},
	}
	logical, err := b.Bind(q)
	require.NoError(t, err)

	filter, ok := logical.(*LogicalFilter)
	require.True(t, ok)
	_, ok = filter.Input.(*LogicalScan)
	require.True(t, ok)
	atomic, ok := filter.Predicate.(value.Atomic)
	require.True(t, ok)
	require.Equal(t, 0, atomic.Column) // "id" is the first column
}

func TestBindUnknownColumnReturnsQueryBindError(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	b := NewBinder(etx)

	q := query.Query{
		From:  query.From{Entity: "docs"},
		Where: query.Atomic{Column: "nope", Op: value.Equal, Values: []value.Value{value.OfInt(1)}},
	}
	_, err := b.Bind(q)
	require.Error(t, err)
	require.True(t, hareerr.Is(err, hareerr.KindQueryBind))
}

func TestBindKnnFusesWherePredicateAsPrefilter(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	b := NewBinder(etx)

	q := query.Query{
		From:  query.From{Entity: "docs"},
		Where: query.Atomic{Column: "body", Op: value.Match, Values: []value.Value{value.OfString("red")}},
		Knn: &query.KnnPredicate{
			Column:   "embedding",
			K:        2,
			Queries:  [][]float64{{0, 0}},
			Distance: value.L2,
		},
	}
	logical, err := b.Bind(q)
	require.NoError(t, err)

	knn, ok := logical.(*LogicalKnn)
	require.True(t, ok)
	require.NotNil(t, knn.Prefilter)
	require.Equal(t, 2, knn.Query.Column) // "embedding" is the third column
	_, ok = knn.Input.(*LogicalScan)
	require.True(t, ok)
}

func TestBindSampleSourceProducesLogicalSample(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	b := NewBinder(etx)

	q := query.Query{From: query.From{Sample: &query.Sample{Entity: "docs", Size: 10, Seed: 7}}}
	logical, err := b.Bind(q)
	require.NoError(t, err)

	sample, ok := logical.(*LogicalSample)
	require.True(t, ok)
	require.Equal(t, 10, sample.Size)
	require.Equal(t, int64(7), sample.Seed)
}

func TestBindProjectionAndLimitWrapInput(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	b := NewBinder(etx)

	limit := int64(5)
	skip := int64(1)
	q := query.Query{
		From:       query.From{Entity: "docs"},
		Projection: &query.Projection{Op: query.Select, Columns: []query.Column{{Name: "id"}, {Name: "body"}}},
		Limit:      &limit,
		Skip:       &skip,
	}
	logical, err := b.Bind(q)
	require.NoError(t, err)

	lim, ok := logical.(*LogicalLimit)
	require.True(t, ok)
	require.Equal(t, int64(5), lim.Limit)
	require.Equal(t, int64(1), lim.Skip)
	proj, ok := lim.Input.(*LogicalProjection)
	require.True(t, ok)
	require.Equal(t, []int{0, 1}, proj.Columns)
}

func TestBindUnknownProjectionColumnReturnsQueryBindError(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	b := NewBinder(etx)

	q := query.Query{
		From:       query.From{Entity: "docs"},
		Projection: &query.Projection{Op: query.Select, Columns: []query.Column{{Name: "missing"}}},
	}
	_, err := b.Bind(q)
	require.Error(t, err)
	require.True(t, hareerr.Is(err, hareerr.KindQueryBind))
}
