package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"hareql.dev/catalogue"
	"hareql.dev/index"
	"hareql.dev/value"
)

func TestImplementScanProducesEntityScanWithResolvedColumnNames(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	ctx := context.Background()

	p, err := implement(ctx, etx, &LogicalScan{Entity: f.entity, Columns: []int{0, 1}})
	require.NoError(t, err)
	require.Equal(t, OpEntityScan, p.Kind)
	require.Equal(t, []catalogue.ColumnName{"id", "body"}, p.Columns)
}

func TestImplementFilterFallsBackToLinearScanWithoutIndex(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	ctx := context.Background()

	filter := &LogicalFilter{
		Input:     &LogicalScan{Entity: f.entity},
		Predicate: value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(1)}},
	}
	p, err := implement(ctx, etx, filter)
	require.NoError(t, err)
	require.Equal(t, OpLinearScanFilter, p.Kind)
}

func TestImplementFilterPrefersIndexedFilterWhenIndexApplies(t *testing.T) {
	f := newTestFixture(t, sampleRows())

	createTx := f.cat.NewTx(catalogue.ReadWrite)
	ctx := context.Background()
	createEtx, err := f.entity.NewTx(ctx, createTx, catalogue.ExclusiveLock)
	require.NoError(t, err)
	require.NoError(t, createEtx.CreateIndex(ctx, "id_unique", index.TypeUniqueHash, "id", 0))
	require.NoError(t, createTx.Commit())

	etx := f.newReadTx(t)
	filter := &LogicalFilter{
		Input:     &LogicalScan{Entity: f.entity},
		Predicate: value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(1)}},
	}
	p, err := implement(ctx, etx, filter)
	require.NoError(t, err)
	require.Equal(t, OpIndexedFilter, p.Kind)
	require.NotNil(t, p.Index)
}

func TestImplementKnnFallsBackToFullscanWithoutVAFile(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	ctx := context.Background()

	knn := &LogicalKnn{
		Input: &LogicalScan{Entity: f.entity},
		Query: value.KnnQuery{Column: 2, K: 2, Queries: [][]float64{{0, 0}}, Distance: value.L2},
	}
	p, err := implement(ctx, etx, knn)
	require.NoError(t, err)
	require.Equal(t, OpKnnFullscan, p.Kind)
}

func TestImplementKnnPrefersIndexedWhenVAFilePresentAndClean(t *testing.T) {
	f := newTestFixture(t, sampleRows())

	createTx := f.cat.NewTx(catalogue.ReadWrite)
	ctx := context.Background()
	createEtx, err := f.entity.NewTx(ctx, createTx, catalogue.ExclusiveLock)
	require.NoError(t, err)
	require.NoError(t, createEtx.CreateIndex(ctx, "emb_va", index.TypeVAFile, "embedding", 2))
	require.NoError(t, createTx.Commit())

	etx := f.newReadTx(t)
	knn := &LogicalKnn{
		Input: &LogicalScan{Entity: f.entity},
		Query: value.KnnQuery{Column: 2, K: 2, Queries: [][]float64{{0, 0}}, Distance: value.L2},
	}
	p, err := implement(ctx, etx, knn)
	require.NoError(t, err)
	require.Equal(t, OpKnnIndexed, p.Kind)
	require.NotNil(t, p.VAIndex)
}

func TestImplementLimitFoldsIntoRangedEntityScanOverBareScan(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	ctx := context.Background()

	lim := &LogicalLimit{Input: &LogicalScan{Entity: f.entity}, Skip: 1, Limit: 2}
	p, err := implement(ctx, etx, lim)
	require.NoError(t, err)
	require.Equal(t, OpRangedEntityScan, p.Kind)
	require.Equal(t, value.TupleId(1), p.RangeStart)
	require.NotNil(t, p.RangeEnd)
	require.Equal(t, value.TupleId(3), *p.RangeEnd)
}

func TestImplementLimitWrapsNonScanChildInLimitOperator(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	ctx := context.Background()

	filter := &LogicalFilter{
		Input:     &LogicalScan{Entity: f.entity},
		Predicate: value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(1)}},
	}
	lim := &LogicalLimit{Input: filter, Skip: 0, Limit: 5}
	p, err := implement(ctx, etx, lim)
	require.NoError(t, err)
	require.Equal(t, OpLimit, p.Kind)
	require.Len(t, p.Children, 1)
}
