package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"hareql.dev/index"
	"hareql.dev/value"
)

func TestPlanAndSelectCachesIdenticalLogicalTrees(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	ctx := context.Background()
	pl := NewWithCacheSize(4)

	logical := &LogicalFilter{
		Input:     &LogicalScan{Entity: f.entity},
		Predicate: value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(1)}},
	}
	first, err := pl.PlanAndSelect(ctx, etx, logical, false)
	require.NoError(t, err)

	second, err := pl.PlanAndSelect(ctx, etx, logical, false)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestPlanAndSelectBypassCacheAlwaysReplans(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	ctx := context.Background()
	pl := NewWithCacheSize(4)

	logical := &LogicalFilter{
		Input:     &LogicalScan{Entity: f.entity},
		Predicate: value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(1)}},
	}
	first, err := pl.PlanAndSelect(ctx, etx, logical, true)
	require.NoError(t, err)
	second, err := pl.PlanAndSelect(ctx, etx, logical, true)
	require.NoError(t, err)
	require.NotSame(t, first, second)
}

func TestPlanAndSelectDistinguishesStructurallyDifferentTrees(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	ctx := context.Background()
	pl := New()

	byID := &LogicalFilter{
		Input:     &LogicalScan{Entity: f.entity},
		Predicate: value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(1)}},
	}
	byBody := &LogicalFilter{
		Input:     &LogicalScan{Entity: f.entity},
		Predicate: value.Atomic{Column: 1, Op: value.Equal, Values: []value.Value{value.OfString("x")}},
	}
	p1, err := pl.PlanAndSelect(ctx, etx, byID, false)
	require.NoError(t, err)
	p2, err := pl.PlanAndSelect(ctx, etx, byBody, false)
	require.NoError(t, err)
	require.NotEqual(t, p1.Predicate, p2.Predicate)
}

func TestPlanAndSelectKnnEndToEndPicksFullscanWithoutVAFile(t *testing.T) {
	f := newTestFixture(t, sampleRows())
	etx := f.newReadTx(t)
	ctx := context.Background()
	pl := New()

	logical := &LogicalKnn{
		Input: &LogicalScan{Entity: f.entity},
		Query: value.KnnQuery{Column: 2, K: 1, Queries: [][]float64{{0, 0}}, Distance: value.L2},
	}
	p, err := pl.PlanAndSelect(ctx, etx, logical, false)
	require.NoError(t, err)
	require.Equal(t, OpKnnFullscan, p.Kind)
	require.Greater(t, p.TotalCost(), 0.0)
}

func TestPhysicalTotalCostSumsAcrossChildren(t *testing.T) {
	leaf := &Physical{Kind: OpEntityScan, Cost: index.Cost{CPU: 1, IO: 2, Memory: 0.5}}
	parent := &Physical{Kind: OpLinearScanFilter, Cost: index.Cost{CPU: 1}, Children: []*Physical{leaf}}
	require.InDelta(t, leaf.Cost.Total()+parent.Cost.Total(), parent.TotalCost(), 1e-9)
}
