package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hareql.dev/catalogue"
	"hareql.dev/query"
	"hareql.dev/value"
)

func TestPushdownProjectionNarrowsScanToTouchedColumns(t *testing.T) {
	entity := &catalogue.Entity{}
	scan := &LogicalScan{Entity: entity}
	filter := &LogicalFilter{
		Input:     scan,
		Predicate: value.Atomic{Column: 2, Op: value.Equal, Values: []value.Value{value.OfInt(1)}},
	}
	proj := &LogicalProjection{Input: filter, Op: query.Select, Columns: []int{0}}

	pushdownProjection(proj)
	require.ElementsMatch(t, []int{0, 2}, scan.Columns)
}

func TestPushdownProjectionDoesNotOverwriteExplicitScanColumns(t *testing.T) {
	scan := &LogicalScan{Columns: []int{5}}
	proj := &LogicalProjection{Input: scan, Op: query.Select, Columns: []int{0}}

	pushdownProjection(proj)
	require.Equal(t, []int{5}, scan.Columns)
}

func TestFoldRedundantCompoundsCollapsesIdenticalSides(t *testing.T) {
	atomic := value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(1)}}
	compound := value.Compound{Connector: value.And, Left: atomic, Right: atomic}
	filter := &LogicalFilter{Predicate: compound}

	foldRedundantCompounds(filter)
	_, stillCompound := filter.Predicate.(value.Compound)
	require.False(t, stillCompound)
	require.Equal(t, atomic, filter.Predicate)
}

func TestFoldRedundantCompoundsLeavesDistinctSidesAlone(t *testing.T) {
	left := value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(1)}}
	right := value.Atomic{Column: 1, Op: value.Equal, Values: []value.Value{value.OfInt(2)}}
	compound := value.Compound{Connector: value.Or, Left: left, Right: right}
	filter := &LogicalFilter{Predicate: compound}

	foldRedundantCompounds(filter)
	got, ok := filter.Predicate.(value.Compound)
	require.True(t, ok)
	require.Equal(t, left, got.Left)
	require.Equal(t, right, got.Right)
}

func TestPushdownLimitMovesIntoScanThroughSelectProjection(t *testing.T) {
	scan := &LogicalScan{}
	proj := &LogicalProjection{Input: scan, Op: query.Select}
	lim := &LogicalLimit{Input: proj, Skip: 2, Limit: 10}

	pushdownLimit(lim)

	inner, ok := proj.Input.(*LogicalLimit)
	require.True(t, ok)
	require.Equal(t, int64(2), inner.Skip)
	require.Equal(t, int64(10), inner.Limit)
	require.Equal(t, int64(0), lim.Skip)
	require.Equal(t, int64(-1), lim.Limit)
}

func TestPushdownLimitDoesNotCrossFilter(t *testing.T) {
	scan := &LogicalScan{}
	filter := &LogicalFilter{Input: scan, Predicate: value.Atomic{Column: 0, Op: value.Equal}}
	proj := &LogicalProjection{Input: filter, Op: query.Select}
	lim := &LogicalLimit{Input: proj, Skip: 0, Limit: 5}

	pushdownLimit(lim)

	_, stillLimit := proj.Input.(*LogicalFilter)
	require.True(t, stillLimit)
	require.Equal(t, int64(5), lim.Limit)
}

func TestPushdownLimitDoesNotCrossNonSelectProjection(t *testing.T) {
	scan := &LogicalScan{}
	proj := &LogicalProjection{Input: scan, Op: query.Count}
	lim := &LogicalLimit{Input: proj, Skip: 0, Limit: 5}

	pushdownLimit(lim)

	_, stillScan := proj.Input.(*LogicalScan)
	require.True(t, stillScan)
	require.Equal(t, int64(5), lim.Limit)
}

func TestRewriteStage1AppliesAllThreePasses(t *testing.T) {
	scan := &LogicalScan{}
	proj := &LogicalProjection{Input: scan, Op: query.Select, Columns: []int{1}}
	lim := &LogicalLimit{Input: proj, Skip: 0, Limit: 3}

	out := RewriteStage1(lim)

	outLim, ok := out.(*LogicalLimit)
	require.True(t, ok)
	outProj, ok := outLim.Input.(*LogicalProjection)
	require.True(t, ok)
	innerLim, ok := outProj.Input.(*LogicalLimit)
	require.True(t, ok)
	require.Equal(t, []int{1}, scan.Columns)
	require.Equal(t, int64(3), innerLim.Limit)
}
