package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hareql.dev/query"
	"hareql.dev/value"
)

func TestSplitFqEntitySplitsOnFirstDot(t *testing.T) {
	schema, entity, ok := splitFqEntity("shop.products")
	require.True(t, ok)
	require.Equal(t, "shop", schema)
	require.Equal(t, "products", entity)
}

func TestSplitFqEntityRejectsMissingOrTrailingDot(t *testing.T) {
	_, _, ok := splitFqEntity("noDotHere")
	require.False(t, ok)
	_, _, ok = splitFqEntity("trailing.")
	require.False(t, ok)
}

func TestDecodeQueryFileBuildsAtomicWhereQuery(t *testing.T) {
	data := []byte(`{
		"entity": "docs",
		"where": {"kind": "atomic", "column": "id", "op": "eq", "values": [2]}
	}`)
	q, err := decodeQueryFile(data)
	require.NoError(t, err)
	require.Equal(t, "docs", q.From.Entity)

	atomic, ok := q.Where.(query.Atomic)
	require.True(t, ok)
	require.Equal(t, "id", atomic.Column)
	require.Equal(t, value.Equal, atomic.Op)
	require.Equal(t, value.OfDouble(2), atomic.Values[0])
}

func TestDecodeQueryFileBuildsCompoundPredicate(t *testing.T) {
	data := []byte(`{
		"entity": "docs",
		"where": {
			"kind": "and",
			"left": {"kind": "atomic", "column": "a", "op": "eq", "values": [1]},
			"right": {"kind": "atomic", "column": "b", "op": "neq", "values": ["x"]}
		}
	}`)
	q, err := decodeQueryFile(data)
	require.NoError(t, err)

	compound, ok := q.Where.(query.Compound)
	require.True(t, ok)
	require.Equal(t, value.And, compound.Connector)
	left, ok := compound.Left.(query.Atomic)
	require.True(t, ok)
	require.Equal(t, "a", left.Column)
}

func TestDecodeQueryFileBuildsKnnPredicate(t *testing.T) {
	data := []byte(`{
		"entity": "docs",
		"knn": {"column": "embedding", "k": 5, "queries": [[0.1, 0.2]], "distance": "cosine"}
	}`)
	q, err := decodeQueryFile(data)
	require.NoError(t, err)
	require.NotNil(t, q.Knn)
	require.Equal(t, "embedding", q.Knn.Column)
	require.Equal(t, 5, q.Knn.K)
	require.Equal(t, value.Cosine, q.Knn.Distance)
}

func TestDecodeQueryFileRejectsUnknownDistance(t *testing.T) {
	data := []byte(`{"entity": "docs", "knn": {"column": "embedding", "k": 1, "distance": "bogus"}}`)
	_, err := decodeQueryFile(data)
	require.Error(t, err)
}

func TestDecodeQueryFileBuildsProjectionAndLimit(t *testing.T) {
	data := []byte(`{
		"entity": "docs",
		"projection": {"op": "select", "columns": [{"name": "id"}, {"name": "body", "alias": "text"}]},
		"limit": 10,
		"skip": 2
	}`)
	q, err := decodeQueryFile(data)
	require.NoError(t, err)
	require.NotNil(t, q.Projection)
	require.Equal(t, query.Select, q.Projection.Op)
	require.Equal(t, "text", q.Projection.Columns[1].Alias)
	require.Equal(t, int64(10), *q.Limit)
	require.Equal(t, int64(2), *q.Skip)
}

func TestDecodeQueryFileRejectsMalformedJSON(t *testing.T) {
	_, err := decodeQueryFile([]byte(`{not json`))
	require.Error(t, err)
}

func TestScalarToValueWidensJSONScalars(t *testing.T) {
	require.Equal(t, value.OfString("hi"), scalarToValue("hi"))
	require.Equal(t, value.OfDouble(3.5), scalarToValue(3.5))
	require.Equal(t, value.OfBool(true), scalarToValue(true))
	require.True(t, scalarToValue(nil).Null)
}
