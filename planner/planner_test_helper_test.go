package planner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"hareql.dev/catalogue"
	"hareql.dev/value"
)

// testFixture opens a throwaway catalogue with one schema/entity
// ("docs") carrying an int "id" column, a string "body" column, and a
// double-vector "embedding" column, then inserts the given rows (as
// [id, body, embedding] triples) in a single committed transaction.
type testFixture struct {
	cat    *catalogue.Catalogue
	entity *catalogue.Entity
}

func newTestFixture(t *testing.T, rows [][]value.Value) *testFixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	log := logrus.NewEntry(logrus.New())

	cat, err := catalogue.Open(filepath.Join(dir, "cat"), catalogue.Config{}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	tx := cat.NewTx(catalogue.ReadWrite)
	catTx, err := cat.Tx(ctx, tx, catalogue.ExclusiveLock)
	require.NoError(t, err)
	schema, err := catTx.CreateSchema(ctx, catalogue.SchemaName("s"))
	require.NoError(t, err)
	schemaTx, err := schema.NewTx(ctx, tx, catalogue.ExclusiveLock)
	require.NoError(t, err)

	columns := []catalogue.ColumnDef{
		{Name: "id", Type: value.Int},
		{Name: "body", Type: value.String},
		{Name: "embedding", Type: value.DoubleVector, LogicalLen: 2},
	}
	entity, err := schemaTx.CreateEntity(ctx, catalogue.EntityName("docs"), columns)
	require.NoError(t, err)

	etx, err := entity.NewTx(ctx, tx, catalogue.ExclusiveLock)
	require.NoError(t, err)
	for _, row := range rows {
		_, err := etx.Insert(ctx, row)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	return &testFixture{cat: cat, entity: entity}
}

// newReadTx begins a fresh read-only transaction against the fixture's
// entity, for tests that plan and execute after the setup transaction
// has already committed.
func (f *testFixture) newReadTx(t *testing.T) *catalogue.EntityTx {
	t.Helper()
	ctx := context.Background()
	tx := f.cat.NewTx(catalogue.ReadOnly)
	etx, err := f.entity.NewTx(ctx, tx, catalogue.SharedLock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Commit() })
	return etx
}

func sampleRows() [][]value.Value {
	return [][]value.Value{
		{value.OfInt(1), value.OfString("red fox"), value.OfDoubleVector([]float64{0, 0})},
		{value.OfInt(2), value.OfString("blue whale"), value.OfDoubleVector([]float64{10, 10})},
		{value.OfInt(3), value.OfString("red whale"), value.OfDoubleVector([]float64{1, 1})},
	}
}
