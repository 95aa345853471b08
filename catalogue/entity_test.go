package catalogue

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"hareql.dev/index"
	"hareql.dev/value"
)

func openTestCatalogue(t *testing.T) *Catalogue {
	t.Helper()
	log := logrus.NewEntry(logrus.New())
	cat, err := Open(filepath.Join(t.TempDir(), "cat"), Config{}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func createTestEntity(t *testing.T, cat *Catalogue) *Entity {
	t.Helper()
	ctx := context.Background()
	tx := cat.NewTx(ReadWrite)
	catTx, err := cat.Tx(ctx, tx, ExclusiveLock)
	require.NoError(t, err)
	schema, err := catTx.CreateSchema(ctx, SchemaName("s"))
	require.NoError(t, err)
	schemaTx, err := schema.NewTx(ctx, tx, ExclusiveLock)
	require.NoError(t, err)
	entity, err := schemaTx.CreateEntity(ctx, EntityName("widgets"), []ColumnDef{
		{Name: "id", Type: value.Int},
		{Name: "label", Type: value.String},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return entity
}

func TestEntityInsertScanAndCount(t *testing.T) {
	cat := openTestCatalogue(t)
	entity := createTestEntity(t, cat)
	ctx := context.Background()

	tx := cat.NewTx(ReadWrite)
	etx, err := entity.NewTx(ctx, tx, ExclusiveLock)
	require.NoError(t, err)
	_, err = etx.Insert(ctx, []value.Value{value.OfInt(1), value.OfString("gizmo")})
	require.NoError(t, err)
	_, err = etx.Insert(ctx, []value.Value{value.OfInt(2), value.OfString("widget")})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx2 := cat.NewTx(ReadOnly)
	etx2, err := entity.NewTx(ctx, tx2, SharedLock)
	require.NoError(t, err)
	count, err := etx2.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	iter, err := etx2.Scan(ctx, nil, 0, nil)
	require.NoError(t, err)
	defer iter.Close()
	var labels []string
	for {
		rec, ok, err := iter.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		labels = append(labels, rec.Get(1).String())
	}
	require.ElementsMatch(t, []string{"gizmo", "widget"}, labels)
	require.NoError(t, tx2.Commit())
}

func TestEntityUpdateThenDelete(t *testing.T) {
	cat := openTestCatalogue(t)
	entity := createTestEntity(t, cat)
	ctx := context.Background()

	tx := cat.NewTx(ReadWrite)
	etx, err := entity.NewTx(ctx, tx, ExclusiveLock)
	require.NoError(t, err)
	tid, err := etx.Insert(ctx, []value.Value{value.OfInt(1), value.OfString("gizmo")})
	require.NoError(t, err)
	require.NoError(t, etx.Update(ctx, tid, []value.Value{value.OfInt(1), value.OfString("renamed")}))
	require.NoError(t, tx.Commit())

	tx2 := cat.NewTx(ReadWrite)
	etx2, err := entity.NewTx(ctx, tx2, ExclusiveLock)
	require.NoError(t, err)
	rec, err := etx2.FetchColumns(ctx, []value.TupleId{tid}, nil)
	require.NoError(t, err)
	got, ok, err := rec.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "renamed", got.Get(1).String())

	require.NoError(t, etx2.Delete(ctx, tid))
	require.NoError(t, tx2.Commit())

	tx3 := cat.NewTx(ReadOnly)
	etx3, err := entity.NewTx(ctx, tx3, SharedLock)
	require.NoError(t, err)
	count, err := etx3.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
	require.NoError(t, tx3.Commit())
}

func TestEntityCreateIndexThenFilter(t *testing.T) {
	cat := openTestCatalogue(t)
	entity := createTestEntity(t, cat)
	ctx := context.Background()

	tx := cat.NewTx(ReadWrite)
	etx, err := entity.NewTx(ctx, tx, ExclusiveLock)
	require.NoError(t, err)
	_, err = etx.Insert(ctx, []value.Value{value.OfInt(10), value.OfString("a")})
	require.NoError(t, err)
	_, err = etx.Insert(ctx, []value.Value{value.OfInt(20), value.OfString("b")})
	require.NoError(t, err)
	require.NoError(t, etx.CreateIndex(ctx, "id_unique", index.TypeUniqueHash, "id", 0))
	require.NoError(t, tx.Commit())

	tx2 := cat.NewTx(ReadOnly)
	etx2, err := entity.NewTx(ctx, tx2, SharedLock)
	require.NoError(t, err)
	pred := value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(20)}}
	idx, ok := etx2.IndexForPredicate(pred)
	require.True(t, ok)
	iter, err := idx.Filter(ctx, pred)
	require.NoError(t, err)
	rec, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value.TupleId(1), rec.Tid)
	require.NoError(t, tx2.Commit())
}
