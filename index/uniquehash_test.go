package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hareql.dev/hareerr"
	"hareql.dev/value"
)

func openTestUniqueHash(t *testing.T) *UniqueHash {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unique.db")
	u, err := OpenUniqueHash(path, "test_unique", 0, value.Int)
	require.NoError(t, err)
	t.Cleanup(func() { _ = u.Close() })
	return u
}

func TestUniqueHashRebuildThenFilterByEqual(t *testing.T) {
	u := openTestUniqueHash(t)
	ctx := context.Background()

	recs := []value.Record{
		value.NewRecord(10, []value.Value{value.OfInt(100)}),
		value.NewRecord(11, []value.Value{value.OfInt(200)}),
	}
	require.NoError(t, u.Rebuild(ctx, value.NewSliceIterator(recs), []int{0}))
	require.False(t, u.Dirty())

	pred := value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(200)}}
	require.True(t, u.CanProcess(pred))

	iter, err := u.Filter(ctx, pred)
	require.NoError(t, err)
	rec, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value.TupleId(11), rec.Tid)

	_, ok, err = iter.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUniqueHashFilterMissingKeyReturnsEmpty(t *testing.T) {
	u := openTestUniqueHash(t)
	ctx := context.Background()

	pred := value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(999)}}
	iter, err := u.Filter(ctx, pred)
	require.NoError(t, err)
	_, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUniqueHashUpdateRejectsDuplicateKey(t *testing.T) {
	u := openTestUniqueHash(t)
	ctx := context.Background()

	require.NoError(t, u.Update(ctx, DataChangeEvent{Kind: Inserted, Tid: 1, NewValue: value.OfInt(5)}))
	err := u.Update(ctx, DataChangeEvent{Kind: Inserted, Tid: 2, NewValue: value.OfInt(5)})
	require.Error(t, err)
	require.True(t, hareerr.Is(err, hareerr.KindTxValidation))
}

func TestUniqueHashUpdateKindReplacesMapping(t *testing.T) {
	u := openTestUniqueHash(t)
	ctx := context.Background()

	require.NoError(t, u.Update(ctx, DataChangeEvent{Kind: Inserted, Tid: 1, NewValue: value.OfInt(5)}))
	require.NoError(t, u.Update(ctx, DataChangeEvent{
		Kind: Updated, Tid: 1, OldValue: value.OfInt(5), NewValue: value.OfInt(6),
	}))

	oldPred := value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(5)}}
	iter, err := u.Filter(ctx, oldPred)
	require.NoError(t, err)
	_, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	newPred := value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(6)}}
	iter, err = u.Filter(ctx, newPred)
	require.NoError(t, err)
	rec, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value.TupleId(1), rec.Tid)
}

func TestUniqueHashUpdateDeletedRemovesMapping(t *testing.T) {
	u := openTestUniqueHash(t)
	ctx := context.Background()

	require.NoError(t, u.Update(ctx, DataChangeEvent{Kind: Inserted, Tid: 1, NewValue: value.OfInt(5)}))
	require.NoError(t, u.Update(ctx, DataChangeEvent{Kind: Deleted, Tid: 1, OldValue: value.OfInt(5)}))

	pred := value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfInt(5)}}
	iter, err := u.Filter(ctx, pred)
	require.NoError(t, err)
	_, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUniqueHashCanProcessRejectsOtherColumnsAndOps(t *testing.T) {
	u := openTestUniqueHash(t)
	require.False(t, u.CanProcess(value.Atomic{Column: 1, Op: value.Equal}))
	require.False(t, u.CanProcess(value.Atomic{Column: 0, Op: value.Greater}))
	require.True(t, u.CanProcess(value.Atomic{Column: 0, Op: value.In}))
}
