package column

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hareql.dev/page"
	"hareql.dev/value"
)

func TestFixedFileAppendGetPutDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "feature.hare")

	f, err := CreateFixed(path, page.DefaultOptions(page.FileTypeColumnFixed), value.Int, 0, true, 8, nil)
	require.NoError(t, err)

	tid0, err := f.Append(ctx, value.OfInt(10))
	require.NoError(t, err)
	tid1, err := f.Append(ctx, value.OfInt(20))
	require.NoError(t, err)
	tidNull, err := f.Append(ctx, value.NullOf(value.Int))
	require.NoError(t, err)

	require.Equal(t, value.TupleId(0), tid0)
	require.Equal(t, value.TupleId(1), tid1)
	require.Equal(t, value.TupleId(2), tidNull)
	require.EqualValues(t, 3, f.Count())

	v, ok, err := f.Get(ctx, tid0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(10), v.Int())

	nv, ok, err := f.Get(ctx, tidNull)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, nv.Null)

	require.NoError(t, f.Put(ctx, tid0, value.OfInt(99)))
	v2, _, err := f.Get(ctx, tid0)
	require.NoError(t, err)
	require.Equal(t, int32(99), v2.Int())

	require.NoError(t, f.Delete(ctx, tid1))
	_, ok, err = f.Get(ctx, tid1)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, f.Close())

	reopened, err := OpenFixed(path, page.DefaultOptions(page.FileTypeColumnFixed), 8, nil)
	require.NoError(t, err)
	defer reopened.Close()

	v3, ok, err := reopened.Get(ctx, tid0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(99), v3.Int())

	_, ok, err = reopened.Get(ctx, tid1)
	require.NoError(t, err)
	require.False(t, ok)
	require.EqualValues(t, 2, reopened.Count())
}

func TestFixedFileCursorSkipsDeleted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "feature.hare")
	f, err := CreateFixed(path, page.DefaultOptions(page.FileTypeColumnFixed), value.Int, 0, false, 8, nil)
	require.NoError(t, err)
	defer f.Close()

	for i := int32(0); i < 5; i++ {
		_, err := f.Append(ctx, value.OfInt(i))
		require.NoError(t, err)
	}
	require.NoError(t, f.Delete(ctx, 2))

	cur, err := f.NewCursor(0, nil)
	require.NoError(t, err)
	var seen []value.TupleId
	for {
		has, err := cur.HasNext(ctx)
		require.NoError(t, err)
		if !has {
			break
		}
		seen = append(seen, cur.Next())
	}
	require.Equal(t, []value.TupleId{0, 1, 3, 4}, seen)
}

func TestFixedFileVectorRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "embedding.hare")
	f, err := CreateFixed(path, page.DefaultOptions(page.FileTypeColumnFixed), value.FloatVector, 4, false, 8, nil)
	require.NoError(t, err)
	defer f.Close()

	vec := []float32{1, 2, 3, 4}
	tid, err := f.Append(ctx, value.OfFloatVector(vec))
	require.NoError(t, err)

	got, ok, err := f.Get(ctx, tid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, vec, got.FloatVector())
}
