package column

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hareql.dev/page"
	"hareql.dev/value"
)

func TestVariableFileAppendGetPutDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "label.hare")

	vf, err := CreateVariable(path, page.DefaultOptions(page.FileTypeColumnVariable), value.String, true, 8, nil)
	require.NoError(t, err)

	tid0, err := vf.Append(ctx, value.OfString("alpha"))
	require.NoError(t, err)
	tid1, err := vf.Append(ctx, value.OfString("beta"))
	require.NoError(t, err)
	tidNull, err := vf.Append(ctx, value.NullOf(value.String))
	require.NoError(t, err)

	v, ok, err := vf.Get(ctx, tid0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alpha", v.Str())

	nv, ok, err := vf.Get(ctx, tidNull)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, nv.Null)

	require.NoError(t, vf.Put(ctx, tid0, value.OfString("alpha-updated-and-longer")))
	v2, ok, err := vf.Get(ctx, tid0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alpha-updated-and-longer", v2.Str())

	require.NoError(t, vf.Delete(ctx, tid1))
	_, ok, err = vf.Get(ctx, tid1)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, vf.Close())

	reopened, err := OpenVariable(path, page.DefaultOptions(page.FileTypeColumnVariable), 8, nil)
	require.NoError(t, err)
	defer reopened.Close()

	v3, ok, err := reopened.Get(ctx, tid0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alpha-updated-and-longer", v3.Str())
}

func TestVariableFileManyTuplesSpanDirectoryPages(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "label.hare")
	vf, err := CreateVariable(path, page.DefaultOptions(page.FileTypeColumnVariable), value.String, false, 8, nil)
	require.NoError(t, err)
	defer vf.Close()

	const n = 1000
	for i := 0; i < n; i++ {
		tid, err := vf.Append(ctx, value.OfString(fmt.Sprintf("row-%d", i)))
		require.NoError(t, err)
		require.Equal(t, value.TupleId(i), tid)
	}
	require.Greater(t, len(vf.dirBounds), 1, "1000 tuples should span more than one directory page")

	for i := 0; i < n; i += 137 {
		v, ok, err := vf.Get(ctx, value.TupleId(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("row-%d", i), v.Str())
	}
}

func TestVariableFileCursorSkipsDeleted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "label.hare")
	vf, err := CreateVariable(path, page.DefaultOptions(page.FileTypeColumnVariable), value.String, false, 8, nil)
	require.NoError(t, err)
	defer vf.Close()

	for i := 0; i < 4; i++ {
		_, err := vf.Append(ctx, value.OfString(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, vf.Delete(ctx, 1))

	cur, err := vf.NewCursor(0, nil)
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
	require.Equal(t, []value.TupleId{0, 2, 3}, seen)
}
