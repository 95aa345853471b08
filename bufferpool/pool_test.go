package bufferpool

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hareql.dev/page"
)

func newTestPool(t *testing.T, capacity int) (*Pool, page.DiskManager, []page.Id) {
	t.Helper()
	dir := t.TempDir()
	dm, err := page.Create(filepath.Join(dir, "t.hare"), page.DefaultOptions(page.FileTypeColumnFixed))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })

	ids := make([]page.Id, 0, capacity+2)
	for i := 0; i < capacity+2; i++ {
		id, err := dm.Allocate(nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, dm.Commit())
	return New(dm, capacity, nil), dm, ids
}

func TestPoolGetReleaseRoundTrip(t *testing.T) {
	pool, _, ids := newTestPool(t, 4)
	ctx := context.Background()

	ref, err := pool.Get(ctx, ids[0], PriorityNormal)
	require.NoError(t, err)
	ref.Page().PutLong(0, 123)
	ref.MarkDirty()
	pool.Release(ref)

	require.NoError(t, pool.Flush())

	ref2, err := pool.Get(ctx, ids[0], PriorityNormal)
	require.NoError(t, err)
	require.Equal(t, int64(123), ref2.Page().GetLong(0))
	pool.Release(ref2)
}

func TestPoolEvictsWhenFull(t *testing.T) {
	pool, _, ids := newTestPool(t, 2)
	ctx := context.Background()

	r0, err := pool.Get(ctx, ids[0], PriorityNormal)
	require.NoError(t, err)
	r0.Page().PutLong(0, 1)
	r0.MarkDirty()
	pool.Release(r0)

	r1, err := pool.Get(ctx, ids[1], PriorityNormal)
	require.NoError(t, err)
	pool.Release(r1)

	// Pool is now at capacity (2 resident, both unpinned). A third Get
	// must evict one of them rather than block forever.
	r2, err := pool.Get(ctx, ids[2], PriorityNormal)
	require.NoError(t, err)
	pool.Release(r2)

	require.Equal(t, 2, pool.Resident())
}

func TestPoolPinPreventsEviction(t *testing.T) {
	pool, _, ids := newTestPool(t, 1)
	ctx := context.Background()

	ref, err := pool.Get(ctx, ids[0], PriorityNormal)
	require.NoError(t, err)

	pollCtx, cancel := context.WithTimeout(ctx, 0)
	defer cancel()
	_, err = pool.Get(pollCtx, ids[1], PriorityNormal)
	require.Error(t, err, "a pinned-and-only frame must not be evictable")

	pool.Release(ref)
}
