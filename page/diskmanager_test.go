package page

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectManagerAllocateReadUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "col.hare")

	dm, err := Create(path, DefaultOptions(FileTypeColumnFixed))
	require.NoError(t, err)

	id, err := dm.Allocate(nil)
	require.NoError(t, err)
	require.Equal(t, Id(2), id) // page 1 is the header

	var p Page
	p.PutLong(0, 42)
	require.NoError(t, dm.Update(id, &p))

	var got Page
	require.NoError(t, dm.Read(id, &got))
	require.Equal(t, int64(42), got.GetLong(0))

	require.NoError(t, dm.Commit())
	require.NoError(t, dm.Close())

	reopened, err := Open(path, DefaultOptions(FileTypeColumnFixed))
	require.NoError(t, err)
	defer reopened.Close()

	var reread Page
	require.NoError(t, reopened.Read(id, &reread))
	require.Equal(t, int64(42), reread.GetLong(0))
	require.NoError(t, reopened.Validate())
}

func TestDirectManagerFreelistReuse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "col.hare")
	dm, err := Create(path, DefaultOptions(FileTypeColumnFixed))
	require.NoError(t, err)
	defer dm.Close()

	a, err := dm.Allocate(nil)
	require.NoError(t, err)
	b, err := dm.Allocate(nil)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	require.NoError(t, dm.Free(a))
	c, err := dm.Allocate(nil)
	require.NoError(t, err)
	require.Equal(t, a, c, "Allocate should reuse the freed page id first")
}

func TestWALManagerCommitAndRecovery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "col.hare")

	wm, err := CreateWAL(path, DefaultOptions(FileTypeColumnFixed))
	require.NoError(t, err)

	id, err := wm.Allocate(nil)
	require.NoError(t, err)

	var p Page
	p.PutLong(0, 99)
	require.NoError(t, wm.Update(id, &p))
	require.NoError(t, wm.Commit())

	var got Page
	require.NoError(t, wm.Read(id, &got))
	require.Equal(t, int64(99), got.GetLong(0))

	require.NoError(t, wm.Checkpoint())
	require.NoError(t, wm.Close())

	reopened, err := OpenWAL(path, DefaultOptions(FileTypeColumnFixed))
	require.NoError(t, err)
	defer reopened.Close()

	var reread Page
	require.NoError(t, reopened.Read(id, &reread))
	require.Equal(t, int64(99), reread.GetLong(0))
}

func TestWALManagerRollbackTruncatesLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "col.hare")
	wm, err := CreateWAL(path, DefaultOptions(FileTypeColumnFixed))
	require.NoError(t, err)
	defer wm.Close()

	id, err := wm.Allocate(nil)
	require.NoError(t, err)
	require.NoError(t, wm.Commit())

	var p Page
	p.PutLong(0, 7)
	require.NoError(t, wm.Update(id, &p))
	require.NoError(t, wm.Rollback())

	var got Page
	require.NoError(t, wm.Read(id, &got))
	require.Equal(t, int64(0), got.GetLong(0), "rolled-back write must not be visible")
}
