package catalogue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hareql.dev/hareerr"
)

func TestTxMarkReadThenMarkDirtyTransitions(t *testing.T) {
	tx := newTx(NewLockManager(), ReadWrite, time.Second)
	require.Equal(t, StatusClean, tx.Status())

	require.NoError(t, tx.markRead())
	require.Equal(t, StatusRead, tx.Status())

	require.NoError(t, tx.markDirty())
	require.Equal(t, StatusDirty, tx.Status())
}

func TestTxMarkDirtyRejectsReadOnly(t *testing.T) {
	tx := newTx(NewLockManager(), ReadOnly, time.Second)
	err := tx.markDirty()
	require.Error(t, err)
	require.True(t, hareerr.Is(err, hareerr.KindTxReadOnly))
}

func TestTxCommitRunsPostCommitAndClosesOnce(t *testing.T) {
	tx := newTx(NewLockManager(), ReadWrite, time.Second)
	ran := false
	tx.AddPostCommit(func() { ran = true })
	tx.AddPostRollback(func() { t.Fatal("post-rollback should not run on commit") })

	require.NoError(t, tx.Commit())
	require.True(t, ran)
	require.Equal(t, StatusClosed, tx.Status())

	err := tx.Commit()
	require.Error(t, err)
}

func TestTxRollbackRunsPostRollbackInReverseOrder(t *testing.T) {
	tx := newTx(NewLockManager(), ReadWrite, time.Second)
	var order []int
	tx.AddPostRollback(func() { order = append(order, 1) })
	tx.AddPostRollback(func() { order = append(order, 2) })

	require.NoError(t, tx.Rollback())
	require.Equal(t, []int{2, 1}, order)
	require.Equal(t, StatusClosed, tx.Status())
}

func TestTxCancelTransitionsThroughErrorToClosed(t *testing.T) {
	tx := newTx(NewLockManager(), ReadWrite, time.Second)
	require.NoError(t, tx.Cancel())
	require.Equal(t, StatusClosed, tx.Status())
}

func TestLockManagerSharedLocksAreCompatible(t *testing.T) {
	lm := NewLockManager()
	txA := newTx(lm, ReadOnly, time.Second)
	txB := newTx(lm, ReadOnly, time.Second)
	obj := "entity"

	require.NoError(t, lm.RequestLock(context.Background(), obj, txA, SharedLock, time.Second))
	require.NoError(t, lm.RequestLock(context.Background(), obj, txB, SharedLock, time.Second))
}

func TestLockManagerExclusiveLockTimesOutAgainstSharedHolder(t *testing.T) {
	lm := NewLockManager()
	txA := newTx(lm, ReadOnly, time.Second)
	txB := newTx(lm, ReadWrite, time.Second)
	obj := "entity"

	require.NoError(t, lm.RequestLock(context.Background(), obj, txA, SharedLock, time.Second))
	err := lm.RequestLock(context.Background(), obj, txB, ExclusiveLock, 30*time.Millisecond)
	require.Error(t, err)
}

func TestLockManagerReleaseAllUnblocksWaiters(t *testing.T) {
	lm := NewLockManager()
	txA := newTx(lm, ReadOnly, time.Second)
	txB := newTx(lm, ReadWrite, time.Second)
	obj := "entity"

	require.NoError(t, lm.RequestLock(context.Background(), obj, txA, SharedLock, time.Second))
	lm.ReleaseAll(txA)

	require.NoError(t, lm.RequestLock(context.Background(), obj, txB, ExclusiveLock, time.Second))
}
