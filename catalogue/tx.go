package catalogue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"hareql.dev/hareerr"
)

// TransactionId is a monotonically-increasing identifier assigned at
// Tx creation, per spec.md §4.5.
type TransactionId int64

var nextTxId atomic.Int64

// TxMode is whether a Tx may mutate entity data/structure.
type TxMode int

const (
	ReadOnly TxMode = iota
	ReadWrite
)

// Status is the Tx state machine from spec.md §4.5:
//
//	CLEAN → READ → DIRTY → COMMIT → CLOSED
//	   ↘                 ↘ ERROR ↗
//	     ↘ ROLLBACK ──────────────↗
type Status int

const (
	StatusClean Status = iota
	StatusRead
	StatusDirty
	StatusCommit
	StatusRollback
	StatusError
	StatusClosed
)

// Tx is the transaction handle threaded through every DBO's newTx
// call. Every structural mutation registers a forward action and its
// reverse on the same Tx, so a partial failure anywhere still leaves
// the catalogue consistent once the outer Tx resolves (spec.md §4.4).
type Tx struct {
	mu           sync.Mutex
	id           TransactionId
	correlation  string
	mode         TxMode
	status       Status
	locks        *LockManager
	lockDeadline time.Duration
	postCommit   []func()
	postRollback []func()
	err          error
}

func newTx(locks *LockManager, mode TxMode, lockDeadline time.Duration) *Tx {
	return &Tx{
		id:           TransactionId(nextTxId.Add(1)),
		correlation:  uuid.NewString(),
		mode:         mode,
		status:       StatusClean,
		locks:        locks,
		lockDeadline: lockDeadline,
	}
}

func (tx *Tx) ID() TransactionId   { return tx.id }
func (tx *Tx) Mode() TxMode        { return tx.mode }
func (tx *Tx) Correlation() string { return tx.correlation }

func (tx *Tx) Status() Status {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.status
}

// markRead transitions CLEAN → READ on first read; idempotent for any
// status that already permits reading.
func (tx *Tx) markRead() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	switch tx.status {
	case StatusClean:
		tx.status = StatusRead
	case StatusRead, StatusDirty:
		// already readable
	case StatusClosed:
		return hareerr.Newf(hareerr.KindTxClosed, "", "transaction %d is closed", tx.id)
	case StatusError:
		return hareerr.Newf(hareerr.KindTxInError, "", "transaction %d is in error", tx.id)
	default:
		return hareerr.Newf(hareerr.KindTxClosed, "", "transaction %d cannot read in status %v", tx.id, tx.status)
	}
	return nil
}

// markDirty transitions READ/CLEAN → DIRTY on first write. Callers
// must already hold the write lock they need before calling this.
func (tx *Tx) markDirty() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.mode == ReadOnly {
		return hareerr.Newf(hareerr.KindTxReadOnly, "", "transaction %d is read-only", tx.id)
	}
	switch tx.status {
	case StatusClean, StatusRead:
		tx.status = StatusDirty
	case StatusDirty:
		// already dirty
	case StatusClosed:
		return hareerr.Newf(hareerr.KindTxClosed, "", "transaction %d is closed", tx.id)
	case StatusError:
		return hareerr.Newf(hareerr.KindTxInError, "", "transaction %d is in error", tx.id)
	default:
		return hareerr.Newf(hareerr.KindTxClosed, "", "transaction %d cannot write in status %v", tx.id, tx.status)
	}
	return nil
}

// fail transitions the Tx to ERROR and returns err unchanged, so
// callers can write `return tx.fail(err)`.
func (tx *Tx) fail(err error) error {
	tx.mu.Lock()
	tx.status = StatusError
	tx.err = err
	tx.mu.Unlock()
	return err
}

// AddPostCommit registers an action run after Commit succeeds.
func (tx *Tx) AddPostCommit(fn func()) {
	tx.mu.Lock()
	tx.postCommit = append(tx.postCommit, fn)
	tx.mu.Unlock()
}

// AddPostRollback registers an action run after Rollback runs.
func (tx *Tx) AddPostRollback(fn func()) {
	tx.mu.Lock()
	tx.postRollback = append(tx.postRollback, fn)
	tx.mu.Unlock()
}

// RequestLock acquires mode on obj through the Tx's lock manager,
// marking the Tx DIRTY first if mode is exclusive (an exclusive
// logical lock is always taken for a structural write).
func (tx *Tx) RequestLock(ctx context.Context, obj any, mode LockMode) error {
	if mode == ExclusiveLock {
		if err := tx.markDirty(); err != nil {
			return err
		}
	} else if err := tx.markRead(); err != nil {
		return err
	}
	if err := tx.locks.RequestLock(ctx, obj, tx, mode, tx.lockDeadline); err != nil {
		return tx.fail(err)
	}
	return nil
}

// Commit runs every post-commit action, clears both queues, and
// transitions DIRTY/READ/CLEAN → COMMIT → CLOSED.
func (tx *Tx) Commit() error {
	tx.mu.Lock()
	if tx.status == StatusError {
		tx.mu.Unlock()
		return hareerr.Newf(hareerr.KindTxInError, "", "transaction %d cannot commit: %v", tx.id, tx.err)
	}
	if tx.status == StatusClosed {
		tx.mu.Unlock()
		return hareerr.Newf(hareerr.KindTxClosed, "", "transaction %d already closed", tx.id)
	}
	tx.status = StatusCommit
	actions := tx.postCommit
	tx.postCommit = nil
	tx.postRollback = nil
	tx.mu.Unlock()

	for _, fn := range actions {
		fn()
	}

	tx.locks.ReleaseAll(tx)
	tx.mu.Lock()
	tx.status = StatusClosed
	tx.mu.Unlock()
	return nil
}

// Rollback runs every post-rollback action, clears both queues, and
// transitions to ROLLBACK → CLOSED. Valid from any non-closed status,
// including ERROR (spec.md: "ERROR may only transition to ROLLBACK
// then CLOSED").
func (tx *Tx) Rollback() error {
	tx.mu.Lock()
	if tx.status == StatusClosed {
		tx.mu.Unlock()
		return hareerr.Newf(hareerr.KindTxClosed, "", "transaction %d already closed", tx.id)
	}
	tx.status = StatusRollback
	actions := tx.postRollback
	tx.postCommit = nil
	tx.postRollback = nil
	tx.mu.Unlock()

	for i := len(actions) - 1; i >= 0; i-- {
		actions[i]()
	}

	tx.locks.ReleaseAll(tx)
	tx.mu.Lock()
	tx.status = StatusClosed
	tx.mu.Unlock()
	return nil
}

// Cancel marks the Tx ERROR (per spec.md §5, "cancellation transitions
// the Tx to ERROR and triggers rollback") and rolls it back.
func (tx *Tx) Cancel() error {
	tx.fail(hareerr.Newf(hareerr.KindCancelled, "", "transaction %d cancelled", tx.id))
	return tx.Rollback()
}
