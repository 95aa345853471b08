package catalogue

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"hareql.dev/hareerr"
)

// LockMode is the granularity of a logical lock a Tx can hold on a
// DBO (schema, entity, index). Compatible with itself only when
// Shared; Exclusive is incompatible with any other holder.
type LockMode int

const (
	NoLock LockMode = iota
	SharedLock
	ExclusiveLock
)

func compatible(held, want LockMode) bool {
	if held == NoLock || want == NoLock {
		return true
	}
	return held == SharedLock && want == SharedLock
}

type lockState struct {
	holders map[*Tx]LockMode
}

// LockManager grants shared/exclusive logical locks on DBOs keyed by
// pointer identity. Waiters poll on a bounded backoff until the
// request is compatible with every existing holder or the deadline
// elapses, per spec.md §4.5/§5 ("Lock waits use deadline-based
// acquisition; exceeding the deadline raises LockTimeout").
type LockManager struct {
	mu    sync.Mutex
	table map[any]*lockState
}

func NewLockManager() *LockManager {
	return &LockManager{table: make(map[any]*lockState)}
}

// RequestLock blocks until tx holds mode on obj, the context is
// cancelled, or deadline elapses. Upgrading a held Shared lock to
// Exclusive is supported by releasing the shared grant first.
func (lm *LockManager) RequestLock(ctx context.Context, obj any, tx *Tx, mode LockMode, deadline time.Duration) error {
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	deadlineCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 25 * time.Millisecond
	bctx := backoff.WithContext(b, deadlineCtx)

	op := func() error {
		lm.mu.Lock()
		defer lm.mu.Unlock()

		st, ok := lm.table[obj]
		if !ok {
			st = &lockState{holders: make(map[*Tx]LockMode)}
			lm.table[obj] = st
		}
		if st.holders[tx] == mode {
			return nil
		}
		for holder, hmode := range st.holders {
			if holder == tx {
				continue
			}
			if !compatible(hmode, mode) {
				return errRetryLock
			}
		}
		st.holders[tx] = mode
		return nil
	}

	if err := backoff.Retry(op, bctx); err != nil {
		if ctx.Err() != nil {
			return hareerr.New(hareerr.KindCancelled, "", ctx.Err())
		}
		return hareerr.Newf(hareerr.KindTimeout, "", "lock wait exceeded %s", deadline)
	}
	return nil
}

// errRetryLock is a sentinel returned by the backoff operation to
// signal "not yet, try again" without being mistaken for a permanent
// failure by backoff.Permanent callers elsewhere.
var errRetryLock = &retryableLockErr{}

type retryableLockErr struct{}

func (*retryableLockErr) Error() string { return "lock not yet available" }

// Release drops every lock tx holds on obj.
func (lm *LockManager) Release(obj any, tx *Tx) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if st, ok := lm.table[obj]; ok {
		delete(st.holders, tx)
		if len(st.holders) == 0 {
			delete(lm.table, obj)
		}
	}
}

// ReleaseAll drops every lock tx holds across every object, called
// when a Tx commits, rolls back, or closes.
func (lm *LockManager) ReleaseAll(tx *Tx) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for obj, st := range lm.table {
		if _, held := st.holders[tx]; held {
			delete(st.holders, tx)
			if len(st.holders) == 0 {
				delete(lm.table, obj)
			}
		}
	}
}
