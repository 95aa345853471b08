package catalogue

import (
	"sync"
	"time"
)

// TxRecord is a point-in-time snapshot of a Tx's status, kept around
// after the Tx closes for introspection (stats commands, tests).
type TxRecord struct {
	ID          TransactionId
	Mode        TxMode
	Status      Status
	Correlation string
	StartedAt   time.Time
	ClosedAt    time.Time
}

// TxManager is a bounded, age-evicted registry of live and recently
// closed transactions, grounded on statemanager.Manager's
// evict-oldest-at-capacity pattern (here applied to transactions
// instead of long-running operations).
type TxManager struct {
	mu       sync.Mutex
	locks    *LockManager
	deadline time.Duration
	maxKept  int
	order    []TransactionId
	byID     map[TransactionId]*trackedTx
}

type trackedTx struct {
	tx        *Tx
	startedAt time.Time
}

func NewTxManager(locks *LockManager, lockDeadline time.Duration, maxKept int) *TxManager {
	if maxKept <= 0 {
		maxKept = 1000
	}
	return &TxManager{
		locks:    locks,
		deadline: lockDeadline,
		maxKept:  maxKept,
		byID:     make(map[TransactionId]*trackedTx),
	}
}

// Begin creates and registers a new Tx, evicting the oldest tracked
// entry if the manager is at capacity.
func (m *TxManager) Begin(mode TxMode) *Tx {
	tx := newTx(m.locks, mode, m.deadline)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) >= m.maxKept {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.byID, oldest)
	}
	m.order = append(m.order, tx.id)
	m.byID[tx.id] = &trackedTx{tx: tx, startedAt: time.Now()}
	return tx
}

// Lookup returns the tracked Tx for id, if still retained.
func (m *TxManager) Lookup(id TransactionId) (*Tx, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return t.tx, true
}

// Stats returns a snapshot of every tracked transaction, most recent
// last, for introspection (e.g. cmd/hareql's stats command).
func (m *TxManager) Stats() []TxRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TxRecord, 0, len(m.order))
	for _, id := range m.order {
		t := m.byID[id]
		rec := TxRecord{
			ID:          t.tx.id,
			Mode:        t.tx.mode,
			Status:      t.tx.Status(),
			Correlation: t.tx.correlation,
			StartedAt:   t.startedAt,
		}
		out = append(out, rec)
	}
	return out
}
