package index

import (
	"context"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"hareql.dev/hareerr"
	"hareql.dev/value"
)

var uniqueBucket = []byte("unique")

// UniqueHash is a persistent map Value → TupleId over one scalar
// column, rejecting duplicate keys with TxValidation (spec.md §4.6).
// Persistence uses bbolt (the teacher's embedded-KV dependency,
// already wired into catalogue's name stores) — the right-sized fit
// for a single b-tree of encoded-value → tid pairs, smaller than the
// hand-rolled page layer columns use for bulk tuple data.
type UniqueHash struct {
	mu     sync.RWMutex
	name   string
	column int
	typ    value.Type
	db     *bbolt.DB
	dirty  bool
}

func OpenUniqueHash(path, name string, column int, typ value.Type) (*UniqueHash, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, hareerr.New(hareerr.KindFileLocked, name, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(uniqueBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, hareerr.New(hareerr.KindDataCorruption, name, err)
	}
	return &UniqueHash{name: name, column: column, typ: typ, db: db}, nil
}

func (u *UniqueHash) Name() string                      { return u.name }
func (u *UniqueHash) Type() Type                         { return TypeUniqueHash }
func (u *UniqueHash) SupportsIncrementalUpdate() bool    { return true }
func (u *UniqueHash) Dirty() bool                        { u.mu.RLock(); defer u.mu.RUnlock(); return u.dirty }

func encodeKey(v value.Value) []byte {
	if v.Type == value.String {
		return value.EncodeString(v)
	}
	buf := make([]byte, value.EncodedSize(v.Type, 0))
	value.EncodeFixed(buf, v)
	return buf
}

func (u *UniqueHash) CanProcess(p value.Predicate) bool {
	a, ok := p.(value.Atomic)
	if !ok || a.Column != u.column {
		return false
	}
	return a.Op == value.Equal || a.Op == value.In
}

func (u *UniqueHash) CostOf(p value.Predicate) Cost {
	if !u.CanProcess(p) {
		return Invalid
	}
	a := p.(value.Atomic)
	return Cost{CPU: 1, IO: float64(len(a.Values)), Memory: 0.1}
}

func (u *UniqueHash) probe(key value.Value) (value.TupleId, bool, error) {
	var tid value.TupleId
	found := false
	err := u.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(uniqueBucket).Get(encodeKey(key))
		if b == nil || len(b) < 8 {
			return nil
		}
		found = true
		tid = value.TupleId(int64(b[0]) | int64(b[1])<<8 | int64(b[2])<<16 | int64(b[3])<<24 |
			int64(b[4])<<32 | int64(b[5])<<40 | int64(b[6])<<48 | int64(b[7])<<56)
		return nil
	})
	return tid, found, err
}

// Filter iterates the right-hand-side values of EQUAL/IN, probes the
// hash, and emits a one-column Record(tid, [key]) per key found.
func (u *UniqueHash) Filter(ctx context.Context, p value.Predicate) (value.Iterator, error) {
	a, ok := p.(value.Atomic)
	if !ok || !u.CanProcess(a) {
		return nil, hareerr.Newf(hareerr.KindPredNotSupported, u.name, "predicate not supported by unique-hash index")
	}
	var recs []value.Record
	for _, key := range a.Values {
		tid, found, err := u.probe(key)
		if err != nil {
			return nil, hareerr.New(hareerr.KindOperatorExec, u.name, err)
		}
		if !found {
			continue
		}
		recs = append(recs, value.NewRecord(tid, []value.Value{key}))
	}
	return value.NewSliceIterator(recs), nil
}

func (u *UniqueHash) FilterRange(ctx context.Context, p value.Predicate, start, end value.TupleId) (value.Iterator, bool, error) {
	return nil, false, nil
}

// putKey inserts key→tid, returning TxValidation if the key already
// maps to a different tuple (duplicate rejection, spec.md §4.6).
func (u *UniqueHash) putKey(key value.Value, tid value.TupleId) error {
	return u.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(uniqueBucket)
		k := encodeKey(key)
		if existing := b.Get(k); existing != nil {
			return hareerr.Newf(hareerr.KindTxValidation, u.name, "duplicate key for unique-hash index")
		}
		buf := make([]byte, 8)
		n := int64(tid)
		for i := 0; i < 8; i++ {
			buf[i] = byte(n >> (8 * i))
		}
		return b.Put(k, buf)
	})
}

func (u *UniqueHash) deleteKey(key value.Value) error {
	return u.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(uniqueBucket).Delete(encodeKey(key))
	})
}

func (u *UniqueHash) Rebuild(ctx context.Context, source value.Iterator, columns []int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(uniqueBucket); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(uniqueBucket)
		return err
	}); err != nil {
		return hareerr.New(hareerr.KindDataCorruption, u.name, err)
	}
	for {
		rec, ok, err := source.Next(ctx)
		if err != nil {
			return hareerr.New(hareerr.KindOperatorExec, u.name, err)
		}
		if !ok {
			break
		}
		key := rec.Get(columns[0])
		if key.Null {
			continue
		}
		if err := u.putKey(key, rec.Tid); err != nil {
			return err
		}
	}
	u.dirty = false
	return nil
}

func (u *UniqueHash) Update(ctx context.Context, ev DataChangeEvent) error {
	switch ev.Kind {
	case Inserted:
		if ev.NewValue.Null {
			return nil
		}
		return u.putKey(ev.NewValue, ev.Tid)
	case Updated:
		if !ev.OldValue.Null {
			_ = u.deleteKey(ev.OldValue)
		}
		if ev.NewValue.Null {
			return nil
		}
		return u.putKey(ev.NewValue, ev.Tid)
	case Deleted:
		if ev.OldValue.Null {
			return nil
		}
		return u.deleteKey(ev.OldValue)
	}
	return nil
}

func (u *UniqueHash) Commit() error   { return nil }
func (u *UniqueHash) Rollback() error { u.mu.Lock(); u.dirty = true; u.mu.Unlock(); return nil }
func (u *UniqueHash) Close() error    { return u.db.Close() }
