package index

import "hareql.dev/value"

// ChangeKind is the kind of mutation a DataChangeEvent reports.
type ChangeKind int

const (
	Inserted ChangeKind = iota
	Updated
	Deleted
)

// DataChangeEvent is emitted by EntityTx.insert/update/delete and
// dispatched to every incrementally-updatable index on the entity
// before the entity Tx commits (spec.md §4.4/§3 invariant (i)).
type DataChangeEvent struct {
	Kind     ChangeKind
	Tid      value.TupleId
	OldValue value.Value // populated for Updated/Deleted
	NewValue value.Value // populated for Inserted/Updated
}
