// Package column implements the two on-disk column layouts (fixed-width
// and variable-width) that sit directly on top of a page.DiskManager and
// bufferpool.Pool: per-tuple random access, sequential cursors, and the
// reader/writer views an EntityTx composes into Records.
package column

import (
	"context"

	"hareql.dev/bufferpool"
	"hareql.dev/page"
	"hareql.dev/value"
)

// pageTypeTag values stored in the first 4 bytes of every non-header
// page a column file owns, distinguishing page kinds when a cursor or
// recovery routine walks the file without other context.
const (
	pageTypeFixedHeader    int32 = 1
	pageTypeFixedData      int32 = 2
	pageTypeDirectory      int32 = 3
	pageTypeSlottedData    int32 = 4
	pageTypeVariableHeader int32 = 5
)

// File is the common surface both layouts implement. EntityTx and the
// planner/exec packages depend only on this interface, never on the
// concrete layout.
type File interface {
	// Type is the value type this file stores.
	Type() value.Type
	// Nullable reports whether tuples may hold a null value.
	Nullable() bool
	// Count returns the number of live (non-deleted) tuples.
	Count() int64
	// MaxTupleId returns the highest TupleId ever assigned, or -1 if
	// the file is empty.
	MaxTupleId() value.TupleId

	// Get reads the value at tid. ok is false if tid was never
	// assigned or has been deleted.
	Get(ctx context.Context, tid value.TupleId) (v value.Value, ok bool, err error)
	// Put overwrites the value at an existing, live tid.
	Put(ctx context.Context, tid value.TupleId, v value.Value) error
	// Append assigns and writes a fresh TupleId.
	Append(ctx context.Context, v value.Value) (value.TupleId, error)
	// Delete logically removes tid; it remains addressable as "not
	// found" but its TupleId is never reused.
	Delete(ctx context.Context, tid value.TupleId) error

	// NewCursor returns a cursor over [start, end] (inclusive); a nil
	// end means "through MaxTupleId".
	NewCursor(start value.TupleId, end *value.TupleId) (*Cursor, error)

	Flush() error
	Close() error
}

// poolOpener is the shared dependency shape fixed and variable files
// take: a disk manager and the buffer pool fronting it.
type poolOpener struct {
	dm   page.DiskManager
	pool *bufferpool.Pool
}
