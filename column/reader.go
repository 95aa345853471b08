package column

import (
	"context"

	"hareql.dev/value"
)

// Reader is a read-only view over a column file, handed out by
// newReader() for use by scan operators that already hold a TupleId
// (typically from a cursor or an index probe).
type Reader struct {
	file File
}

// Read returns the value at tid, or ok=false if tid does not exist or
// was deleted.
func (r *Reader) Read(ctx context.Context, tid value.TupleId) (value.Value, bool, error) {
	return r.file.Get(ctx, tid)
}

// Count returns the number of live tuples in the underlying file.
func (r *Reader) Count() int64 { return r.file.Count() }
