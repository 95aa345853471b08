package column

import (
	"context"

	"hareql.dev/value"
)

// Writer is the mutating view over a column file, handed out by
// newWriter() for use by Insert/Update/Delete operators.
type Writer struct {
	file File
}

// Append assigns and writes a fresh TupleId.
func (w *Writer) Append(ctx context.Context, v value.Value) (value.TupleId, error) {
	return w.file.Append(ctx, v)
}

// Update overwrites the value at an existing, live tid.
func (w *Writer) Update(ctx context.Context, tid value.TupleId, v value.Value) error {
	return w.file.Put(ctx, tid, v)
}

// Delete logically removes tid.
func (w *Writer) Delete(ctx context.Context, tid value.TupleId) error {
	return w.file.Delete(ctx, tid)
}

// Flush forces any buffered writes to the buffer pool's dirty frames
// out through the disk manager, without committing the disk manager's
// transaction.
func (w *Writer) Flush() error { return w.file.Flush() }
