package column

import (
	"context"

	"hareql.dev/value"
)

// Cursor iterates live (non-deleted) TupleIds in [start, end] over a
// single column file. Cursors are single-threaded and must not be
// shared across goroutines; callers should Close when done. Close ends
// the iteration (later Next calls report no more TupleIds) and
// releases nothing else, since cursors hold no resources beyond their
// position.
type Cursor struct {
	source File
	next   value.TupleId
	end    value.TupleId
	cur    value.TupleId
	done   bool
}

// HasNext advances past any deleted tuples and reports whether a live
// tuple remains in range.
func (c *Cursor) HasNext(ctx context.Context) (bool, error) {
	if c.done {
		return false, nil
	}
	for c.next <= c.end {
		_, ok, err := c.source.Get(ctx, c.next)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		c.next++
	}
	c.done = true
	return false, nil
}

// Next returns the current live TupleId and advances the cursor.
// Callers must call HasNext first and check its result.
func (c *Cursor) Next() value.TupleId {
	c.cur = c.next
	c.next++
	return c.cur
}

// Close releases cursor-held resources. Safe to call multiple times.
func (c *Cursor) Close() error { c.done = true; return nil }
