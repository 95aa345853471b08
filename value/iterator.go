package value

import "context"

// Iterator is the pull interface every record source in the engine
// produces against: entity scans, index filters, and execution
// operators alike. Next returns (Record{}, false, nil) at end of
// input; a non-nil error aborts iteration at the current record.
type Iterator interface {
	Next(ctx context.Context) (Record, bool, error)
	Close() error
}

// SliceIterator adapts a pre-materialized slice of records to
// Iterator, used by breaker operators and by tests that don't need a
// lazy source.
type SliceIterator struct {
	records []Record
	pos     int
}

func NewSliceIterator(records []Record) *SliceIterator {
	return &SliceIterator{records: records}
}

func (it *SliceIterator) Next(ctx context.Context) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	if it.pos >= len(it.records) {
		return Record{}, false, nil
	}
	r := it.records[it.pos]
	it.pos++
	return r, true, nil
}

func (it *SliceIterator) Close() error { return nil }

// EmptyIterator is a zero-record Iterator.
var EmptyIterator emptyIterator

type emptyIterator struct{}

func (emptyIterator) Next(ctx context.Context) (Record, bool, error) { return Record{}, false, nil }
func (emptyIterator) Close() error                                   { return nil }
