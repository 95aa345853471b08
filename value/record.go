package value

// Record is an ordered tuple of typed values identified by a TupleId,
// addressed positionally by the column order an Entity declares.
type Record struct {
	Tid    TupleId
	Values []Value
}

// NewRecord builds a Record from a TupleId and its column values in
// declaration order.
func NewRecord(tid TupleId, values []Value) Record {
	return Record{Tid: tid, Values: values}
}

// Get returns the value at the given column position.
func (r Record) Get(col int) Value { return r.Values[col] }

// Arity returns the number of columns in the record.
func (r Record) Arity() int { return len(r.Values) }

// StandaloneRecord is a narrow Record referencing a single key column:
// a TupleId and one column's value, not the full row.
type StandaloneRecord struct {
	Tid       TupleId
	ColumnIdx int
	Key       Value
}

// NewStandaloneRecord builds a StandaloneRecord for the column at
// columnIdx with value key.
func NewStandaloneRecord(tid TupleId, columnIdx int, key Value) StandaloneRecord {
	return StandaloneRecord{Tid: tid, ColumnIdx: columnIdx, Key: key}
}
