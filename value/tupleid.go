// Package value defines the typed value model (scalars and vectors),
// Record, and TupleId used throughout column, index, planner, and
// execution code.
package value

// TupleId identifies a row within an entity's shared TupleId space.
// It is monotonically assigned by an entity's column files and never
// reused, even after the row it named is deleted.
type TupleId int64
