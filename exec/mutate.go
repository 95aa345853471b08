package exec

import (
	"context"

	"hareql.dev/catalogue"
	"hareql.dev/value"
)

// Insert, Update, Delete, and OptimizeEntity are thin wrappers around
// EntityTx's own mutation methods. They exist in exec (rather than
// having callers reach into catalogue directly) so every named
// operator from spec.md §4.8 — reads and writes alike — has a single
// entry point through this package.

func Insert(ctx context.Context, etx *catalogue.EntityTx, values []value.Value) (value.TupleId, error) {
	return etx.Insert(ctx, values)
}

func Update(ctx context.Context, etx *catalogue.EntityTx, tid value.TupleId, values []value.Value) error {
	return etx.Update(ctx, tid, values)
}

func Delete(ctx context.Context, etx *catalogue.EntityTx, tid value.TupleId) error {
	return etx.Delete(ctx, tid)
}

func OptimizeEntity(ctx context.Context, etx *catalogue.EntityTx) error {
	return etx.OptimizeEntity(ctx)
}
