// Package hareerr defines the tagged error kinds shared across the
// storage, catalogue, planning, and execution layers of the engine.
// Every exported operation that can fail wraps its cause in an *Error
// so callers can recover the Kind with errors.As regardless of how
// deeply the original cause was wrapped.
package hareerr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of engine failure. Kinds are stable and
// intended to be matched on by callers (e.g. the gRPC surface mapping
// them to status codes), never formatted directly into user text.
type Kind string

const (
	KindDataCorruption   Kind = "DATA_CORRUPTION"
	KindFileLocked       Kind = "FILE_LOCKED"
	KindSchemaNotFound   Kind = "SCHEMA_DOES_NOT_EXIST"
	KindEntityNotFound   Kind = "ENTITY_DOES_NOT_EXIST"
	KindColumnNotFound   Kind = "COLUMN_DOES_NOT_EXIST"
	KindIndexNotFound    Kind = "INDEX_DOES_NOT_EXIST"
	KindSchemaExists     Kind = "SCHEMA_ALREADY_EXISTS"
	KindEntityExists     Kind = "ENTITY_ALREADY_EXISTS"
	KindDuplicateColumn  Kind = "DUPLICATE_COLUMN"
	KindTxClosed         Kind = "TRANSACTION_CLOSED"
	KindTxReadOnly       Kind = "TRANSACTION_READ_ONLY"
	KindTxInError        Kind = "TRANSACTION_IN_ERROR"
	KindTxWriteLockFail  Kind = "TRANSACTION_WRITE_LOCK_FAILED"
	KindTxDBOClosed      Kind = "TRANSACTION_DBO_CLOSED"
	KindQuerySyntax      Kind = "QUERY_SYNTAX"
	KindQueryBind        Kind = "QUERY_BIND"
	KindQueryPlanner     Kind = "QUERY_PLANNER"
	KindUnsupportedPred  Kind = "UNSUPPORTED_PREDICATE"
	KindOperatorSetup    Kind = "OPERATOR_SETUP"
	KindOperatorExec     Kind = "OPERATOR_EXECUTION"
	KindPredNotSupported Kind = "PREDICATE_NOT_SUPPORTED_BY_INDEX"
	KindTxValidation     Kind = "TX_VALIDATION"
	KindTimeout          Kind = "TIMEOUT"
	KindCancelled        Kind = "CANCELLED"
)

// Error is the tagged sum every engine-level failure is wrapped in.
// Object is the fully-qualified name of the offending DBO or column,
// when one is known; it is folded into Error() so the message is
// human-readable without the caller needing to inspect Object itself.
type Error struct {
	Kind   Kind
	Object string
	Err    error
}

func (e *Error) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Object, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind, wrapping cause.
func New(kind Kind, object string, cause error) *Error {
	return &Error{Kind: kind, Object: object, Err: cause}
}

// Newf constructs an *Error of the given kind from a formatted message.
func Newf(kind Kind, object, format string, args ...any) *Error {
	return &Error{Kind: kind, Object: object, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of the first *Error in err's chain, or ""
// if err does not wrap one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
