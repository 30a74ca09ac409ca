// Package errors defines the typed error kinds MemoryHub surfaces across
// package boundaries, so callers can branch on failure class without
// string-matching messages.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a MemoryHub error.
type Kind string

const (
	// InvalidInput marks caller errors: empty content, malformed tags,
	// an unknown tier name passed to LoadTier.
	InvalidInput Kind = "invalid_input"

	// StorageWrite marks a failed append or DB insert; the caller's
	// record was not persisted.
	StorageWrite Kind = "storage_write"

	// StorageRead marks an unrecoverable read failure, propagated only
	// when no fallback path applies.
	StorageRead Kind = "storage_read"

	// IndexInconsistency marks a sidecar that disagrees with its log;
	// recoverable by rebuild.
	IndexInconsistency Kind = "index_inconsistency"

	// SerializationError marks a record line that failed to decode; the
	// offending line is skipped, never fatal to the caller.
	SerializationError Kind = "serialization_error"
)

// Error is a typed, wrapped error carrying a Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func build(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid builds an InvalidInput error.
func Invalid(op string, err error) *Error { return build(InvalidInput, op, err) }

// Invalidf builds an InvalidInput error from a format string.
func Invalidf(op, format string, args ...any) *Error {
	return build(InvalidInput, op, fmt.Errorf(format, args...))
}

// Write builds a StorageWrite error.
func Write(op string, err error) *Error { return build(StorageWrite, op, err) }

// Read builds a StorageRead error.
func Read(op string, err error) *Error { return build(StorageRead, op, err) }

// Inconsistent builds an IndexInconsistency error.
func Inconsistent(op string, err error) *Error { return build(IndexInconsistency, op, err) }

// Serialization builds a SerializationError.
func Serialization(op string, err error) *Error { return build(SerializationError, op, err) }

// KindOf returns the Kind carried by err, or "" if err is nil or not a
// *Error (directly or via wrapping).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
