// Package repository defines the SQL-backed detection log and the error
// values shared by every detection store.  Handlers use these sentinels to
// choose between 404 and retryable 503 responses without looking at driver
// specific errors.
package repository

import (
	"errors"
	"fmt"
)

// ErrDetectionNotFound is returned when a detection id does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrDetectionNotFound = errors.New("detection not found")

// ErrPersistence matches every *PersistenceError via errors.Is.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError wraps a read or write failure against a backing store.
// Op names the operation (e.g. "append", "count_since").  A failed append is
// not fatal to ingestion; a failed read is surfaced to the caller as
// retryable.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is reports true for ErrPersistence so callers need not know the concrete type.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Wrap returns nil for a nil err, otherwise a *PersistenceError for op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
