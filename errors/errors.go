package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the client library. Callers match with errors.Is and
// decide between a transient notice and a silent retry; nothing here is
// fatal to the process.
var (
	// ErrAuthRequired is returned when an operation needs an authenticated
	// user and none is bound.
	ErrAuthRequired = errors.New("authentication required")

	// ErrDuplicate is returned by a store when a unique constraint rejects
	// an insert.
	ErrDuplicate = errors.New("duplicate record")

	// ErrDuplicateSwipe is returned when a swipe fact already exists for
	// the (swiper, swiped) pair.
	ErrDuplicateSwipe = fmt.Errorf("%w: swipe already recorded for this pair", ErrDuplicate)

	// ErrNothingToUndo is returned when the undo stack is empty.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNotFound is returned when an entity is missing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional mutation lost a race, for
	// example a queue entry consumed by another pairing attempt. Callers
	// fall back (re-queue) rather than surfacing it as fatal.
	ErrConflict = errors.New("conflict: concurrent update won")
)

// BackendError is the opaque passthrough wrapper for data/file-service
// failures that do not map onto the taxonomy above.
type BackendError struct {
	Op         string
	Collection string
	Err        error
}

func (e *BackendError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("backend: %s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("backend: %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Backend wraps err as a BackendError unless it already belongs to the
// taxonomy, in which case it passes through untouched.
func Backend(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrAuthRequired) {
		return err
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Collection: collection, Err: err}
}

// Transient reports whether an error is worth retrying: backend failures
// are, taxonomy errors and context cancellation are not.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var be *BackendError
	return errors.As(err, &be)
}
