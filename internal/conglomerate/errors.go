package conglomerate

import (
	"errors"
	"fmt"
)

// Error reports why a set of assumed equalities is inconsistent.
//
// Errors include:
//   - Mismatch: two axiomatic expansions of one class disagree on head or arity
//   - Cycle: a class would contain itself through axiomatic or application edges
//   - Pending: a term still awaiting arguments was asserted equal to something
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Class is the class being canonicalized when the failure was found.
	Class int
}

// ErrorCode categorizes canonicalization failures.
type ErrorCode string

const (
	// ErrCodeMismatch indicates conflicting axiomatic heads or arities.
	ErrCodeMismatch ErrorCode = "MISMATCH"

	// ErrCodeCycle indicates a dependency cycle between classes.
	ErrCodeCycle ErrorCode = "CYCLE"

	// ErrCodePending indicates an unsaturated computation in a class.
	ErrCodePending ErrorCode = "PENDING_COMPUTATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (class=%d)", e.Code, e.Message, e.Class)
}

// IsCycleError reports whether err is a cycle failure.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeCycle)
}

// IsMismatchError reports whether err is a head or arity mismatch.
func IsMismatchError(err error) bool {
	return hasCode(err, ErrCodeMismatch)
}

// IsPendingError reports whether err is an unsaturated computation failure.
func IsPendingError(err error) bool {
	return hasCode(err, ErrCodePending)
}

func hasCode(err error, code ErrorCode) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}
