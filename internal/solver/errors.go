package solver

import (
	"errors"
	"fmt"
)

// EquationError reports an equation that could not be solved.
//
// Errors include:
//   - Failed: the equation or one derived from it is contradictory
//   - Stalled: no strategy applied before the manager closed
//   - Closed: the equation was submitted after the manager closed
type EquationError struct {
	// Code identifies the error category.
	Code EquationErrorCode

	// EquationID identifies the submitted equation; see Manager.ErrorInfo.
	EquationID EquationID

	// Message is a human-readable description.
	Message string
}

// EquationErrorCode categorizes unsolved equations.
type EquationErrorCode string

const (
	// ErrCodeFailed indicates a contradiction.
	ErrCodeFailed EquationErrorCode = "FAILED"

	// ErrCodeStalled indicates the equation was still pending when the
	// manager closed.
	ErrCodeStalled EquationErrorCode = "STALLED"

	// ErrCodeClosed indicates the manager was already closed.
	ErrCodeClosed EquationErrorCode = "CLOSED"
)

// Error implements the error interface.
func (e *EquationError) Error() string {
	return fmt.Sprintf("%s: %s (equation=%d)", e.Code, e.Message, e.EquationID)
}

// IsFailed reports whether err is a failed equation.
func IsFailed(err error) bool {
	return hasCode(err, ErrCodeFailed)
}

// IsStalled reports whether err is a stalled equation.
func IsStalled(err error) bool {
	return hasCode(err, ErrCodeStalled)
}

func hasCode(err error, code EquationErrorCode) bool {
	var ee *EquationError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// RoundsExceededError is returned by Manager.Run when solvers were still
// making progress after the round limit.
type RoundsExceededError struct {
	Rounds int
	Limit  int
}

// Error implements the error interface.
func (e *RoundsExceededError) Error() string {
	return fmt.Sprintf("solver still progressing after %d rounds (limit %d)", e.Rounds, e.Limit)
}
