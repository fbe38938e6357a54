package term

import "fmt"

// ContractViolation is the panic value raised when a caller breaks the store's
// ownership contract. It is never returned as an error.
type ContractViolation struct {
	// Op is the store operation that detected the violation.
	Op string

	// Expr is the offending handle.
	Expr Expr

	// Message is a human-readable description.
	Message string
}

func (v *ContractViolation) Error() string {
	return fmt.Sprintf("term: %s(%d): %s", v.Op, v.Expr, v.Message)
}

func violation(op string, e Expr, format string, args ...any) *ContractViolation {
	return &ContractViolation{Op: op, Expr: e, Message: fmt.Sprintf(format, args...)}
}
