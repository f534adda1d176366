package mutation

import (
	"errors"
	"fmt"
)

// Sentinel kinds for mutation errors.
var (
	ErrMissingField = errors.New("missing required field")
	ErrValidation   = errors.New("command validation failed")
	ErrUnknownOp    = errors.New("unknown command")
)

// ValidationError describes why a command was rejected.
type ValidationError struct {
	Op     Op
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(op Op, field, format string, args ...any) error {
	return &ValidationError{Op: op, Field: field, Reason: fmt.Sprintf(format, args...)}
}
