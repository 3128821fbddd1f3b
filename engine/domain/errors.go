package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for terminal engine conditions.
var (
	ErrNoCircuits       = errors.New("no valid circuits")
	ErrEmptyBoard       = errors.New("empty board")
	ErrUnresolvedSource = errors.New("unresolved regulation source")
	ErrIntegration      = errors.New("integration failed")
	ErrBadConstants     = errors.New("invalid constants table")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
