package availability

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("availability not found")
	ErrInvalidInput = errors.New("invalid availability input")

	ErrExceptionNotFound = errors.New("exception not found")
)

// ValidationError names the offending field. It matches ErrInvalidInput with
// errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
