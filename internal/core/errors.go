package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount  = errors.New("amount must be > 0")
	ErrNegativeAmount = errors.New("amount must be >= 0")
	ErrEmptyCategory  = errors.New("category cannot be empty")
	ErrEmptyName      = errors.New("name cannot be empty")
	ErrInvalidDate    = errors.New("date must be a valid YYYY-MM-DD date")
	ErrInvalidMonth   = errors.New("month must be a valid YYYY-MM month")
	ErrEndBeforeStart = errors.New("end month cannot be earlier than start month")
)

// ValidationError reports rejected input. It is returned before anything
// is written.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failure of the persistent store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err carries a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ValidationField returns the offending field of a validation error, or ""
// when err is not one.
func ValidationField(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}
