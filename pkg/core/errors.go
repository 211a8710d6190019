package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for spectrum construction and validation.
var (
	ErrInvalidMSLevel       = errors.New("spectrum: invalid ms level")
	ErrInvalidPeakData      = errors.New("spectrum: invalid peak data")
	ErrInvalidRetentionTime = errors.New("spectrum: invalid retention time")
	ErrInvalidDriftTime     = errors.New("spectrum: invalid drift time")
	ErrEmptyPeakList        = errors.New("spectrum: empty peak list")
	ErrDuplicateKey         = errors.New("spectrum: duplicate metadata key")
	ErrPrecursorOnMS1       = errors.New("spectrum: precursor not allowed on ms1")
	ErrLengthMismatch       = errors.New("spectrum: m/z and intensity arrays differ in length")
)

// ValidationError represents an error found during spectrum validation.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
