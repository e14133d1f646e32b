package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")
	ErrUnavailable  = errors.New("unavailable")

	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyInput        = errors.New("empty input")
	ErrEmptyQuery        = errors.New("empty query")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrSourceCreation    = errors.New("source creation failed")
	ErrPersistence       = errors.New("chunk persistence failed")
)

// DimensionMismatchError reports a provider vector whose length differs from the configured dimension.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports caller mistakes that must never be retried.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrEmptyQuery) ||
		errors.Is(err, ErrInvalid)
}
