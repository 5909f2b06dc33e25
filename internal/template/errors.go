package template

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownField is returned when an expression names a field the context lacks.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidSpec is returned for malformed format specs and unsupported conversions.
	ErrInvalidSpec = errors.New("invalid format specifier")
	// ErrTypeMismatch is returned when a format type cannot be applied to a value.
	ErrTypeMismatch = errors.New("format type not supported for value")
)

// SubstitutionError reports one expression that could not be evaluated.
type SubstitutionError struct {
	Expr string
	Err  error
}

func (e *SubstitutionError) Error() string {
	return fmt.Sprintf("substitute %q: %v", e.Expr, e.Err)
}

func (e *SubstitutionError) Unwrap() error {
	return e.Err
}
