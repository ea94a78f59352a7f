package pricing

import (
	"errors"
	"fmt"
)

// Failure classes returned by the pricing engine. Callers match them with
// errors.Is; the concrete error may carry more detail.
var (
	ErrInvalidInput       = errors.New("pricing: invalid input")
	ErrNumericInstability = errors.New("pricing: numeric instability")
	ErrNonConvergence     = errors.New("pricing: solver did not converge")
)

// InputError describes a single rejected parameter.
type InputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("pricing: invalid %s (%g): %s", e.Field, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field string, value float64, reason string) error {
	return &InputError{Field: field, Value: value, Reason: reason}
}
