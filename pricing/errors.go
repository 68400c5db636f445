package pricing

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid pricing input")
	ErrInvariantViolation = errors.New("pricing invariant violated")
)

// InputError rejects one RFQ whose records cannot be priced.
type InputError struct {
	Field string
	Value string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%v: %s must be positive, got %s", ErrInvalidInput, e.Field, e.Value)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// InvariantError reports a branch of the decision procedure that should be
// unreachable. It is not recoverable per RFQ.
type InvariantError struct {
	Branch string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: %s (%s)", ErrInvariantViolation, e.Branch, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}
