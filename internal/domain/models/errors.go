package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means an operation received fewer bars than it needs.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDataUnavailable means the market-data provider failed.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrModelUnavailable means the sequence model could not be trained or used.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrComputation means a numeric result was non-finite or otherwise invalid.
	ErrComputation = errors.New("computation error")
)

// InsufficientDataError carries how many observations an operation required.
type InsufficientDataError struct {
	Operation string
	Required  int
	Got       int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need %d, got %d", e.Operation, e.Required, e.Got)
}

// Is lets errors.Is match ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// NewInsufficientData builds an InsufficientDataError.
func NewInsufficientData(op string, required, got int) error {
	return &InsufficientDataError{Operation: op, Required: required, Got: got}
}

// Computationf wraps ErrComputation with context.
func Computationf(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrComputation, fmt.Sprintf(format, a...))
}

// ModelUnavailablef wraps ErrModelUnavailable with context.
func ModelUnavailablef(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrModelUnavailable, fmt.Sprintf(format, a...))
}
