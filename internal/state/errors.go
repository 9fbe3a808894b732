package state

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfOrderSnapshot indicates a snapshot whose time does not advance
	// past the last accepted snapshot of the session.
	ErrOutOfOrderSnapshot = errors.New("state: out of order snapshot")

	// ErrInvalidCapacity indicates a history window with capacity < 1.
	ErrInvalidCapacity = errors.New("state: window capacity must be positive")
)

// OrderError carries the offending and last accepted timestamps.
type OrderError struct {
	Time float64
	Last float64
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("%v: t=%.6f not after t=%.6f", ErrOutOfOrderSnapshot, e.Time, e.Last)
}

func (e *OrderError) Unwrap() error {
	return ErrOutOfOrderSnapshot
}
