package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelEvaluation indicates a model could not produce an output for a
	// snapshot, typically because a required channel is missing.
	ErrModelEvaluation = errors.New("model: evaluation failed")

	// ErrAdaptationDivergence indicates a proposed delta would move a parameter
	// outside its bound. The delta is clamped, not rejected.
	ErrAdaptationDivergence = errors.New("model: adaptation diverged past parameter bound")

	// ErrParameterBounds indicates an initial parameter outside its bound.
	ErrParameterBounds = errors.New("model: parameter out of bounds")
)

// EvalError wraps an evaluation failure with the model and channel involved.
type EvalError struct {
	Model   string
	Channel string
	Wrapped error
}

func (e *EvalError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("%s: missing required channel %q", e.Model, e.Channel)
	}
	return fmt.Sprintf("%s: %v", e.Model, e.Wrapped)
}

func (e *EvalError) Unwrap() []error {
	if e.Wrapped != nil {
		return []error{ErrModelEvaluation, e.Wrapped}
	}
	return []error{ErrModelEvaluation}
}

// DivergenceError lists the parameters that were clamped by a commit.
type DivergenceError struct {
	Clamped []Clamp
}

func (e *DivergenceError) Error() string {
	parts := make([]string, len(e.Clamped))
	for i, c := range e.Clamped {
		parts[i] = fmt.Sprintf("%s proposed %.6g clamped to %.6g", c.Param, c.Proposed, c.Applied)
	}
	return fmt.Sprintf("%v: %s", ErrAdaptationDivergence, strings.Join(parts, ", "))
}

func (e *DivergenceError) Unwrap() error {
	return ErrAdaptationDivergence
}
