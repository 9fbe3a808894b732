package physics

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("physics: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state or control dimensions.
	ErrDimensionMismatch = errors.New("physics: dimension mismatch between state and system")

	// ErrUnknownParam is returned by SetParam for names a model does not have.
	ErrUnknownParam = errors.New("physics: unknown param")
)

// Vector is a state or control vector.
type Vector []float64

func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v Vector) Norm() float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func (v Vector) Sub(other Vector) Vector {
	result := make(Vector, len(v))
	for i := range v {
		if i < len(other) {
			result[i] = v[i] - other[i]
		} else {
			result[i] = v[i]
		}
	}
	return result
}

type System interface {
	Name() string
	// States names each entry of the state vector.
	States() []string
	// Controls names each entry of the control vector.
	Controls() []string
	Derive(x, u Vector, t float64) Vector
}

type Hamiltonian interface {
	Energy(x Vector) float64
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// Integrator advances a system by one step.
type Integrator interface {
	Step(sys System, x, u Vector, t, dt float64) Vector
}

// StepError wraps a failed integration step with its context.
type StepError struct {
	Step    int
	Time    float64
	State   Vector
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

func unknownParam(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownParam, name)
}

func control(u Vector, i int) float64 {
	if i < len(u) {
		return u[i]
	}
	return 0
}
