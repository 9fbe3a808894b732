package loop

import (
	"errors"
	"fmt"
)

var (
	// ErrSnapshotTimeout indicates no acceptable snapshot arrived within the
	// configured timeout.
	ErrSnapshotTimeout = errors.New("loop: snapshot acquisition timed out")

	// ErrActuatorFault wraps failures reported by the actuator.
	ErrActuatorFault = errors.New("loop: actuator fault")

	// ErrTickOverrun indicates scheduling periods were missed because a tick
	// ran longer than the tick interval.
	ErrTickOverrun = errors.New("loop: tick overran its period")

	// ErrAlreadyStarted is returned by Run on a loop that is not idle.
	ErrAlreadyStarted = errors.New("loop: already started")

	// ErrStopped is returned by Run, Pause and Resume on a stopped loop.
	ErrStopped = errors.New("loop: stopped")
)

// FaultKind classifies a recorded anomaly.
type FaultKind string

const (
	FaultOutOfOrderSnapshot   FaultKind = "out_of_order_snapshot"
	FaultModelEvaluation      FaultKind = "model_evaluation"
	FaultSnapshotTimeout      FaultKind = "snapshot_timeout"
	FaultAdaptationDivergence FaultKind = "adaptation_divergence"
	FaultAdaptation           FaultKind = "adaptation"
	FaultActuator             FaultKind = "actuator"
	FaultTickOverrun          FaultKind = "tick_overrun"
)

// Fault is an anomaly recorded during a tick. Terminal faults stop the loop.
type Fault struct {
	Tick     uint64
	Time     float64
	Kind     FaultKind
	Terminal bool
	Err      error
}

func (f *Fault) Error() string {
	tag := "fault"
	if f.Terminal {
		tag = "terminal fault"
	}
	return fmt.Sprintf("tick %d (t=%.4f): %s %s: %v", f.Tick, f.Time, tag, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
