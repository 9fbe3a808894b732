package loop

import (
	"context"
	"time"

	"github.com/san-kum/mindstone/internal/state"
)

// Sensor supplies the latest snapshot, waiting at most timeout. It returns
// false on timeout or cancellation.
type Sensor interface {
	Acquire(ctx context.Context, timeout time.Duration) (state.Snapshot, bool)
}

// Actuator applies an output to the robot.
type Actuator interface {
	Apply(ctx context.Context, out state.Output) error
}

// ErrorFunc measures how far the snapshot that followed an output is from
// what the output intended.
type ErrorFunc func(out state.Output, achieved state.Snapshot) state.Residual

type SensorFunc func(ctx context.Context, timeout time.Duration) (state.Snapshot, bool)

func (f SensorFunc) Acquire(ctx context.Context, timeout time.Duration) (state.Snapshot, bool) {
	return f(ctx, timeout)
}

type ActuatorFunc func(ctx context.Context, out state.Output) error

func (f ActuatorFunc) Apply(ctx context.Context, out state.Output) error {
	return f(ctx, out)
}

// Discard is an actuator that accepts every output.
var Discard Actuator = ActuatorFunc(func(context.Context, state.Output) error { return nil })

// TrackReference reports achieved - reference for each reference channel.
func TrackReference(ref map[string]float64) ErrorFunc {
	cp := make(map[string]float64, len(ref))
	for k, v := range ref {
		cp[k] = v
	}
	return func(_ state.Output, achieved state.Snapshot) state.Residual {
		r := make(state.Residual, len(cp))
		for ch, want := range cp {
			r[ch] = achieved.Value(ch) - want
		}
		return r
	}
}

// TrackCommand treats each commanded output as the desired value of a
// snapshot channel (routes maps output channel to snapshot channel) and
// reports achieved - commanded.
func TrackCommand(routes map[string]string) ErrorFunc {
	cp := make(map[string]string, len(routes))
	for k, v := range routes {
		cp[k] = v
	}
	return func(out state.Output, achieved state.Snapshot) state.Residual {
		r := make(state.Residual, len(cp))
		for outCh, inCh := range cp {
			r[inCh] = achieved.Value(inCh) - out.Value(outCh)
		}
		return r
	}
}
