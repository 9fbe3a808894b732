package loop

import (
	"time"

	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/state"
)

// TickReport describes one completed (or terminally failed) tick.
type TickReport struct {
	Tick     uint64
	Started  time.Time
	Duration time.Duration

	Snapshot  state.Snapshot
	Output    state.Output
	HasOutput bool
	// Fallback is set when Output came from the fallback policy.
	Fallback bool

	// Residual is the error attributed this tick to the output of tick
	// ResidualTick (the previous one).
	Residual     state.Residual
	ResidualTick uint64

	Faults   []*Fault
	Terminal *Fault

	Adaptation *AdaptationEvent
	// AdaptationDeferred is set when an async proposal was still in flight
	// and this tick's request was skipped.
	AdaptationDeferred bool

	Params model.Params
}

// AdaptationEvent is a committed parameter update.
type AdaptationEvent struct {
	Commit   model.Commit
	Async    bool
	Diverged bool
}

// FaultsOf returns the report's faults of kind k.
func (r TickReport) FaultsOf(k FaultKind) []*Fault {
	var out []*Fault
	for _, f := range r.Faults {
		if f.Kind == k {
			out = append(out, f)
		}
	}
	return out
}
