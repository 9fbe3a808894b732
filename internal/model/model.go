package model

import (
	"context"

	"github.com/san-kum/mindstone/internal/state"
)

// Memory is per-model state carried from one tick to the next. Nil is the
// empty memory of the first tick.
type Memory map[string]float64

func (m Memory) Clone() Memory {
	if m == nil {
		return nil
	}
	c := make(Memory, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Model produces one output per snapshot.
type Model interface {
	Name() string
	// Required lists the snapshot channels Evaluate cannot work without.
	Required() []string
	// Outputs lists the actuator channels the model commands.
	Outputs() []string
	Evaluate(snap state.Snapshot, mem Memory) (state.Output, Memory, error)
}

// Law is a pure control law parameterized by a parameter vector.
type Law interface {
	Name() string
	Required() []string
	Outputs() []string
	Compute(snap state.Snapshot, mem Memory, p Params) (state.Output, Memory, error)
}

// Adapter proposes parameter revisions from recent history. Implementations
// hold no state between calls beyond their configuration, accept any window
// length >= 1 and return an empty delta when the window is insufficient.
type Adapter interface {
	Name() string
	ProposeUpdate(ctx context.Context, window []state.Entry) (Delta, error)
}

// Tunable is implemented by models whose parameters can be revised online.
type Tunable interface {
	Model
	Params() Params
	Propose(ctx context.Context, window []state.Entry) (Delta, error)
	Commit(d Delta) (Commit, error)
}

// Static evaluates a law with a fixed parameter vector.
type Static struct {
	law    Law
	params Params
}

func NewStatic(law Law, params Params) *Static {
	return &Static{law: law, params: params.Clone()}
}

func (s *Static) Name() string       { return s.law.Name() }
func (s *Static) Required() []string { return s.law.Required() }
func (s *Static) Outputs() []string  { return s.law.Outputs() }
func (s *Static) Params() Params     { return s.params.Clone() }

func (s *Static) Evaluate(snap state.Snapshot, mem Memory) (state.Output, Memory, error) {
	if err := checkRequired(s.law.Name(), s.law.Required(), snap); err != nil {
		return state.Output{}, mem, err
	}
	return s.law.Compute(snap, mem, s.params)
}

func checkRequired(name string, required []string, snap state.Snapshot) error {
	for _, ch := range required {
		if _, ok := snap.Lookup(ch); !ok {
			return &EvalError{Model: name, Channel: ch}
		}
	}
	return nil
}
