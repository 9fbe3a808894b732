package model

import (
	"context"
	"fmt"

	"github.com/san-kum/mindstone/internal/state"
)

// Adaptive evaluates a law whose parameters are revised by its adapter.
//
// Evaluate and Commit must be called from the same goroutine; Propose only
// reads the window it is given and may run elsewhere.
type Adaptive struct {
	law     Law
	params  Params
	bounds  Bounds
	adapter Adapter
}

// NewAdaptive validates the initial parameters against bounds.
func NewAdaptive(law Law, initial Params, bounds Bounds, adapter Adapter) (*Adaptive, error) {
	if adapter == nil {
		return nil, fmt.Errorf("model: adaptive %s requires an adapter", law.Name())
	}
	for name, b := range bounds {
		if b.Min > b.Max {
			return nil, fmt.Errorf("%w: %s has min %.6g > max %.6g", ErrParameterBounds, name, b.Min, b.Max)
		}
		if v, ok := initial[name]; ok && !b.Contains(v) {
			return nil, fmt.Errorf("%w: %s=%.6g outside [%.6g, %.6g]", ErrParameterBounds, name, v, b.Min, b.Max)
		}
	}
	cp := make(Bounds, len(bounds))
	for k, v := range bounds {
		cp[k] = v
	}
	return &Adaptive{
		law:     law,
		params:  initial.Clone(),
		bounds:  cp,
		adapter: adapter,
	}, nil
}

func (a *Adaptive) Name() string       { return a.law.Name() }
func (a *Adaptive) Required() []string { return a.law.Required() }
func (a *Adaptive) Outputs() []string  { return a.law.Outputs() }
func (a *Adaptive) Params() Params     { return a.params.Clone() }
func (a *Adaptive) Adapter() Adapter   { return a.adapter }

func (a *Adaptive) Bounds() Bounds {
	cp := make(Bounds, len(a.bounds))
	for k, v := range a.bounds {
		cp[k] = v
	}
	return cp
}

func (a *Adaptive) Evaluate(snap state.Snapshot, mem Memory) (state.Output, Memory, error) {
	if err := checkRequired(a.law.Name(), a.law.Required(), snap); err != nil {
		return state.Output{}, mem, err
	}
	return a.law.Compute(snap, mem, a.params)
}

// Propose asks the adapter for a delta. It does not touch the parameters.
func (a *Adaptive) Propose(ctx context.Context, window []state.Entry) (Delta, error) {
	if len(window) == 0 {
		return Delta{}, nil
	}
	return a.adapter.ProposeUpdate(ctx, window)
}

// Commit adds d to the parameters in one step. Values that would leave their
// bound are clamped and reported through a *DivergenceError; the clamped
// values are still applied. Unknown or non-finite entries are ignored.
func (a *Adaptive) Commit(d Delta) (Commit, error) {
	c := Commit{Before: a.params.Clone(), Applied: Delta{}}
	next := a.params.Clone()

	for _, name := range sortedDeltaNames(d) {
		dv := d[name]
		cur, ok := next[name]
		if !ok || !isFinite(dv) {
			c.Ignored = append(c.Ignored, name)
			continue
		}
		proposed := cur + dv
		applied := proposed
		if b, bounded := a.bounds[name]; bounded {
			var clamped bool
			applied, clamped = b.Clamp(proposed)
			if clamped {
				c.Clamped = append(c.Clamped, Clamp{Param: name, Proposed: proposed, Applied: applied, Bound: b})
			}
		}
		next[name] = applied
		c.Applied[name] = applied - cur
	}

	a.params = next
	c.After = next.Clone()

	if len(c.Clamped) > 0 {
		return c, &DivergenceError{Clamped: c.Clamped}
	}
	return c, nil
}

func sortedDeltaNames(d Delta) []string {
	return Params(d).Names()
}
