// Package adapt provides parameter update rules for adaptive models.
//
// Every adapter implements [model.Adapter]: it looks only at the history
// window it is handed and returns an additive [model.Delta]. An empty delta
// means "not enough information yet".
package adapt

import (
	"context"
	"math"

	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/state"
)

// Constant proposes the same delta on every call.
type Constant struct {
	Delta model.Delta
}

func NewConstant(d model.Delta) *Constant { return &Constant{Delta: d} }

func (c *Constant) Name() string { return "constant" }

func (c *Constant) ProposeUpdate(ctx context.Context, window []state.Entry) (model.Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(model.Delta, len(c.Delta))
	for k, v := range c.Delta {
		out[k] = v
	}
	return out, nil
}

// MITRule is the gradient rule dθ = -γ·e·φ averaged over the finalized
// entries of the window, where φ is the regressor channel read from each
// entry's snapshot and e its residual.
type MITRule struct {
	Param     string
	Regressor string
	// ErrorChannel selects a residual channel; empty uses Residual.Signed.
	ErrorChannel string
	Rate         float64
	MinSamples   int
	// Normalize divides the step by (Epsilon + mean φ²).
	Normalize bool
	Epsilon   float64
}

func NewMITRule(param, regressor string, rate float64) *MITRule {
	return &MITRule{Param: param, Regressor: regressor, Rate: rate, MinSamples: 1, Epsilon: 1e-6}
}

func (m *MITRule) Name() string { return "mit" }

func (m *MITRule) ProposeUpdate(ctx context.Context, window []state.Entry) (model.Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fin := state.Finalized(window)
	minSamples := m.MinSamples
	if minSamples < 1 {
		minSamples = 1
	}
	if len(fin) < minSamples {
		return model.Delta{}, nil
	}

	var grad, power float64
	n := 0
	for _, e := range fin {
		phi, ok := e.Snapshot.Lookup(m.Regressor)
		if !ok {
			continue
		}
		grad += errorOf(e.Residual, m.ErrorChannel) * phi
		power += phi * phi
		n++
	}
	if n < minSamples {
		return model.Delta{}, nil
	}
	grad /= float64(n)
	power /= float64(n)

	step := -m.Rate * grad
	if m.Normalize {
		step /= m.Epsilon + power
	}
	if step == 0 || math.IsNaN(step) {
		return model.Delta{}, nil
	}
	return model.Delta{m.Param: step}, nil
}

// NLMS adapts the gains of a [model.Linear] law with a normalized least mean
// squares step on the latest finalized entry. Regressors are the raw input
// channels of that entry's snapshot.
type NLMS struct {
	Output       string
	Inputs       []string
	ErrorChannel string
	Rate         float64
	Epsilon      float64
}

func NewNLMS(output string, inputs []string, rate float64) *NLMS {
	return &NLMS{Output: output, Inputs: append([]string(nil), inputs...), Rate: rate, Epsilon: 1e-6}
}

func (a *NLMS) Name() string { return "nlms" }

func (a *NLMS) ProposeUpdate(ctx context.Context, window []state.Entry) (model.Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fin := state.Finalized(window)
	if len(fin) == 0 {
		return model.Delta{}, nil
	}
	last := fin[len(fin)-1]
	e := errorOf(last.Residual, a.ErrorChannel)

	x := make([]float64, len(a.Inputs))
	power := a.Epsilon
	for i, in := range a.Inputs {
		v, ok := last.Snapshot.Lookup(in)
		if !ok {
			return model.Delta{}, nil
		}
		x[i] = v
		power += v * v
	}

	d := make(model.Delta, len(a.Inputs))
	for i, in := range a.Inputs {
		if step := a.Rate * e * x[i] / power; step != 0 {
			d[model.GainName(a.Output, in)] = step
		}
	}
	return d, nil
}

func errorOf(r state.Residual, channel string) float64 {
	if channel != "" {
		return r[channel]
	}
	return r.Signed()
}
