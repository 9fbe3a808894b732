package model

import (
	"sort"

	"github.com/san-kum/mindstone/internal/state"
)

// Passthrough copies input channels to output channels unchanged.
type Passthrough struct {
	routes map[string]string // input -> output
	inputs []string
}

func NewPassthrough(routes map[string]string) *Passthrough {
	inputs := make([]string, 0, len(routes))
	r := make(map[string]string, len(routes))
	for in, out := range routes {
		inputs = append(inputs, in)
		r[in] = out
	}
	sort.Strings(inputs)
	return &Passthrough{routes: r, inputs: inputs}
}

func (p *Passthrough) Name() string       { return "passthrough" }
func (p *Passthrough) Required() []string { return append([]string(nil), p.inputs...) }

func (p *Passthrough) Outputs() []string {
	outs := make([]string, 0, len(p.inputs))
	for _, in := range p.inputs {
		outs = append(outs, p.routes[in])
	}
	return outs
}

func (p *Passthrough) Compute(snap state.Snapshot, mem Memory, _ Params) (state.Output, Memory, error) {
	vals := make(map[string]float64, len(p.routes))
	for _, in := range p.inputs {
		vals[p.routes[in]] = snap.Value(in)
	}
	return state.NewOutput(snap.Time(), vals), mem, nil
}

// Zero commands every output channel to zero.
type Zero struct {
	outputs []string
}

func NewZero(outputs ...string) *Zero {
	return &Zero{outputs: outputs}
}

func (z *Zero) Name() string       { return "zero" }
func (z *Zero) Required() []string { return nil }
func (z *Zero) Outputs() []string  { return append([]string(nil), z.outputs...) }

func (z *Zero) Compute(snap state.Snapshot, mem Memory, _ Params) (state.Output, Memory, error) {
	vals := make(map[string]float64, len(z.outputs))
	for _, ch := range z.outputs {
		vals[ch] = 0
	}
	return state.NewOutput(snap.Time(), vals), mem, nil
}

// Gain scales one input channel by the "gain" parameter.
type Gain struct {
	Input  string
	Output string
}

const ParamGain = "gain"

func NewGain(input, output string) *Gain {
	return &Gain{Input: input, Output: output}
}

func (g *Gain) Name() string       { return "gain" }
func (g *Gain) Required() []string { return []string{g.Input} }
func (g *Gain) Outputs() []string  { return []string{g.Output} }

func (g *Gain) Compute(snap state.Snapshot, mem Memory, p Params) (state.Output, Memory, error) {
	return state.NewOutput(snap.Time(), map[string]float64{
		g.Output: p[ParamGain] * snap.Value(g.Input),
	}), mem, nil
}
