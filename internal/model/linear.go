package model

import (
	"fmt"

	"github.com/san-kum/mindstone/internal/state"
)

// Linear is full state feedback u = -K (x - ref). Gains are parameters named
// "k.<output>.<input>" and references "ref.<input>"; missing entries are 0.
type Linear struct {
	inputs  []string
	outputs []string
}

func NewLinear(inputs, outputs []string) *Linear {
	return &Linear{
		inputs:  append([]string(nil), inputs...),
		outputs: append([]string(nil), outputs...),
	}
}

func GainName(output, input string) string { return fmt.Sprintf("k.%s.%s", output, input) }
func RefName(input string) string          { return "ref." + input }

// LinearParams lays out a gain matrix (rows = outputs, cols = inputs) and
// reference vector as parameters.
func LinearParams(k [][]float64, ref []float64, inputs, outputs []string) Params {
	p := make(Params)
	for i, out := range outputs {
		for j, in := range inputs {
			g := 0.0
			if i < len(k) && j < len(k[i]) {
				g = k[i][j]
			}
			p[GainName(out, in)] = g
		}
	}
	for j, in := range inputs {
		r := 0.0
		if j < len(ref) {
			r = ref[j]
		}
		p[RefName(in)] = r
	}
	return p
}

func (l *Linear) Name() string       { return "linear" }
func (l *Linear) Required() []string { return append([]string(nil), l.inputs...) }
func (l *Linear) Outputs() []string  { return append([]string(nil), l.outputs...) }
func (l *Linear) Inputs() []string   { return append([]string(nil), l.inputs...) }

func (l *Linear) Compute(snap state.Snapshot, mem Memory, p Params) (state.Output, Memory, error) {
	vals := make(map[string]float64, len(l.outputs))
	for _, out := range l.outputs {
		u := 0.0
		for _, in := range l.inputs {
			u -= p[GainName(out, in)] * (snap.Value(in) - p[RefName(in)])
		}
		vals[out] = u
	}
	return state.NewOutput(snap.Time(), vals), mem, nil
}

var (
	pendulumGains = [][]float64{{31.62, 10.0}}
	springGains   = [][]float64{{10.0, 6.32}}
)

// PendulumLinear is an LQR-tuned regulator bringing a pendulum to rest at
// theta = 0.
func PendulumLinear() (*Linear, Params) {
	in, out := []string{"theta", "omega"}, []string{"torque"}
	return NewLinear(in, out), LinearParams(pendulumGains, nil, in, out)
}

// SpringLinear regulates a spring-mass to the origin.
func SpringLinear() (*Linear, Params) {
	in, out := []string{"pos", "vel"}, []string{"force"}
	return NewLinear(in, out), LinearParams(springGains, nil, in, out)
}
