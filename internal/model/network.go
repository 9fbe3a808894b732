package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/mindstone/internal/state"
)

// DefaultMaxEpochs bounds a network built without an explicit limit.
const DefaultMaxEpochs = 16

const memEpochs = "epochs"

var (
	ErrInvalidNetwork = errors.New("model: invalid gate network")
	// ErrUnresolved means no sink gate produced an output within the epoch
	// limit.
	ErrUnresolved = errors.New("model: gate network did not resolve")
)

// Gate is one named node of a Network.
type Gate struct {
	Name string
	Law  Law
}

// Condition compares one channel of a gate's output against Value.
type Condition struct {
	Channel string  `yaml:"channel" json:"channel"`
	Op      string  `yaml:"op" json:"op"`
	Value   float64 `yaml:"value" json:"value"`
	// Abs compares the magnitude of the channel.
	Abs bool `yaml:"abs,omitempty" json:"abs,omitempty"`
}

func (c Condition) validate() error {
	switch c.Op {
	case "==", "!=", "<", "<=", ">", ">=":
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidNetwork, c.Op)
	}
	if c.Channel == "" {
		return fmt.Errorf("%w: condition needs a channel", ErrInvalidNetwork)
	}
	return nil
}

// Holds is false when the channel is absent.
func (c Condition) Holds(out state.Output) bool {
	v, ok := out.Lookup(c.Channel)
	if !ok {
		return false
	}
	if c.Abs {
		v = math.Abs(v)
	}
	switch c.Op {
	case "==":
		return v == c.Value
	case "!=":
		return v != c.Value
	case "<":
		return v < c.Value
	case "<=":
		return v <= c.Value
	case ">":
		return v > c.Value
	case ">=":
		return v >= c.Value
	}
	return false
}

// Edge feeds the output of From into To. An unconditional edge makes To wait
// for every unconditional parent; a conditional one fires on its own when
// When holds. Else, if set, receives the output when When fails.
type Edge struct {
	From string
	To   string
	When *Condition
	Else string
}

type route struct {
	to     string
	when   *Condition
	negate bool
}

func (r route) admits(out state.Output) bool {
	if r.when == nil {
		return true
	}
	return r.when.Holds(out) != r.negate
}

// Network composes laws into a directed graph of gates. Each tick the start
// gate runs on the snapshot; every following epoch runs the gates whose
// inputs became ready, reading the snapshot overlaid with their parents'
// outputs. Gates without outgoing edges are sinks and their outputs form the
// network's output. Parameters and memory are scoped per gate as
// "<gate>.<name>".
type Network struct {
	start     string
	maxEpochs int
	order     []string
	gates     map[string]Law
	routes    map[string][]route
	joins     map[string][]string
	required  []string
	outputs   []string
}

func NewNetwork(start string, gates []Gate, edges []Edge, maxEpochs int) (*Network, error) {
	if maxEpochs <= 0 {
		maxEpochs = DefaultMaxEpochs
	}
	n := &Network{
		start:     start,
		maxEpochs: maxEpochs,
		gates:     make(map[string]Law, len(gates)),
		routes:    make(map[string][]route),
		joins:     make(map[string][]string),
	}
	for _, g := range gates {
		switch {
		case g.Name == "" || strings.Contains(g.Name, "."):
			return nil, fmt.Errorf("%w: bad gate name %q", ErrInvalidNetwork, g.Name)
		case g.Law == nil:
			return nil, fmt.Errorf("%w: gate %s has no law", ErrInvalidNetwork, g.Name)
		}
		if _, dup := n.gates[g.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate gate %s", ErrInvalidNetwork, g.Name)
		}
		n.gates[g.Name] = g.Law
		n.order = append(n.order, g.Name)
	}
	if _, ok := n.gates[start]; !ok {
		return nil, fmt.Errorf("%w: unknown start gate %q", ErrInvalidNetwork, start)
	}

	linked := map[string]bool{start: true}
	for _, e := range edges {
		for _, name := range []string{e.From, e.To, e.Else} {
			if _, ok := n.gates[name]; name != "" && !ok {
				return nil, fmt.Errorf("%w: edge references unknown gate %q", ErrInvalidNetwork, name)
			}
		}
		if e.To == "" {
			return nil, fmt.Errorf("%w: edge from %s has no target", ErrInvalidNetwork, e.From)
		}
		linked[e.From], linked[e.To] = true, true
		if e.When == nil {
			if e.Else != "" {
				return nil, fmt.Errorf("%w: else without a condition on %s->%s", ErrInvalidNetwork, e.From, e.To)
			}
			n.routes[e.From] = append(n.routes[e.From], route{to: e.To})
			n.joins[e.To] = append(n.joins[e.To], e.From)
			continue
		}
		if err := e.When.validate(); err != nil {
			return nil, err
		}
		when := *e.When
		n.routes[e.From] = append(n.routes[e.From], route{to: e.To, when: &when})
		if e.Else != "" {
			linked[e.Else] = true
			n.routes[e.From] = append(n.routes[e.From], route{to: e.Else, when: &when, negate: true})
		}
	}
	for _, name := range n.order {
		if !linked[name] {
			return nil, fmt.Errorf("%w: gate %s is isolated", ErrInvalidNetwork, name)
		}
		sort.Strings(n.joins[name])
	}

	produced := make(map[string]bool)
	reqSet := make(map[string]bool)
	outSet := make(map[string]bool)
	for _, name := range n.order {
		law := n.gates[name]
		for _, ch := range law.Outputs() {
			produced[ch] = true
			if len(n.routes[name]) == 0 {
				outSet[ch] = true
			}
		}
	}
	for _, name := range n.order {
		for _, ch := range n.gates[name].Required() {
			if !produced[ch] {
				reqSet[ch] = true
			}
		}
	}
	if len(outSet) == 0 {
		return nil, fmt.Errorf("%w: no sink gate", ErrInvalidNetwork)
	}
	n.required = sortedSet(reqSet)
	n.outputs = sortedSet(outSet)
	return n, nil
}

func (n *Network) Name() string       { return "network" }
func (n *Network) Required() []string { return n.required }
func (n *Network) Outputs() []string  { return n.outputs }
func (n *Network) MaxEpochs() int     { return n.maxEpochs }

// Gates returns the gate names in declaration order.
func (n *Network) Gates() []string { return append([]string(nil), n.order...) }

func (n *Network) Compute(snap state.Snapshot, mem Memory, p Params) (state.Output, Memory, error) {
	next := mem.Clone()
	if next == nil {
		next = Memory{}
	}
	resolved := make(map[string]float64)
	base := snap.Derived()
	if base == nil {
		base = make(map[string]float64)
	}
	for k, v := range snap.Readings() {
		base[k] = v
	}

	run := func(name string, feed map[string]float64) (state.Output, error) {
		in := make(map[string]float64, len(base)+len(feed))
		for k, v := range base {
			in[k] = v
		}
		for k, v := range feed {
			in[k] = v
		}
		gs := state.NewSnapshot(snap.Time(), in, nil)
		law := n.gates[name]
		label := n.Name() + "." + name
		if err := checkRequired(label, law.Required(), gs); err != nil {
			return state.Output{}, err
		}
		out, m, err := law.Compute(gs, Memory(scoped(name, mem)), Params(scoped(name, p)))
		if err != nil {
			var ee *EvalError
			if errors.As(err, &ee) {
				return state.Output{}, err
			}
			return state.Output{}, &EvalError{Model: label, Wrapped: err}
		}
		prefix := name + "."
		for k := range next {
			if strings.HasPrefix(k, prefix) {
				delete(next, k)
			}
		}
		for k, v := range m {
			next[prefix+k] = v
		}
		if len(n.routes[name]) == 0 {
			for k, v := range out.Values() {
				resolved[k] = v
			}
		}
		return out, nil
	}

	out, err := run(n.start, nil)
	if err != nil {
		return state.Output{}, mem, err
	}
	current := make(map[string]state.Output)
	if len(n.routes[n.start]) > 0 {
		current[n.start] = out
	}
	waiting := make(map[string]map[string]state.Output)
	epochs := 0
	for len(current) > 0 && epochs < n.maxEpochs {
		feeds := make(map[string]map[string]float64)
		for _, name := range n.order {
			out, ok := current[name]
			if !ok {
				continue
			}
			for _, r := range n.routes[name] {
				if r.when != nil {
					if r.admits(out) {
						merge(feeds, r.to, out)
					}
					continue
				}
				w := waiting[r.to]
				if w == nil {
					w = make(map[string]state.Output)
					waiting[r.to] = w
				}
				w[name] = out
				if len(w) < len(n.joins[r.to]) {
					continue
				}
				for _, parent := range n.joins[r.to] {
					merge(feeds, r.to, w[parent])
				}
				delete(waiting, r.to)
			}
		}

		current = make(map[string]state.Output, len(feeds))
		for _, name := range n.order {
			feed, ok := feeds[name]
			if !ok {
				continue
			}
			out, err := run(name, feed)
			if err != nil {
				return state.Output{}, mem, err
			}
			if len(n.routes[name]) > 0 {
				current[name] = out
			}
		}
		epochs++
	}

	if len(resolved) == 0 {
		return state.Output{}, mem, &EvalError{Model: n.Name(), Wrapped: fmt.Errorf("%w after %d epoch(s)", ErrUnresolved, epochs)}
	}
	next[memEpochs] = float64(epochs)
	return state.NewOutput(snap.Time(), resolved), next, nil
}

// GateParams scopes a gate's parameters for use in a network's vector.
func GateParams(gate string, p Params) Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[gate+"."+k] = v
	}
	return out
}

func scoped(gate string, m map[string]float64) map[string]float64 {
	prefix := gate + "."
	var out map[string]float64
	for k, v := range m {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			if out == nil {
				out = make(map[string]float64)
			}
			out[rest] = v
		}
	}
	return out
}

func merge(feeds map[string]map[string]float64, to string, out state.Output) {
	f := feeds[to]
	if f == nil {
		f = make(map[string]float64)
		feeds[to] = f
	}
	for k, v := range out.Values() {
		f[k] = v
	}
}

func sortedSet(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
