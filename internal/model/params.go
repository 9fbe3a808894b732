package model

import (
	"math"
	"sort"
)

// Params is a named parameter vector.
type Params map[string]float64

func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Delta is a signed additive adjustment per parameter.
type Delta map[string]float64

func (d Delta) IsEmpty() bool { return len(d) == 0 }

// Bound is an inclusive [Min, Max] range.
type Bound struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (b Bound) Contains(v float64) bool { return v >= b.Min && v <= b.Max }

// Clamp returns v limited to the bound and whether it had to be limited.
func (b Bound) Clamp(v float64) (float64, bool) {
	switch {
	case v < b.Min:
		return b.Min, true
	case v > b.Max:
		return b.Max, true
	}
	return v, false
}

// Bounds maps parameter names to their allowed range. Parameters without an
// entry are unbounded.
type Bounds map[string]Bound

// Clamp records one parameter that was limited during a commit.
type Clamp struct {
	Param    string
	Proposed float64
	Applied  float64
	Bound    Bound
}

// Commit describes an applied delta.
type Commit struct {
	Before  Params
	After   Params
	Applied Delta
	Clamped []Clamp
	Ignored []string
}

// Changed reports whether any parameter value moved.
func (c Commit) Changed() bool {
	for k, v := range c.After {
		if c.Before[k] != v {
			return true
		}
	}
	return false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
