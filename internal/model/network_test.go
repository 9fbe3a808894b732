package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mindstone/internal/state"
)

func gains(g map[string]float64) Params {
	p := make(Params)
	for gate, v := range g {
		p[gate+"."+ParamGain] = v
	}
	return p
}

func TestNetworkChainsGates(t *testing.T) {
	n, err := NewNetwork("double", []Gate{
		{Name: "double", Law: NewGain("x", "y")},
		{Name: "triple", Law: NewGain("y", "u")},
	}, []Edge{{From: "double", To: "triple"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, n.Required())
	assert.Equal(t, []string{"u"}, n.Outputs())
	assert.Equal(t, DefaultMaxEpochs, n.MaxEpochs())

	out, mem, err := n.Compute(snap(1, map[string]float64{"x": 2}), nil, gains(map[string]float64{"double": 2, "triple": 3}))
	require.NoError(t, err)
	assert.Equal(t, []string{"u"}, out.Channels(), "only sinks reach the output")
	assert.Equal(t, 12.0, out.Value("u"))
	assert.Equal(t, 1.0, mem[memEpochs])
}

func TestNetworkConditionalRouting(t *testing.T) {
	n, err := NewNetwork("sense", []Gate{
		{Name: "sense", Law: NewPassthrough(map[string]string{"x": "a"})},
		{Name: "pos", Law: NewGain("a", "u")},
		{Name: "neg", Law: NewGain("a", "u")},
	}, []Edge{{From: "sense", To: "pos", Else: "neg", When: &Condition{Channel: "a", Op: ">", Value: 0}}}, 4)
	require.NoError(t, err)
	p := gains(map[string]float64{"pos": 1, "neg": -1})

	for _, x := range []float64{2, -2} {
		out, _, err := n.Compute(snap(1, map[string]float64{"x": x}), nil, p)
		require.NoError(t, err)
		assert.Equal(t, 2.0, out.Value("u"), "x=%v", x)
	}
}

func TestNetworkJoinWaitsForAllParents(t *testing.T) {
	n, err := NewNetwork("in", []Gate{
		{Name: "in", Law: NewPassthrough(map[string]string{"x": "a"})},
		{Name: "short", Law: NewGain("a", "p")},
		{Name: "mid", Law: NewGain("a", "m")},
		{Name: "long", Law: NewGain("m", "q")},
		{Name: "sum", Law: NewLinear([]string{"p", "q"}, []string{"u"})},
	}, []Edge{
		{From: "in", To: "short"},
		{From: "in", To: "mid"},
		{From: "mid", To: "long"},
		{From: "short", To: "sum"},
		{From: "long", To: "sum"},
	}, 0)
	require.NoError(t, err)

	p := gains(map[string]float64{"short": 1, "mid": 1, "long": 1})
	p["sum.k.u.p"], p["sum.k.u.q"] = -1, -1
	out, mem, err := n.Compute(snap(1, map[string]float64{"x": 3}), nil, p)
	require.NoError(t, err)
	assert.Equal(t, 6.0, out.Value("u"))
	assert.Equal(t, 3.0, mem[memEpochs], "sum runs once, after the longer branch")
}

func TestNetworkEpochLimit(t *testing.T) {
	// a and b double x in a cycle; out fires once b has passed 100
	build := func(limit int) *Network {
		n, err := NewNetwork("a", []Gate{
			{Name: "a", Law: NewGain("x", "x")},
			{Name: "b", Law: NewGain("x", "x")},
			{Name: "out", Law: NewPassthrough(map[string]string{"x": "u"})},
		}, []Edge{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
			{From: "b", To: "out", When: &Condition{Channel: "x", Op: ">=", Value: 100}},
		}, limit)
		require.NoError(t, err)
		return n
	}
	p := gains(map[string]float64{"a": 2, "b": 2})
	s := snap(1, map[string]float64{"x": 1})

	out, mem, err := build(8).Compute(s, nil, p)
	require.NoError(t, err)
	assert.Equal(t, 256.0, out.Value("u"))
	assert.Equal(t, 8.0, mem[memEpochs])

	in := Memory{"a.seen": 1}
	_, mem, err = build(4).Compute(s, in, p)
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.ErrorIs(t, err, ErrModelEvaluation)
	assert.Equal(t, in, mem, "memory is returned unchanged on failure")
}

func TestNetworkScopesGateMemory(t *testing.T) {
	pid := NewPID("x", "u")
	n, err := NewNetwork("ctl", []Gate{{Name: "ctl", Law: pid}}, nil, 0)
	require.NoError(t, err)
	p := GateParams("ctl", PIDParams(2, 1, 0.5, 1))

	s1 := snap(1, map[string]float64{"x": 0})
	s2 := snap(1.5, map[string]float64{"x": 0.4})
	want1, pm, _ := pid.Compute(s1, nil, PIDParams(2, 1, 0.5, 1))
	want2, _, _ := pid.Compute(s2, pm, PIDParams(2, 1, 0.5, 1))

	out1, mem, err := n.Compute(s1, nil, p)
	require.NoError(t, err)
	assert.Equal(t, want1.Values(), out1.Values())
	assert.Equal(t, pm[memPrevErr], mem["ctl."+memPrevErr])
	assert.Equal(t, 0.0, mem[memEpochs])

	out2, _, err := n.Compute(s2, mem, p)
	require.NoError(t, err)
	assert.Equal(t, want2.Values(), out2.Values())
}

func TestNetworkMissingChannelNamesGate(t *testing.T) {
	n, err := NewNetwork("sense", []Gate{
		{Name: "sense", Law: NewPassthrough(map[string]string{"x": "a"})},
		{Name: "act", Law: NewGain("b", "u")},
	}, []Edge{{From: "sense", To: "act"}}, 0)
	require.NoError(t, err)

	_, _, err = n.Compute(snap(1, map[string]float64{"x": 1}), nil, nil)
	var ee *EvalError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "network.act", ee.Model)
	assert.Equal(t, "b", ee.Channel)
}

func TestNewNetworkValidation(t *testing.T) {
	g := func(name string) Gate { return Gate{Name: name, Law: NewGain("x", "u")} }
	tests := []struct {
		name  string
		start string
		gates []Gate
		edges []Edge
	}{
		{"unknown start", "nope", []Gate{g("a")}, nil},
		{"duplicate gate", "a", []Gate{g("a"), g("a")}, nil},
		{"dotted name", "a.b", []Gate{g("a.b")}, nil},
		{"missing law", "a", []Gate{{Name: "a"}}, nil},
		{"unknown target", "a", []Gate{g("a")}, []Edge{{From: "a", To: "b"}}},
		{"isolated gate", "a", []Gate{g("a"), g("b")}, nil},
		{"else without condition", "a", []Gate{g("a"), g("b"), g("c")}, []Edge{{From: "a", To: "b", Else: "c"}}},
		{"bad operator", "a", []Gate{g("a"), g("b")}, []Edge{{From: "a", To: "b", When: &Condition{Channel: "u", Op: "~"}}}},
		{"no sink", "a", []Gate{g("a"), g("b")}, []Edge{{From: "a", To: "b"}, {From: "b", To: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNetwork(tt.start, tt.gates, tt.edges, 0)
			assert.ErrorIs(t, err, ErrInvalidNetwork)
		})
	}
}

func TestConditionHolds(t *testing.T) {
	out := state.NewOutput(0, map[string]float64{"a": -0.5})
	tests := []struct {
		c    Condition
		want bool
	}{
		{Condition{Channel: "a", Op: "<", Value: 0}, true},
		{Condition{Channel: "a", Op: "<", Value: 0, Abs: true}, false},
		{Condition{Channel: "a", Op: "<=", Value: 0.5, Abs: true}, true},
		{Condition{Channel: "a", Op: "==", Value: -0.5}, true},
		{Condition{Channel: "a", Op: "!=", Value: -0.5}, false},
		{Condition{Channel: "missing", Op: "!=", Value: 1}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.c.Holds(out), "%+v", tt.c)
	}
}
