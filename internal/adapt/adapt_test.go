package adapt

import (
	"context"
	"testing"

	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(seq uint64, vals map[string]float64, residual state.Residual) state.Entry {
	return state.Entry{
		Seq:       seq,
		Snapshot:  state.NewSnapshot(float64(seq), vals, nil),
		Residual:  residual,
		Finalized: residual != nil,
	}
}

func TestConstant(t *testing.T) {
	c := NewConstant(model.Delta{"gain": 0.5})

	d, err := c.ProposeUpdate(context.Background(), []state.Entry{entry(1, nil, nil)})
	require.NoError(t, err)
	assert.Equal(t, 0.5, d["gain"])

	d["gain"] = 9
	again, _ := c.ProposeUpdate(context.Background(), []state.Entry{entry(1, nil, nil)})
	assert.Equal(t, 0.5, again["gain"], "returned delta must not alias configuration")
}

func TestConstantHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewConstant(model.Delta{"g": 1}).ProposeUpdate(ctx, []state.Entry{entry(1, nil, nil)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMITRule(t *testing.T) {
	tests := []struct {
		name   string
		window []state.Entry
		want   model.Delta
	}{
		{
			name:   "only pending entries",
			window: []state.Entry{entry(1, map[string]float64{"x": 1}, nil)},
			want:   model.Delta{},
		},
		{
			name: "single finalized sample",
			window: []state.Entry{
				entry(1, map[string]float64{"x": 2}, state.Scalar(0.5)),
				entry(2, map[string]float64{"x": 3}, nil),
			},
			want: model.Delta{"gain": -0.1 * 0.5 * 2},
		},
		{
			name: "mean over samples",
			window: []state.Entry{
				entry(1, map[string]float64{"x": 1}, state.Scalar(1)),
				entry(2, map[string]float64{"x": 1}, state.Scalar(-3)),
			},
			want: model.Delta{"gain": -0.1 * (-1.0)},
		},
		{
			name:   "missing regressor",
			window: []state.Entry{entry(1, map[string]float64{"y": 1}, state.Scalar(1))},
			want:   model.Delta{},
		},
	}

	rule := NewMITRule("gain", "x", 0.1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rule.ProposeUpdate(context.Background(), tt.window)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for k, v := range tt.want {
				assert.InDelta(t, v, got[k], 1e-12)
			}
		})
	}
}

func TestMITRuleMinSamples(t *testing.T) {
	rule := NewMITRule("gain", "x", 1)
	rule.MinSamples = 3

	w := []state.Entry{
		entry(1, map[string]float64{"x": 1}, state.Scalar(1)),
		entry(2, map[string]float64{"x": 1}, state.Scalar(1)),
	}
	d, err := rule.ProposeUpdate(context.Background(), w)
	require.NoError(t, err)
	assert.True(t, d.IsEmpty())
}

func TestMITRuleNormalized(t *testing.T) {
	rule := NewMITRule("gain", "x", 1)
	rule.Normalize = true
	rule.Epsilon = 0

	w := []state.Entry{entry(1, map[string]float64{"x": 10}, state.Scalar(1))}
	d, err := rule.ProposeUpdate(context.Background(), w)
	require.NoError(t, err)
	assert.InDelta(t, -0.1, d["gain"], 1e-12)
}

func TestNLMS(t *testing.T) {
	a := NewNLMS("torque", []string{"theta", "omega"}, 0.5)
	a.Epsilon = 0

	w := []state.Entry{
		entry(1, map[string]float64{"theta": 3, "omega": 4}, state.Residual{"theta": 2}),
		entry(2, map[string]float64{"theta": 1, "omega": 1}, nil),
	}
	d, err := a.ProposeUpdate(context.Background(), w)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*2*3/25, d[model.GainName("torque", "theta")], 1e-12)
	assert.InDelta(t, 0.5*2*4/25, d[model.GainName("torque", "omega")], 1e-12)
}

func TestNLMSInsufficientWindow(t *testing.T) {
	a := NewNLMS("u", []string{"x"}, 1)
	d, err := a.ProposeUpdate(context.Background(), []state.Entry{entry(1, map[string]float64{"x": 1}, nil)})
	require.NoError(t, err)
	assert.True(t, d.IsEmpty())
}
