package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/state"
)

func stream(n int) []state.Snapshot {
	out := make([]state.Snapshot, n)
	for i := range out {
		out[i] = state.NewSnapshot(float64(i)*0.01, map[string]float64{"theta": float64(i)}, nil)
	}
	return out
}

func TestReplayThroughLoop(t *testing.T) {
	src := NewSource(stream(4))
	sink := &Sink{}
	cfg := loop.DefaultConfig()
	cfg.TickInterval = 0
	m := model.NewStatic(model.NewGain("theta", "torque"), model.Params{model.ParamGain: 2})

	l, err := loop.New(m, src, sink, nil, cfg)
	require.NoError(t, err)

	err = l.Run(context.Background(), func(r loop.TickReport) bool { return src.Remaining() > 0 })
	require.NoError(t, err)

	outs := sink.Outputs()
	require.Len(t, outs, 4)
	for i, o := range outs {
		assert.Equal(t, 2*float64(i), o.Value("torque"))
	}

	recorded := []map[string]float64{{"torque": 0}, {"torque": 2}, {"torque": 4.5}, {"torque": 6}}
	assert.InDelta(t, 0.5, Diff(recorded, outs), 1e-12)
}

func TestExhaustedSourceTimesOut(t *testing.T) {
	src := NewSource(stream(1))
	_, ok := src.Acquire(context.Background(), time.Millisecond)
	require.True(t, ok)
	_, ok = src.Acquire(context.Background(), time.Millisecond)
	assert.False(t, ok)
	assert.Equal(t, 0, src.Remaining())
	assert.Equal(t, 1, src.Len())
}

func TestPacedSource(t *testing.T) {
	src := NewSource(stream(3), Paced(10))
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, ok := src.Acquire(context.Background(), time.Second)
		require.True(t, ok)
	}
	// two gaps of 0.01s at 10x speed
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond)
}
