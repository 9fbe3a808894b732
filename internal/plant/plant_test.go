package plant

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/physics"
	"github.com/san-kum/mindstone/internal/state"
)

func TestAcquireServesEachSnapshotOnce(t *testing.T) {
	p, err := New(physics.NewPendulum(), WithInitial(map[string]float64{"theta": 0.5}))
	require.NoError(t, err)
	ctx := context.Background()

	s0, ok := p.Acquire(ctx, 10*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, 0.0, s0.Time())
	assert.Equal(t, 0.5, s0.Value("theta"))
	assert.True(t, s0.Has("energy"))
	assert.InDelta(t, math.Sin(0.5), s0.Value("bob.x"), 1e-12)
	assert.InDelta(t, -math.Cos(0.5), s0.Value("bob.y"), 1e-12)

	_, ok = p.Acquire(ctx, 5*time.Millisecond)
	assert.False(t, ok, "no new snapshot without a step")

	require.NoError(t, p.Apply(ctx, state.NewOutput(0, map[string]float64{"torque": 0})))
	s1, ok := p.Acquire(ctx, 10*time.Millisecond)
	require.True(t, ok)
	assert.InDelta(t, 0.01, s1.Time(), 1e-12)
	assert.Less(t, s1.Value("theta"), 0.5)
}

func TestApplyRejectsNonFinite(t *testing.T) {
	p, err := New(physics.NewPendulum())
	require.NoError(t, err)
	err = p.Apply(context.Background(), state.NewOutput(0, map[string]float64{"torque": math.NaN()}))
	assert.True(t, errors.Is(err, ErrInvalidCommand))
}

func TestOptions(t *testing.T) {
	_, err := New(physics.NewPendulum(), WithInitial(map[string]float64{"phi": 1}))
	assert.Error(t, err)
	_, err = New(physics.NewPendulum(), WithDt(0))
	assert.Error(t, err)
	_, err = New(physics.NewPendulum(), WithIntegrator("leapfrog"))
	assert.Error(t, err)

	a, err := New(physics.NewSpringMass(), WithNoise(0.1, 7), WithInitial(map[string]float64{"pos": 1}))
	require.NoError(t, err)
	b, err := New(physics.NewSpringMass(), WithNoise(0.1, 7), WithInitial(map[string]float64{"pos": 1}))
	require.NoError(t, err)
	assert.Equal(t, a.Snapshot().Value("pos"), b.Snapshot().Value("pos"), "same seed, same noise")
	assert.NotEqual(t, 1.0, a.Snapshot().Value("pos"))
}

func TestFreeRunningPublishesOnItsOwnClock(t *testing.T) {
	p, err := New(physics.NewPendulum(), FreeRunning(), WithInitial(map[string]float64{"theta": 0.2}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx, time.Millisecond) }()

	require.NoError(t, p.Apply(ctx, state.NewOutput(0, map[string]float64{"torque": 1})))
	_, t0 := p.State()
	assert.Equal(t, 0.0, t0, "apply does not step a free-running plant")

	require.Eventually(t, func() bool {
		_, now := p.State()
		return now > 0.05
	}, time.Second, time.Millisecond)
}

func TestLinearControllerStabilizesPendulum(t *testing.T) {
	p, err := New(physics.NewPendulum(), WithInitial(map[string]float64{"theta": 0.4}))
	require.NoError(t, err)
	law, params := model.PendulumLinear()

	cfg := loop.DefaultConfig()
	cfg.TickInterval = 0
	l, err := loop.New(model.NewStatic(law, params), p, p,
		loop.TrackReference(map[string]float64{"theta": 0}), cfg)
	require.NoError(t, err)

	err = l.Run(context.Background(), func(r loop.TickReport) bool {
		require.Empty(t, r.Faults)
		return r.Tick < 500
	})
	require.NoError(t, err)

	x, now := p.State()
	assert.InDelta(t, 5.0, now, 1e-9)
	assert.Less(t, math.Abs(x[0]), 0.01)
}
