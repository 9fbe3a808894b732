package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/metrics"
	"github.com/san-kum/mindstone/internal/session"
	"github.com/san-kum/mindstone/internal/state"
)

func TestSlowObserverDropsInsteadOfStalling(t *testing.T) {
	release := make(chan struct{})
	slow := session.ObserverFunc(func(loop.TickReport) { <-release })

	l, err := loop.New(passthrough(), &counting{}, nil, nil, cfg())
	require.NoError(t, err)
	s := session.New(l,
		session.WithObservers(slow),
		session.WithQueueSize(1),
		session.WithUntil(session.MaxTicks(50)),
	)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return s.MetricsSnapshot()[metrics.TickCount] == 50
	}, 2*time.Second, time.Millisecond, "ticks continue while the observer is blocked")
	close(release)

	res := s.Wait()
	assert.Equal(t, session.ReasonCompleted, res.Reason)
	assert.Greater(t, res.Metrics[session.DroppedReports], 0.0)
}

func TestUntilPredicates(t *testing.T) {
	tests := []struct {
		name  string
		until session.Until
		r     loop.TickReport
		el    time.Duration
		want  bool
	}{
		{"max ticks below", session.MaxTicks(3), loop.TickReport{Tick: 2}, 0, false},
		{"max ticks reached", session.MaxTicks(3), loop.TickReport{Tick: 3}, 0, true},
		{"elapsed below", session.Elapsed(time.Second), loop.TickReport{}, time.Millisecond, false},
		{"elapsed reached", session.Elapsed(time.Second), loop.TickReport{}, time.Second, true},
		{"stop when", session.StopWhen(func(r loop.TickReport) bool { return r.Fallback }), loop.TickReport{Fallback: true}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.until(tt.r, tt.el))
		})
	}
}

func TestSessionIDs(t *testing.T) {
	newLoop := func() *loop.Loop {
		l, err := loop.New(passthrough(), &counting{}, nil, nil, cfg())
		require.NoError(t, err)
		return l
	}
	a := session.New(newLoop())
	b := session.New(newLoop())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, a.ID(), 36)

	c := session.New(newLoop(), session.WithID("bench-1"))
	assert.Equal(t, "bench-1", c.ID())
}

// staleThenStop serves one snapshot, one stale snapshot, then stops.
type staleThenStop struct {
	calls int
	stop  func()
}

func (s *staleThenStop) Acquire(context.Context, time.Duration) (state.Snapshot, bool) {
	s.calls++
	switch s.calls {
	case 1:
		return state.NewSnapshot(1, map[string]float64{"x": 1}, nil), true
	case 2:
		return state.NewSnapshot(0.5, map[string]float64{"x": 0.5}, nil), true
	}
	s.stop()
	return state.Snapshot{}, false
}

func TestOutcomeKeepsFaultsOfPreemptedTick(t *testing.T) {
	sensor := &staleThenStop{}
	l, err := loop.New(passthrough(), sensor, nil, nil, cfg())
	require.NoError(t, err)
	s := session.New(l)
	sensor.stop = s.Stop

	res := s.Run(context.Background())
	assert.Equal(t, session.ReasonStopped, res.Reason)
	assert.EqualValues(t, 1, res.Ticks)
	require.Len(t, res.Unreported, 1)
	assert.Equal(t, loop.FaultOutOfOrderSnapshot, res.Unreported[0].Kind)
}
