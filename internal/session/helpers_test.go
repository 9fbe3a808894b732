package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/state"
)

// scripted replays snapshots; a zero snapshot simulates a timeout.
type scripted struct {
	mu    sync.Mutex
	snaps []state.Snapshot
	next  int
}

func (s *scripted) Acquire(ctx context.Context, _ time.Duration) (state.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.snaps) || s.snaps[s.next].IsZero() {
		s.next++
		return state.Snapshot{}, false
	}
	snap := s.snaps[s.next]
	s.next++
	return snap, true
}

func xs(vals ...float64) []state.Snapshot {
	out := make([]state.Snapshot, len(vals))
	for i, v := range vals {
		out[i] = state.NewSnapshot(float64(i+1), map[string]float64{"x": v}, nil)
	}
	return out
}

// counting is an endless sensor.
type counting struct{ n atomic.Int64 }

func (c *counting) Acquire(ctx context.Context, _ time.Duration) (state.Snapshot, bool) {
	if ctx.Err() != nil {
		return state.Snapshot{}, false
	}
	t := float64(c.n.Add(1))
	return state.NewSnapshot(t, map[string]float64{"x": t}, nil), true
}

type sink struct {
	mu   sync.Mutex
	outs []float64
}

func (s *sink) Apply(_ context.Context, out state.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outs = append(s.outs, out.Value("u"))
	return nil
}

func (s *sink) values() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.outs...)
}

func cfg() loop.Config {
	c := loop.DefaultConfig()
	c.TickInterval = 0
	c.SnapshotTimeout = 20 * time.Millisecond
	c.Adaptation = loop.AdaptSync
	return c
}

func passthrough() model.Model {
	return model.NewStatic(model.NewPassthrough(map[string]string{"x": "u"}), nil)
}
