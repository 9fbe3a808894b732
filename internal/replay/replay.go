// Package replay feeds a recorded snapshot stream back through a model.
package replay

import (
	"context"
	"sync"
	"time"

	"github.com/san-kum/mindstone/internal/state"
)

// Source is a loop.Sensor that hands out recorded snapshots in order. Once
// exhausted it reports a timeout, which ends the run.
type Source struct {
	mu    sync.Mutex
	snaps []state.Snapshot
	next  int
	pace  time.Duration
}

type Option func(*Source)

// Paced waits between snapshots as the recording did, scaled by speed
// (1 = real time). Unpaced sources replay as fast as the loop ticks.
func Paced(speed float64) Option {
	return func(s *Source) {
		if speed > 0 {
			s.pace = time.Duration(float64(time.Second) / speed)
		}
	}
}

func NewSource(snaps []state.Snapshot, opts ...Option) *Source {
	s := &Source{snaps: append([]state.Snapshot(nil), snaps...)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Len() int { return len(s.snaps) }

func (s *Source) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps) - s.next
}

func (s *Source) Acquire(ctx context.Context, timeout time.Duration) (state.Snapshot, bool) {
	s.mu.Lock()
	if s.next >= len(s.snaps) {
		s.mu.Unlock()
		return state.Snapshot{}, false
	}
	snap := s.snaps[s.next]
	var wait time.Duration
	if s.pace > 0 && s.next > 0 {
		gap := snap.Time() - s.snaps[s.next-1].Time()
		wait = time.Duration(gap * float64(s.pace))
	}
	s.next++
	s.mu.Unlock()

	if wait <= 0 {
		return snap, ctx.Err() == nil
	}
	if wait > timeout {
		return state.Snapshot{}, false
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return snap, true
	case <-ctx.Done():
		return state.Snapshot{}, false
	}
}

// Sink is a loop.Actuator that keeps every output it is given.
type Sink struct {
	mu      sync.Mutex
	outputs []state.Output
}

func (s *Sink) Apply(_ context.Context, out state.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, out)
	return nil
}

func (s *Sink) Outputs() []state.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]state.Output(nil), s.outputs...)
}

// Diff compares replayed outputs against recorded ones channel by channel
// and returns the largest absolute difference.
func Diff(recorded []map[string]float64, replayed []state.Output) float64 {
	worst := 0.0
	for i := 0; i < len(recorded) && i < len(replayed); i++ {
		for ch, want := range recorded[i] {
			d := replayed[i].Value(ch) - want
			if d < 0 {
				d = -d
			}
			if d > worst {
				worst = d
			}
		}
	}
	return worst
}
