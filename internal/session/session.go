// Package session runs a control loop to completion and reports how it ended.
//
// A Session owns one loop.Loop. It decides when the run is complete (via
// Until predicates), aggregates metrics from every tick report, and fans
// reports out to observers on a separate goroutine so that slow observers
// never delay a tick.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/metrics"
)

var ErrAlreadyStarted = errors.New("session: already started")

// DroppedReports is the metrics key counting reports observers never saw.
const DroppedReports = "dropped_reports"

type Reason string

const (
	ReasonCompleted Reason = "completed"
	ReasonStopped   Reason = "stopped"
	ReasonFaulted   Reason = "faulted"
	ReasonCanceled  Reason = "canceled"
)

type Outcome struct {
	SessionID string
	Reason    Reason
	// Fault is the terminal fault when Reason is faulted.
	Fault *loop.Fault
	// Err is any other error that ended the run.
	Err error
	// Unreported holds faults raised after the last delivered tick report.
	Unreported []*loop.Fault
	Ticks      uint64
	Elapsed    time.Duration
	Metrics    map[string]float64
}

type Observer interface {
	OnTick(r loop.TickReport)
}

type ObserverFunc func(loop.TickReport)

func (f ObserverFunc) OnTick(r loop.TickReport) { f(r) }

type Option func(*Session)

func WithID(id string) Option { return func(s *Session) { s.id = id } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithObservers(obs ...Observer) Option {
	return func(s *Session) { s.observers = append(s.observers, obs...) }
}

// WithUntil adds completion predicates; the run completes when any holds.
func WithUntil(preds ...Until) Option {
	return func(s *Session) { s.until = append(s.until, preds...) }
}

// WithMetrics adds metrics beyond the standard set.
func WithMetrics(ms ...metrics.Metric) Option {
	return func(s *Session) {
		for _, m := range ms {
			s.metrics.Add(m)
		}
	}
}

// WithQueueSize sets how many reports may wait for observers before new
// ones are dropped.
func WithQueueSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

type Session struct {
	id        string
	loop      *loop.Loop
	logger    *slog.Logger
	observers []Observer
	until     []Until
	queueSize int
	dropWarn  rate.Sometimes

	mu        sync.Mutex
	metrics   *metrics.Set
	dropped   int
	started   bool
	completed bool
	outcome   Outcome
	done      chan struct{}
}

func New(l *loop.Loop, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		loop:      l,
		logger:    slog.Default(),
		queueSize: 256,
		dropWarn:  rate.Sometimes{Interval: time.Second},
		metrics:   metrics.Standard(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	return s
}

func (s *Session) ID() string            { return s.id }
func (s *Session) Loop() *loop.Loop      { return s.loop }
func (s *Session) State() loop.State     { return s.loop.State() }
func (s *Session) Done() <-chan struct{} { return s.done }

// Start launches the loop and the observer dispatcher and returns at once.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("session started", "model", s.loop.Model().Name())

	queue := make(chan loop.TickReport, s.queueSize)
	start := time.Now()

	var g errgroup.Group
	g.Go(func() error {
		for r := range queue {
			for _, o := range s.observers {
				o.OnTick(r)
			}
		}
		return nil
	})
	g.Go(func() error {
		defer close(queue)
		err := s.loop.Run(ctx, s.hook(queue, start))
		s.finish(err, time.Since(start))
		return nil
	})

	go func() {
		_ = g.Wait()
		close(s.done)
	}()
	return nil
}

func (s *Session) hook(queue chan<- loop.TickReport, start time.Time) loop.Hook {
	return func(r loop.TickReport) bool {
		s.mu.Lock()
		s.metrics.Observe(r)
		s.mu.Unlock()

		if len(s.observers) > 0 {
			select {
			case queue <- r:
			default:
				s.mu.Lock()
				s.dropped++
				dropped := s.dropped
				s.mu.Unlock()
				s.dropWarn.Do(func() {
					s.logger.Warn("observer queue full, dropping reports", "dropped", dropped)
				})
			}
		}

		if r.Terminal != nil {
			return false
		}
		elapsed := time.Since(start)
		for _, u := range s.until {
			if u(r, elapsed) {
				s.mu.Lock()
				s.completed = true
				s.mu.Unlock()
				return false
			}
		}
		return true
	}
}

func (s *Session) finish(err error, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Outcome{SessionID: s.id, Elapsed: elapsed}
	var fault *loop.Fault
	switch {
	case err == nil && s.completed:
		out.Reason = ReasonCompleted
	case err == nil, errors.Is(err, loop.ErrStopped):
		out.Reason = ReasonStopped
	case errors.As(err, &fault):
		out.Reason = ReasonFaulted
		out.Fault = fault
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Reason = ReasonCanceled
		out.Err = err
	default:
		out.Reason = ReasonFaulted
		out.Err = err
	}
	out.Metrics = s.snapshotLocked()
	out.Ticks = uint64(out.Metrics[metrics.TickCount])
	out.Unreported = s.loop.Unreported()
	s.outcome = out

	attrs := []any{"reason", out.Reason, "ticks", out.Ticks, "elapsed", elapsed}
	if out.Reason == ReasonFaulted {
		s.logger.Error("session ended", append(attrs, "err", err)...)
		return
	}
	s.logger.Info("session ended", attrs...)
}

// Pause and Resume take effect at the next tick boundary.
func (s *Session) Pause() error  { return s.loop.Pause() }
func (s *Session) Resume() error { return s.loop.Resume() }

// Stop ends the run at the next tick boundary. Stopping a session that was
// never started completes it immediately with no ticks.
func (s *Session) Stop() {
	s.loop.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.outcome = Outcome{
		SessionID: s.id,
		Reason:    ReasonStopped,
		Metrics:   s.snapshotLocked(),
	}
	close(s.done)
}

// Wait blocks until the session ends.
func (s *Session) Wait() Outcome {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Run starts the session and waits for it to end.
func (s *Session) Run(ctx context.Context) Outcome {
	if err := s.Start(ctx); err != nil && !errors.Is(err, ErrAlreadyStarted) {
		return Outcome{SessionID: s.id, Reason: ReasonFaulted, Err: err}
	}
	return s.Wait()
}

// MetricsSnapshot is safe to call while the session runs.
func (s *Session) MetricsSnapshot() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() map[string]float64 {
	m := s.metrics.Snapshot()
	m[DroppedReports] = float64(s.dropped)
	return m
}
