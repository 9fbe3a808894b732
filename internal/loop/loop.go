package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/state"
)

type State int32

const (
	Idle State = iota
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Hook receives every tick report on the Run goroutine. Returning false ends
// the run after the current tick.
type Hook func(TickReport) bool

type Option func(*Loop)

func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// WithWarnInterval throttles repeated fault warnings in the log. Faults are
// always recorded on the report regardless.
func WithWarnInterval(d time.Duration) Option {
	return func(lp *Loop) { lp.warn = rate.Sometimes{Interval: d} }
}

type Loop struct {
	cfg      Config
	model    model.Model
	tunable  model.Tunable
	sensor   Sensor
	actuator Actuator
	errFn    ErrorFunc
	logger   *slog.Logger
	warn     rate.Sometimes

	mu       sync.Mutex
	state    State
	pauseReq bool
	stopReq  bool
	wake     chan struct{}

	// faults carried past the last tick when Run returned
	unreported []*Fault

	histMu sync.RWMutex
	window *state.Window

	seq         state.Sequencer
	mem         model.Memory
	lastOut     state.Output
	hasLast     bool
	pendingSeq  uint64
	pendingTick uint64
	pendingOut  state.Output
	hasPending  bool
	tick        uint64
	carried     []*Fault
	worker      *adaptWorker
}

// New builds an idle loop. Models implementing model.Tunable are adapted
// after every tick according to cfg.Adaptation.
func New(m model.Model, sensor Sensor, actuator Actuator, errFn ErrorFunc, cfg Config, opts ...Option) (*Loop, error) {
	if m == nil {
		return nil, errors.New("loop: model is required")
	}
	if sensor == nil {
		return nil, errors.New("loop: sensor is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loop: %w", err)
	}
	if cfg.Fallback == "" {
		cfg.Fallback = FallbackHoldLast
	}
	if cfg.Adaptation == "" {
		cfg.Adaptation = AdaptAsync
	}
	if actuator == nil {
		actuator = Discard
	}
	if errFn == nil {
		errFn = func(state.Output, state.Snapshot) state.Residual { return state.Residual{} }
	}
	w, err := state.NewWindow(cfg.WindowCapacity)
	if err != nil {
		return nil, fmt.Errorf("loop: %w", err)
	}

	l := &Loop{
		cfg:      cfg,
		model:    m,
		sensor:   sensor,
		actuator: actuator,
		errFn:    errFn,
		logger:   slog.Default(),
		warn:     rate.Sometimes{Interval: time.Second},
		wake:     make(chan struct{}),
		window:   w,
	}
	if t, ok := m.(model.Tunable); ok {
		l.tunable = t
		if cfg.Adaptation == AdaptAsync {
			l.worker = newAdaptWorker(t)
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("model", m.Name())
	return l, nil
}

func (l *Loop) Config() Config     { return l.cfg }
func (l *Loop) Model() model.Model { return l.model }

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Pause requests a pause at the next tick boundary.
func (l *Loop) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Stopped || l.stopReq {
		return ErrStopped
	}
	l.pauseReq = true
	return nil
}

func (l *Loop) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Stopped || l.stopReq {
		return ErrStopped
	}
	if l.pauseReq {
		l.pauseReq = false
		l.signal()
	}
	return nil
}

// Stop requests termination at the next tick boundary. It is idempotent and
// moves an idle loop straight to Stopped.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopReq {
		return
	}
	l.stopReq = true
	if l.state == Idle {
		l.state = Stopped
	}
	l.signal()
}

func (l *Loop) signal() {
	close(l.wake)
	l.wake = make(chan struct{})
}

func (l *Loop) stopRequested() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopReq
}

// History returns a detached copy of the history window.
func (l *Loop) History() []state.Entry {
	l.histMu.RLock()
	defer l.histMu.RUnlock()
	return l.window.Entries()
}

// Run ticks until Stop, a terminal fault, hook returning false, or ctx
// cancellation. It returns nil for the first and third, the terminal *Fault,
// or ctx.Err().
func (l *Loop) Run(ctx context.Context, hook Hook) error {
	l.mu.Lock()
	switch {
	case l.state == Stopped:
		l.mu.Unlock()
		return ErrStopped
	case l.state != Idle:
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.state = Running
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.state = Stopped
		l.stopReq = true
		lost := l.carried
		l.unreported, l.carried = lost, nil
		l.mu.Unlock()
		if len(lost) > 0 {
			l.logger.Warn("faults raised after the last tick", "count", len(lost))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	workerCtx, cancelWorker := context.WithCancel(gctx)
	defer func() {
		cancelWorker()
		_ = g.Wait()
	}()
	if l.worker != nil {
		g.Go(func() error { return l.worker.run(workerCtx) })
	}

	l.logger.Info("control loop started",
		"tick_interval", l.cfg.TickInterval,
		"snapshot_timeout", l.cfg.SnapshotTimeout,
		"fallback", l.cfg.Fallback,
		"adaptation", l.cfg.Adaptation,
	)

	var ticker *time.Ticker
	if l.cfg.TickInterval > 0 {
		ticker = time.NewTicker(l.cfg.TickInterval)
		defer ticker.Stop()
	}

	var lastStart time.Time
	for {
		resumed, err := l.boundary(ctx)
		if err != nil {
			if errors.Is(err, errStopRequested) {
				l.logger.Info("control loop stopped", "ticks", l.tick)
				return nil
			}
			return err
		}
		if resumed && ticker != nil {
			ticker.Reset(l.cfg.TickInterval)
			lastStart = time.Time{}
		}

		if ticker != nil && !lastStart.IsZero() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				// the ticker buffers one stale tick, so measure against the clock
				if missed := int64(time.Since(lastStart)/l.cfg.TickInterval) - 1; missed > 0 {
					l.carried = append(l.carried, &Fault{
						Tick: l.tick + 1,
						Kind: FaultTickOverrun,
						Err:  fmt.Errorf("%w: %d period(s) missed", ErrTickOverrun, missed),
					})
				}
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		lastStart = time.Now()
		report, err := l.step(ctx)
		if err != nil {
			if errors.Is(err, errStopRequested) {
				l.logger.Info("control loop stopped", "ticks", l.tick)
				return nil
			}
			return err
		}
		cont := hook == nil || hook(report)
		if report.Terminal != nil {
			return report.Terminal
		}
		if !cont {
			return nil
		}
	}
}

var errStopRequested = errors.New("loop: stop requested")

// boundary blocks while paused and reports whether the loop just resumed.
func (l *Loop) boundary(ctx context.Context) (bool, error) {
	resumed := false
	l.mu.Lock()
	for {
		if l.stopReq {
			l.mu.Unlock()
			return resumed, errStopRequested
		}
		if !l.pauseReq {
			if l.state == Paused {
				l.state = Running
				resumed = true
				l.logger.Info("control loop resumed", "tick", l.tick)
			}
			l.mu.Unlock()
			return resumed, nil
		}
		if l.state != Paused {
			l.state = Paused
			l.logger.Info("control loop paused", "tick", l.tick)
		}
		wake := l.wake
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return resumed, ctx.Err()
		case <-wake:
		}
		l.mu.Lock()
	}
}

// Tick runs exactly one tick on an idle loop, for tests and single-stepping
// tools. It returns ErrAlreadyStarted while Run owns the loop and ErrStopped
// once the loop has stopped.
func (l *Loop) Tick(ctx context.Context) (TickReport, error) {
	l.mu.Lock()
	st := l.state
	l.mu.Unlock()
	switch st {
	case Idle:
		return l.step(ctx)
	case Stopped:
		return TickReport{}, ErrStopped
	default:
		return TickReport{}, ErrAlreadyStarted
	}
}

// Unreported returns faults that were raised but never delivered on a tick
// report because the loop stopped before the next tick completed.
func (l *Loop) Unreported() []*Fault {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Fault(nil), l.unreported...)
}

func (l *Loop) step(ctx context.Context) (r TickReport, err error) {
	l.tick++
	r = TickReport{Tick: l.tick, Started: time.Now(), Faults: l.carried}
	l.carried = nil
	defer func() { r.Duration = time.Since(r.Started) }()

	snap, ok := l.acquire(ctx, &r)
	if !ok {
		ctxErr := ctx.Err()
		if ctxErr != nil || l.stopRequested() {
			// the tick never happened; keep its faults for the caller
			l.tick--
			l.carried = r.Faults
			if ctxErr != nil {
				return r, ctxErr
			}
			return r, errStopRequested
		}
		last, _ := l.seq.Last()
		f := l.record(&r, FaultSnapshotTimeout, true, last,
			fmt.Errorf("%w after %v", ErrSnapshotTimeout, l.cfg.SnapshotTimeout))
		r.Terminal = f
		return r, nil
	}
	r.Snapshot = snap

	if l.worker != nil {
		if p, ok := l.worker.poll(); ok {
			l.applyProposal(&r, p, true)
		}
	}

	if l.hasPending {
		res := l.errFn(l.pendingOut, snap)
		l.histMu.Lock()
		l.window.Finalize(l.pendingSeq, res)
		l.histMu.Unlock()
		r.Residual = res
		r.ResidualTick = l.pendingTick
		l.hasPending = false
	}

	out, mem, evalErr := l.model.Evaluate(snap, l.mem)
	if evalErr != nil {
		abort := l.cfg.Fallback == FallbackAbort
		f := l.record(&r, FaultModelEvaluation, abort, snap.Time(), evalErr)
		if abort {
			r.Terminal = f
			return r, nil
		}
		out = l.fallback(snap)
		r.Fallback = true
	} else {
		l.mem = mem
	}

	if err := l.actuator.Apply(ctx, out); err != nil {
		fatal := l.cfg.ActuatorFaultFatal
		f := l.record(&r, FaultActuator, fatal, snap.Time(), fmt.Errorf("%w: %w", ErrActuatorFault, err))
		if fatal {
			r.Terminal = f
		}
	}

	r.Output = out
	r.HasOutput = true
	l.lastOut = out
	l.hasLast = true

	l.histMu.Lock()
	l.pendingSeq = l.window.Record(snap, out)
	l.histMu.Unlock()
	l.pendingOut = out
	l.pendingTick = l.tick
	l.hasPending = true

	if r.Terminal == nil {
		l.adapt(ctx, &r)
	}
	if l.tunable != nil {
		r.Params = l.tunable.Params()
	}
	return r, nil
}

// acquire polls the sensor until a snapshot newer than the last accepted one
// arrives or the timeout budget runs out. A run of stale snapshots within one
// tick is recorded as a single fault.
func (l *Loop) acquire(ctx context.Context, r *TickReport) (state.Snapshot, bool) {
	deadline := time.Now().Add(l.cfg.SnapshotTimeout)
	rejected := false
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return state.Snapshot{}, false
		}
		snap, ok := l.sensor.Acquire(ctx, remaining)
		if !ok {
			return state.Snapshot{}, false
		}
		if err := l.seq.Accept(snap); err != nil {
			if !rejected {
				l.record(r, FaultOutOfOrderSnapshot, false, snap.Time(), err)
				rejected = true
			}
			if ctx.Err() != nil {
				return state.Snapshot{}, false
			}
			continue
		}
		return snap, true
	}
}

func (l *Loop) fallback(snap state.Snapshot) state.Output {
	if l.cfg.Fallback == FallbackHoldLast && l.hasLast {
		return l.lastOut.Hold(snap.Time())
	}
	zeros := make(map[string]float64)
	for _, ch := range l.model.Outputs() {
		zeros[ch] = 0
	}
	return state.NewOutput(snap.Time(), zeros)
}

func (l *Loop) adapt(ctx context.Context, r *TickReport) {
	if l.tunable == nil {
		return
	}
	l.histMu.RLock()
	window := l.window.Entries()
	l.histMu.RUnlock()

	if l.worker != nil {
		if !l.worker.submit(window) {
			r.AdaptationDeferred = true
		}
		return
	}
	d, err := l.tunable.Propose(ctx, window)
	l.applyProposal(r, proposal{delta: d, err: err}, false)
}

func (l *Loop) applyProposal(r *TickReport, p proposal, async bool) {
	if p.err != nil {
		if errors.Is(p.err, context.Canceled) {
			return
		}
		l.record(r, FaultAdaptation, false, r.Snapshot.Time(), p.err)
		return
	}
	if p.delta.IsEmpty() {
		return
	}
	c, err := l.tunable.Commit(p.delta)
	ev := &AdaptationEvent{Commit: c, Async: async}
	if err != nil {
		ev.Diverged = true
		l.record(r, FaultAdaptationDivergence, false, r.Snapshot.Time(), err)
	}
	r.Adaptation = ev
	l.logger.Debug("parameters updated", "tick", r.Tick, "async", async, "params", c.After)
}

func (l *Loop) record(r *TickReport, kind FaultKind, terminal bool, t float64, err error) *Fault {
	f := &Fault{Tick: r.Tick, Time: t, Kind: kind, Terminal: terminal, Err: err}
	r.Faults = append(r.Faults, f)
	if terminal {
		l.logger.Error("terminal fault", "tick", f.Tick, "kind", f.Kind, "err", err)
		return f
	}
	l.warn.Do(func() {
		l.logger.Warn("fault recorded", "tick", f.Tick, "kind", f.Kind, "err", err)
	})
	return f
}
