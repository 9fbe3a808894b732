// Package experiment assembles a runnable control session from a config.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/mindstone/internal/config"
	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/metrics"
	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/physics"
	"github.com/san-kum/mindstone/internal/plant"
	"github.com/san-kum/mindstone/internal/session"
	"github.com/san-kum/mindstone/internal/storage"
)

// Experiment is a plant, a model, and the loop settings that connect them.
// Sensor and Actuator default to the plant and may be replaced before Run,
// e.g. by a remote client or a replay source.
type Experiment struct {
	Config   *config.Config
	System   physics.System
	Plant    *plant.Plant
	Model    model.Model
	Adapter  model.Adapter
	ErrorFn  loop.ErrorFunc
	Loop     loop.Config
	Sensor   loop.Sensor
	Actuator loop.Actuator
	Logger   *slog.Logger
}

// Result is a finished run ready to persist.
type Result struct {
	Meta    storage.RunMetadata
	Rows    []storage.TickRow
	Outcome session.Outcome
}

func Build(r *Registry, cfg *config.Config, logger *slog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	p, sys, err := NewPlant(r, cfg)
	if err != nil {
		return nil, err
	}
	m, ad, err := r.Model(cfg, sys)
	if err != nil {
		return nil, err
	}
	errFn, err := r.ErrorFunc(cfg, sys)
	if err != nil {
		return nil, err
	}
	lc, err := cfg.LoopConfig()
	if err != nil {
		return nil, err
	}
	return &Experiment{
		Config:   cfg,
		System:   sys,
		Plant:    p,
		Model:    m,
		Adapter:  ad,
		ErrorFn:  errFn,
		Loop:     lc,
		Sensor:   p,
		Actuator: p,
		Logger:   logger,
	}, nil
}

// NewPlant builds the simulated plant described by cfg. Extra options are
// applied after the configured ones.
func NewPlant(r *Registry, cfg *config.Config, extra ...plant.Option) (*plant.Plant, physics.System, error) {
	sys, err := r.System(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := []plant.Option{
		plant.WithIntegrator(cfg.Integrator),
		plant.WithDt(cfg.Dt),
		plant.WithInitial(cfg.Initial),
	}
	if cfg.Noise > 0 {
		opts = append(opts, plant.WithNoise(cfg.Noise, cfg.Seed))
	}
	p, err := plant.New(sys, append(opts, extra...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("plant %s: %w", cfg.Plant, err)
	}
	return p, sys, nil
}

// Until returns the stop predicates configured for the session.
func (e *Experiment) Until() []session.Until {
	var preds []session.Until
	if n := e.Config.Session.MaxTicks; n > 0 {
		preds = append(preds, session.MaxTicks(uint64(n)))
	}
	if d := e.Config.Session.Duration.Std(); d > 0 {
		preds = append(preds, session.Elapsed(d))
	}
	return preds
}

// NewSession wires a loop and a session with a recorder attached.
func (e *Experiment) NewSession(opts ...session.Option) (*session.Session, *storage.Recorder, error) {
	l, err := loop.New(e.Model, e.Sensor, e.Actuator, e.ErrorFn, e.Loop, loop.WithLogger(e.Logger))
	if err != nil {
		return nil, nil, err
	}
	rec := storage.NewRecorder()
	all := []session.Option{
		session.WithLogger(e.Logger),
		session.WithObservers(rec),
		session.WithUntil(e.Until()...),
	}
	if ch := energyChannel(e.System); ch != "" {
		all = append(all, session.WithMetrics(metrics.NewEnergyDrift(ch)))
	}
	all = append(all, opts...)
	return session.New(l, all...), rec, nil
}

// Run executes a session to completion. A run that ends in a fault still
// returns a Result; the error is reserved for setup failures.
func (e *Experiment) Run(ctx context.Context, opts ...session.Option) (*Result, error) {
	s, rec, err := e.NewSession(opts...)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	out := s.Run(ctx)
	return &Result{
		Meta:    e.Metadata(out, started),
		Rows:    rec.Rows(),
		Outcome: out,
	}, nil
}

// Metadata describes a finished session for storage.
func (e *Experiment) Metadata(out session.Outcome, started time.Time) storage.RunMetadata {
	meta := storage.RunMetadata{
		ID:         storage.NewRunID(e.Config.Plant, started),
		SessionID:  out.SessionID,
		Plant:      e.Config.Plant,
		Model:      e.Model.Name(),
		Integrator: e.Config.Integrator,
		Timestamp:  started,
		Dt:         e.Config.Dt,
		Seed:       e.Config.Seed,
		Reason:     string(out.Reason),
		Ticks:      out.Ticks,
		ElapsedMs:  float64(out.Elapsed.Microseconds()) / 1000,
		Metrics:    out.Metrics,
	}
	if e.Adapter != nil {
		meta.Adapter = e.Adapter.Name()
	}
	if out.Fault != nil {
		meta.Fault = out.Fault.Error()
	} else if out.Err != nil {
		meta.Fault = out.Err.Error()
	}
	if pm, ok := e.Model.(interface{ Params() model.Params }); ok {
		meta.Params = pm.Params()
	}
	return meta
}

func energyChannel(sys physics.System) string {
	if _, ok := sys.(physics.Hamiltonian); ok {
		return "energy"
	}
	return ""
}
