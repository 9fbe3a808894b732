// Package plant runs a physics model as the robot a control loop drives.
//
// A Plant publishes its state as snapshots: readings named after the
// system's state channels, plus derived "energy" for Hamiltonian systems and
// "<body>.x"/"<body>.y" positions for posed ones,
// and accepts outputs whose channels match the system's control names.
//
// In lockstep mode (the default) every applied output advances the
// simulation by one dt, so a loop and a plant move together tick by tick.
// In free-running mode Run advances the simulation on its own clock and
// Apply only replaces the held command.
package plant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/san-kum/mindstone/internal/integrators"
	"github.com/san-kum/mindstone/internal/physics"
	"github.com/san-kum/mindstone/internal/state"
)

var ErrInvalidCommand = errors.New("plant: command is not finite")

type Option func(*Plant) error

func WithIntegrator(name string) Option {
	return func(p *Plant) error {
		integ, err := integrators.New(name)
		if err != nil {
			return err
		}
		p.integ = integ
		return nil
	}
}

func WithDt(dt float64) Option {
	return func(p *Plant) error {
		if dt <= 0 {
			return fmt.Errorf("dt must be positive, got %f", dt)
		}
		p.dt = dt
		return nil
	}
}

// WithInitial sets the initial state by channel name; unnamed channels
// start at zero.
func WithInitial(x map[string]float64) Option {
	return func(p *Plant) error {
		for name, v := range x {
			i := indexOf(p.states, name)
			if i < 0 {
				return fmt.Errorf("unknown state channel %q for %s", name, p.sys.Name())
			}
			p.x[i] = v
		}
		return nil
	}
}

// WithNoise adds zero-mean gaussian noise of the given standard deviation to
// every published reading.
func WithNoise(std float64, seed uint64) Option {
	return func(p *Plant) error {
		p.noise = std
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		return nil
	}
}

// FreeRunning detaches simulation steps from Apply; see Run.
func FreeRunning() Option {
	return func(p *Plant) error {
		p.lockstep = false
		return nil
	}
}

type Plant struct {
	sys      physics.System
	integ    physics.Integrator
	states   []string
	controls []string
	dt       float64
	noise    float64
	rng      *rand.Rand
	lockstep bool

	mu     sync.Mutex
	x      physics.Vector
	u      physics.Vector
	t      float64
	steps  int
	latest *state.Latest
}

func New(sys physics.System, opts ...Option) (*Plant, error) {
	p := &Plant{
		sys:      sys,
		integ:    integrators.NewRK4(),
		states:   sys.States(),
		controls: sys.Controls(),
		dt:       0.01,
		lockstep: true,
		latest:   state.NewLatest(),
	}
	p.x = make(physics.Vector, len(p.states))
	p.u = make(physics.Vector, len(p.controls))
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.publishLocked()
	return p, nil
}

func (p *Plant) System() physics.System { return p.sys }
func (p *Plant) Dt() float64            { return p.dt }

// Acquire returns the newest snapshot not yet handed out, waiting up to
// timeout for one to be published.
func (p *Plant) Acquire(ctx context.Context, timeout time.Duration) (state.Snapshot, bool) {
	return p.latest.Acquire(ctx, timeout)
}

// Apply holds out as the plant's command and, in lockstep mode, advances the
// simulation by one step.
func (p *Plant) Apply(_ context.Context, out state.Output) error {
	u := make(physics.Vector, len(p.controls))
	for i, ch := range p.controls {
		v := out.Value(ch)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidCommand, ch, v)
		}
		u[i] = v
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.u = u
	if !p.lockstep {
		return nil
	}
	return p.stepLocked()
}

// Advance steps the simulation once with the held command.
func (p *Plant) Advance() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stepLocked()
}

// Run advances a free-running plant every period until ctx is done.
func (p *Plant) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Advance(); err != nil {
				return err
			}
		}
	}
}

func (p *Plant) stepLocked() error {
	next := p.integ.Step(p.sys, p.x, p.u, p.t, p.dt)
	if !next.IsValid() {
		return &physics.StepError{Step: p.steps, Time: p.t, State: p.x.Clone(), Wrapped: physics.ErrInvalidState}
	}
	p.x = next
	p.t += p.dt
	p.steps++
	p.publishLocked()
	return nil
}

func (p *Plant) publishLocked() {
	readings := make(map[string]float64, len(p.states))
	for i, name := range p.states {
		v := p.x[i]
		if p.rng != nil && p.noise > 0 {
			v += p.rng.NormFloat64() * p.noise
		}
		readings[name] = v
	}

	h, hasEnergy := p.sys.(physics.Hamiltonian)
	posed, hasPose := p.sys.(physics.Posed)
	var derive state.DeriveFunc
	if hasEnergy || hasPose {
		x := p.x.Clone()
		derive = func(map[string]float64) map[string]float64 {
			out := make(map[string]float64)
			if hasPose {
				out = posed.Pose(x)
			}
			if hasEnergy {
				out["energy"] = h.Energy(x)
			}
			return out
		}
	}
	p.latest.Publish(state.NewSnapshot(p.t, readings, derive))
}

// Snapshot returns the latest snapshot without consuming it.
func (p *Plant) Snapshot() state.Snapshot {
	s, _ := p.latest.Peek()
	return s
}

// State returns the true (noise-free) state vector and simulation time.
func (p *Plant) State() (physics.Vector, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x.Clone(), p.t
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
