// Package config loads run configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/model"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 10 * time.Second
	DefaultTheta    = 0.5
	DefaultMaxTicks = 1000
	DefaultDataDir  = ".mindstone"
)

// Error function kinds.
const (
	ErrorReference = "reference"
	ErrorCommand   = "command"
)

var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration written as a string ("10ms") in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Plant      string             `yaml:"plant"`
	Integrator string             `yaml:"integrator"`
	Dt         float64            `yaml:"dt"`
	Seed       uint64             `yaml:"seed"`
	Noise      float64            `yaml:"noise,omitempty"`
	Bodies     int                `yaml:"bodies,omitempty"`
	Physics    map[string]float64 `yaml:"physics,omitempty"`
	Initial    map[string]float64 `yaml:"initial"`
	Error      string             `yaml:"error"`
	Reference  map[string]float64 `yaml:"reference,omitempty"`
	Model      ModelConfig        `yaml:"model"`
	Adapter    AdapterConfig      `yaml:"adapter"`
	Loop       LoopConfig         `yaml:"loop"`
	Session    SessionConfig      `yaml:"session"`
	Storage    StorageConfig      `yaml:"storage"`
}

// ModelConfig selects a control law. Law "lqr" picks the tuned regulator of
// the plant and ignores Inputs and Outputs.
type ModelConfig struct {
	Law     string             `yaml:"law"`
	Inputs  []string           `yaml:"inputs,omitempty"`
	Outputs []string           `yaml:"outputs,omitempty"`
	Params  map[string]float64 `yaml:"params,omitempty"`
	Bounds  model.Bounds       `yaml:"bounds,omitempty"`
	// Network describes the gates of law "network".
	Network *NetworkConfig `yaml:"network,omitempty"`
}

// NetworkConfig wires laws into a gate network. Gate parameters are
// addressed as "<gate>.<param>" in the enclosing model's params and bounds.
type NetworkConfig struct {
	Start     string       `yaml:"start"`
	MaxEpochs int          `yaml:"max_epochs,omitempty"`
	Gates     []GateConfig `yaml:"gates"`
	Edges     []EdgeConfig `yaml:"edges,omitempty"`
}

type GateConfig struct {
	Name        string `yaml:"name"`
	ModelConfig `yaml:",inline"`
}

type EdgeConfig struct {
	From string           `yaml:"from"`
	To   string           `yaml:"to"`
	When *model.Condition `yaml:"when,omitempty"`
	Else string           `yaml:"else,omitempty"`
}

func (m ModelConfig) Clone() ModelConfig {
	out := m
	out.Inputs = append([]string(nil), m.Inputs...)
	out.Outputs = append([]string(nil), m.Outputs...)
	out.Params = cloneMap(m.Params)
	if m.Bounds != nil {
		out.Bounds = make(model.Bounds, len(m.Bounds))
		for k, v := range m.Bounds {
			out.Bounds[k] = v
		}
	}
	if m.Network != nil {
		n := *m.Network
		n.Gates = make([]GateConfig, len(m.Network.Gates))
		for i, g := range m.Network.Gates {
			n.Gates[i] = GateConfig{Name: g.Name, ModelConfig: g.ModelConfig.Clone()}
		}
		n.Edges = make([]EdgeConfig, len(m.Network.Edges))
		for i, e := range m.Network.Edges {
			n.Edges[i] = e
			if e.When != nil {
				w := *e.When
				n.Edges[i].When = &w
			}
		}
		out.Network = &n
	}
	return out
}

// AdapterConfig selects a parameter update rule. Kind "none" makes the model
// static.
type AdapterConfig struct {
	Kind         string             `yaml:"kind"`
	Param        string             `yaml:"param,omitempty"`
	Regressor    string             `yaml:"regressor,omitempty"`
	ErrorChannel string             `yaml:"error_channel,omitempty"`
	Rate         float64            `yaml:"rate,omitempty"`
	Epsilon      float64            `yaml:"epsilon,omitempty"`
	MinSamples   int                `yaml:"min_samples,omitempty"`
	Normalize    bool               `yaml:"normalize,omitempty"`
	Delta        map[string]float64 `yaml:"delta,omitempty"`
}

type LoopConfig struct {
	TickInterval       Duration `yaml:"tick_interval"`
	SnapshotTimeout    Duration `yaml:"snapshot_timeout"`
	WindowCapacity     int      `yaml:"window_capacity"`
	Fallback           string   `yaml:"fallback"`
	ActuatorFaultFatal bool     `yaml:"actuator_fault_fatal,omitempty"`
	Adaptation         string   `yaml:"adaptation"`
}

type SessionConfig struct {
	MaxTicks int      `yaml:"max_ticks"`
	Duration Duration `yaml:"duration,omitempty"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

func DefaultConfig() *Config {
	lc := loop.DefaultConfig()
	return &Config{
		Plant:      "pendulum",
		Integrator: "rk4",
		Dt:         DefaultDt,
		Initial:    map[string]float64{"theta": DefaultTheta},
		Error:      ErrorReference,
		Reference:  map[string]float64{"theta": 0},
		Model:      ModelConfig{Law: "lqr"},
		Adapter:    AdapterConfig{Kind: "none"},
		Loop: LoopConfig{
			TickInterval:    Duration(lc.TickInterval),
			SnapshotTimeout: Duration(lc.SnapshotTimeout),
			WindowCapacity:  lc.WindowCapacity,
			Fallback:        string(lc.Fallback),
			Adaptation:      string(lc.Adaptation),
		},
		Session: SessionConfig{MaxTicks: DefaultMaxTicks},
		Storage: StorageConfig{Driver: "files", Path: DefaultDataDir},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	// Channel maps depend on the plant, so they are not merged with the
	// pendulum defaults.
	cfg.Initial, cfg.Reference = nil, nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fillChannelDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetPlant switches to another plant and resets the initial state and
// reference to that plant's defaults.
func (c *Config) SetPlant(name string) {
	if name == c.Plant {
		return
	}
	c.Plant = name
	c.Initial, c.Reference = nil, nil
	c.fillChannelDefaults()
}

func (c *Config) fillChannelDefaults() {
	if c.Initial != nil || c.Reference != nil {
		return
	}
	switch c.Plant {
	case "pendulum":
		c.Initial = map[string]float64{"theta": DefaultTheta}
		c.Reference = map[string]float64{"theta": 0}
	case "spring_mass":
		c.Initial = map[string]float64{"pos": 1}
		c.Reference = map[string]float64{"pos": 0}
	case "cartpole":
		c.Initial = map[string]float64{"theta": 0.1}
		c.Reference = map[string]float64{"theta": 0}
	case "double_pendulum":
		c.Initial = map[string]float64{"theta1": 1, "theta2": 0.5}
		c.Reference = map[string]float64{"theta1": 0}
	case "drone":
		c.Initial = map[string]float64{"y": 1}
		c.Reference = map[string]float64{"y": 1}
	}
}

// LoopConfig converts the loop section.
func (c *Config) LoopConfig() (loop.Config, error) {
	fb, err := loop.ParseFallback(c.Loop.Fallback)
	if err != nil {
		return loop.Config{}, err
	}
	mode, err := loop.ParseAdaptationMode(c.Loop.Adaptation)
	if err != nil {
		return loop.Config{}, err
	}
	lc := loop.Config{
		TickInterval:       c.Loop.TickInterval.Std(),
		SnapshotTimeout:    c.Loop.SnapshotTimeout.Std(),
		WindowCapacity:     c.Loop.WindowCapacity,
		Fallback:           fb,
		ActuatorFaultFatal: c.Loop.ActuatorFaultFatal,
		Adaptation:         mode,
	}
	return lc, lc.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if c.Plant == "" {
		errs = append(errs, errors.New("plant is required"))
	}
	if c.Dt <= 0 {
		errs = append(errs, fmt.Errorf("dt must be positive, got %g", c.Dt))
	}
	if c.Noise < 0 {
		errs = append(errs, fmt.Errorf("noise must not be negative, got %g", c.Noise))
	}
	if c.Model.Law == "" {
		errs = append(errs, errors.New("model.law is required"))
	}
	if c.Model.Law == "network" && c.Model.Network == nil {
		errs = append(errs, errors.New("model.network is required for law network"))
	}
	switch c.Error {
	case "", ErrorReference, ErrorCommand:
	default:
		errs = append(errs, fmt.Errorf("unknown error function %q", c.Error))
	}
	if c.Session.MaxTicks < 0 {
		errs = append(errs, fmt.Errorf("session.max_ticks must not be negative, got %d", c.Session.MaxTicks))
	}
	switch c.Storage.Driver {
	case "", "files", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if _, err := c.LoopConfig(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Clone returns a deep copy, so presets can be handed out safely.
func (c *Config) Clone() *Config {
	out := *c
	out.Physics = cloneMap(c.Physics)
	out.Initial = cloneMap(c.Initial)
	out.Reference = cloneMap(c.Reference)
	out.Model = c.Model.Clone()
	out.Adapter.Delta = cloneMap(c.Adapter.Delta)
	return &out
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
