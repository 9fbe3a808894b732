// Package automation runs scripted batches of sessions: YAML scenarios that
// chain several configurations, and Monte Carlo robustness trials.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/mindstone/internal/config"
	"github.com/san-kum/mindstone/internal/experiment"
	"github.com/san-kum/mindstone/internal/session"
)

// Scenario is a named sequence of sessions run one after another.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset (or the defaults for Plant) and
// overrides selected fields.
type ScenarioStep struct {
	Plant      string             `yaml:"plant"`
	Preset     string             `yaml:"preset"`
	Integrator string             `yaml:"integrator"`
	Law        string             `yaml:"law"`
	Adapter    string             `yaml:"adapter"`
	Fallback   string             `yaml:"fallback"`
	Ticks      int                `yaml:"ticks"`
	// Interval overrides the tick interval; "0s" runs ticks back to back.
	Interval *config.Duration `yaml:"interval"`
	Initial    map[string]float64 `yaml:"initial"`
	Params     map[string]float64 `yaml:"params"`
	Physics    map[string]float64 `yaml:"physics"`
	SaveAs     string             `yaml:"save_as"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &sc, nil
}

// Config resolves a step into a validated configuration.
func (st ScenarioStep) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if st.Preset != "" {
		cfg = config.GetPreset(st.Plant, st.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %s for plant %s", st.Preset, st.Plant)
		}
	} else if st.Plant != "" {
		cfg.SetPlant(st.Plant)
	}
	if st.Integrator != "" {
		cfg.Integrator = st.Integrator
	}
	if st.Law != "" {
		cfg.Model = config.ModelConfig{Law: st.Law}
	}
	if st.Adapter != "" {
		cfg.Adapter.Kind = st.Adapter
	}
	if st.Fallback != "" {
		cfg.Loop.Fallback = st.Fallback
	}
	if st.Ticks > 0 {
		cfg.Session.MaxTicks = st.Ticks
	}
	if st.Interval != nil {
		cfg.Loop.TickInterval = *st.Interval
	}
	cfg.Initial = overlay(cfg.Initial, st.Initial)
	cfg.Model.Params = overlay(cfg.Model.Params, st.Params)
	cfg.Physics = overlay(cfg.Physics, st.Physics)
	return cfg, cfg.Validate()
}

func overlay(dst, src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]float64, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// StepResult pairs a finished session with the step that produced it.
type StepResult struct {
	Step   ScenarioStep
	Result *experiment.Result
}

// RunScenario executes every step in order. save, when non-nil, is called
// for each finished step; its error stops the scenario.
func RunScenario(
	ctx context.Context,
	sc *Scenario,
	reg *experiment.Registry,
	logger *slog.Logger,
	save func(StepResult) error,
) ([]StepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]StepResult, 0, len(sc.Steps))
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		exp, err := experiment.Build(reg, cfg, logger)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		logger.Info("scenario step", "scenario", sc.Name, "step", i+1, "of", len(sc.Steps), "plant", cfg.Plant, "law", cfg.Model.Law)
		res, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		sr := StepResult{Step: step, Result: res}
		if save != nil {
			if err := save(sr); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, sr)
	}
	return results, nil
}

// MonteCarloConfig perturbs every initial reading of Base uniformly within
// plus or minus Perturbation and runs Trials sessions.
type MonteCarloConfig struct {
	Base         *config.Config
	Perturbation float64
	Trials       int
	Seed         uint64
}

type MonteCarloResult struct {
	Trial   int
	Initial map[string]float64
	Reason  session.Reason
	Ticks   uint64
	Metrics map[string]float64
}

// Stable reports whether the trial ran to completion without a terminal fault.
func (r MonteCarloResult) Stable() bool { return r.Reason == session.ReasonCompleted }

func RunMonteCarlo(ctx context.Context, mc MonteCarloConfig, reg *experiment.Registry, logger *slog.Logger) ([]MonteCarloResult, error) {
	if mc.Base == nil {
		return nil, fmt.Errorf("monte carlo: no base config")
	}
	if mc.Trials < 1 {
		return nil, fmt.Errorf("monte carlo: trials must be positive, got %d", mc.Trials)
	}
	if logger == nil {
		logger = slog.Default()
	}
	rng := rand.New(rand.NewPCG(mc.Seed, mc.Seed^0x9e3779b97f4a7c15))

	results := make([]MonteCarloResult, 0, mc.Trials)
	for trial := 0; trial < mc.Trials; trial++ {
		cfg := mc.Base.Clone()
		initial := make(map[string]float64, len(cfg.Initial))
		for k, v := range cfg.Initial {
			initial[k] = v + (rng.Float64()-0.5)*2*mc.Perturbation
		}
		cfg.Initial = initial

		exp, err := experiment.Build(reg, cfg, logger)
		if err != nil {
			return results, err
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return results, err
		}
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		results = append(results, MonteCarloResult{
			Trial:   trial,
			Initial: initial,
			Reason:  res.Outcome.Reason,
			Ticks:   res.Outcome.Ticks,
			Metrics: res.Outcome.Metrics,
		})
		if (trial+1)%10 == 0 {
			logger.Info("monte carlo progress", "done", trial+1, "trials", mc.Trials)
		}
	}
	return results, nil
}

// MonteCarloStats counts stable and unstable trials.
func MonteCarloStats(results []MonteCarloResult) (stable, unstable int) {
	for _, r := range results {
		if r.Stable() {
			stable++
		} else {
			unstable++
		}
	}
	return
}
