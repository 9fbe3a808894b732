package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mindstone/internal/config"
	"github.com/san-kum/mindstone/internal/experiment"
	"github.com/san-kum/mindstone/internal/session"
)

const scenarioYAML = `name: swing-up checks
description: small angle then pid
steps:
  - plant: pendulum
    preset: small
    ticks: 30
    interval: 0s
  - plant: pendulum
    law: pid
    ticks: 20
    interval: 0s
    initial: {theta: 0.3, omega: 0}
    params: {kp: 25, kd: 4}
    save_as: pid-run
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)
	assert.Equal(t, "swing-up checks", sc.Name)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, "pid-run", sc.Steps[1].SaveAs)
	require.NotNil(t, sc.Steps[0].Interval)
	assert.Zero(t, sc.Steps[0].Interval.Std())
}

func TestLoadScenarioEmpty(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, "name: nothing\n"))
	assert.Error(t, err)
}

func TestStepConfig(t *testing.T) {
	cfg, err := ScenarioStep{
		Plant:   "spring_mass",
		Law:     "pid",
		Ticks:   7,
		Params:  map[string]float64{"kp": 3},
		Physics: map[string]float64{"k": 4},
	}.Config()
	require.NoError(t, err)
	assert.Equal(t, "spring_mass", cfg.Plant)
	assert.Equal(t, 1.0, cfg.Initial["pos"])
	assert.Equal(t, 7, cfg.Session.MaxTicks)
	assert.Equal(t, 3.0, cfg.Model.Params["kp"])
	assert.Equal(t, 4.0, cfg.Physics["k"])

	_, err = ScenarioStep{Plant: "pendulum", Preset: "missing"}.Config()
	assert.Error(t, err)
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)

	var saved []string
	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), nil, func(sr StepResult) error {
		saved = append(saved, sr.Step.SaveAs)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"", "pid-run"}, saved)
	assert.Equal(t, session.ReasonCompleted, results[0].Result.Outcome.Reason)
	assert.EqualValues(t, 30, results[0].Result.Outcome.Ticks)
	assert.Equal(t, "pid", results[1].Result.Meta.Model)
}

func TestRunScenarioCanceled(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := RunScenario(ctx, sc, experiment.NewRegistry(), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestMonteCarlo(t *testing.T) {
	base := config.GetPreset("pendulum", "small")
	base.Loop.TickInterval = 0
	base.Session.MaxTicks = 20

	results, err := RunMonteCarlo(context.Background(), MonteCarloConfig{
		Base:         base,
		Perturbation: 0.05,
		Trials:       4,
		Seed:         7,
	}, experiment.NewRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, results, 4)

	stable, unstable := MonteCarloStats(results)
	assert.Equal(t, 4, stable+unstable)
	assert.NotEqual(t, results[0].Initial["theta"], results[1].Initial["theta"])
	assert.InDelta(t, base.Initial["theta"], results[0].Initial["theta"], 0.05)
	// base must not be mutated
	assert.Equal(t, config.GetPreset("pendulum", "small").Initial, base.Initial)
}
