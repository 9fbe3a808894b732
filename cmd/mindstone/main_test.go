package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	name, vals, err := parseRange("kp=0:10:3")
	require.NoError(t, err)
	assert.Equal(t, "kp", name)
	assert.Equal(t, []float64{0, 5, 10}, vals)

	for _, bad := range []string{"kp", "=0:1:2", "kp=0:1", "kp=a:1:2", "kp=0:1:0"} {
		_, _, err := parseRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestResolveConfigLayers(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--preset", "pid", "--ticks", "42", "--interval", "0s", "--fallback", "zero"}))

	cfg, err := resolveConfig(cmd, "cartpole")
	require.NoError(t, err)
	assert.Equal(t, "cartpole", cfg.Plant)
	assert.Equal(t, "pid", cfg.Model.Law)
	assert.Equal(t, 40.0, cfg.Model.Params["kp"], "preset params survive")
	assert.Equal(t, 42, cfg.Session.MaxTicks)
	assert.Equal(t, time.Duration(0), cfg.Loop.TickInterval.Std())
	assert.Equal(t, "zero", cfg.Loop.Fallback)
}

func TestResolveConfigSwitchesPlant(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--law", "zero"}))

	cfg, err := resolveConfig(cmd, "spring_mass")
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Initial["pos"])
	assert.Equal(t, "zero", cfg.Model.Law)
}

func TestResolveConfigUnknownPreset(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--preset", "nope"}))
	_, err := resolveConfig(cmd, "pendulum")
	assert.ErrorContains(t, err, "unknown preset")
}
