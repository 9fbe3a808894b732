package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mindstone/internal/config"
	"github.com/san-kum/mindstone/internal/experiment"
	"github.com/san-kum/mindstone/internal/metrics"
)

func TestPoints(t *testing.T) {
	g := NewGridSearch([]string{"a", "b"}, [][]float64{{1, 2}, {10, 20, 30}})
	pts := g.Points()
	require.Len(t, pts, 6)
	assert.Equal(t, map[string]float64{"a": 1, "b": 10}, pts[0])
	assert.Equal(t, map[string]float64{"a": 2, "b": 30}, pts[5])
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, Linspace(0, 1, 3))
	assert.Equal(t, []float64{4}, Linspace(4, 8, 1))
}

func TestSearchFindsBestGain(t *testing.T) {
	reg := experiment.NewRegistry()
	build := func(p map[string]float64) (*experiment.Experiment, error) {
		cfg := config.GetPreset("spring_mass", "damped")
		cfg.Loop.TickInterval = 0
		cfg.Session.MaxTicks = 300
		cfg.Model.Params = p
		return experiment.Build(reg, cfg, nil)
	}

	g := NewGridSearch([]string{"k.force.vel"}, [][]float64{{0, 6.32}})
	g.Workers = 2
	res, err := g.Search(context.Background(), build, metrics.MeanError)
	require.NoError(t, err)
	require.Len(t, res.Trials, 2)
	assert.Equal(t, 6.32, res.Best["k.force.vel"], "damping should reduce mean error")
	assert.False(t, math.IsInf(res.Score, 1))
	assert.LessOrEqual(t, res.Trials[0].Score, res.Trials[1].Score)
}

func TestSearchErrors(t *testing.T) {
	g := NewGridSearch([]string{"a"}, nil)
	_, err := g.Search(context.Background(), nil, metrics.MeanError)
	assert.Error(t, err)

	g = NewGridSearch([]string{"a"}, [][]float64{{}})
	_, err = g.Search(context.Background(), nil, metrics.MeanError)
	assert.Error(t, err)

	boom := errors.New("boom")
	g = NewGridSearch([]string{"a"}, [][]float64{{1}})
	_, err = g.Search(context.Background(), func(map[string]float64) (*experiment.Experiment, error) {
		return nil, boom
	}, metrics.MeanError)
	assert.ErrorIs(t, err, boom)
}
