// Package optim searches law parameters by running short sessions.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/mindstone/internal/experiment"
	"github.com/san-kum/mindstone/internal/session"
)

// Trial is one evaluated grid point.
type Trial struct {
	Params map[string]float64
	Score  float64
	Reason session.Reason
}

type Result struct {
	Best   map[string]float64
	Score  float64
	Trials []Trial
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Workers bounds concurrent sessions; zero means GOMAXPROCS.
	Workers int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Points enumerates the grid in row-major order.
func (g *GridSearch) Points() []map[string]float64 {
	if len(g.paramNames) == 0 {
		return nil
	}
	var out []map[string]float64
	g.enumerate(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		p := make(map[string]float64, len(current))
		for k, v := range current {
			p[k] = v
		}
		*out = append(*out, p)
		return
	}
	for _, val := range g.ranges[depth] {
		current[g.paramNames[depth]] = val
		g.enumerate(depth+1, current, out)
	}
}

// Search runs one session per grid point and minimizes metricName. Runs that
// do not complete score +Inf. Build errors abort the search.
func (g *GridSearch) Search(
	ctx context.Context,
	build func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (*Result, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, fmt.Errorf("%d params but %d ranges", len(g.paramNames), len(g.ranges))
	}
	points := g.Points()
	if len(points) == 0 {
		return nil, errors.New("empty grid")
	}

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trials := make([]Trial, len(points))
	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, p := range points {
		eg.Go(func() error {
			exp, err := build(p)
			if err != nil {
				return fmt.Errorf("build %v: %w", p, err)
			}
			res, err := exp.Run(ctx)
			if err != nil {
				return err
			}
			score := math.Inf(1)
			if v, ok := res.Outcome.Metrics[metricName]; ok && res.Outcome.Reason == session.ReasonCompleted && !math.IsNaN(v) {
				score = v
			}
			mu.Lock()
			trials[i] = Trial{Params: p, Score: score, Reason: res.Outcome.Reason}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Score: math.Inf(1), Trials: trials}
	for _, t := range trials {
		if t.Score < result.Score {
			result.Score = t.Score
			result.Best = t.Params
		}
	}
	sort.SliceStable(result.Trials, func(i, j int) bool { return result.Trials[i].Score < result.Trials[j].Score })
	return result, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}
