package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/mindstone/internal/experiment"
	"github.com/san-kum/mindstone/internal/metrics"
	"github.com/san-kum/mindstone/internal/optim"
)

var (
	tuneParams  []string
	tuneMetric  string
	tuneWorkers int
	tuneTop     int
)

func newTuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune [plant]",
		Short: "grid-search model parameters",
		Example: `  mindstone tune pendulum --law pid --param kp=0:40:9 --param kd=0:10:6
  mindstone tune cartpole --preset pid --metric control_effort`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTune,
	}
	addConfigFlags(cmd)
	cmd.Flags().StringArrayVar(&tuneParams, "param", nil, "parameter range name=lo:hi:n (repeatable)")
	cmd.Flags().StringVar(&tuneMetric, "metric", metrics.MeanError, "metric to minimize")
	cmd.Flags().IntVar(&tuneWorkers, "workers", 0, "concurrent sessions (0 = GOMAXPROCS)")
	cmd.Flags().IntVar(&tuneTop, "top", 5, "trials to print")
	return cmd
}

func parseRange(s string) (string, []float64, error) {
	name, bounds, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid param %q: want name=lo:hi:n", s)
	}
	parts := strings.Split(bounds, ":")
	if len(parts) != 3 {
		return "", nil, fmt.Errorf("invalid range %q: want lo:hi:n", bounds)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("param %s: %w", name, err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("param %s: %w", name, err)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 1 {
		return "", nil, fmt.Errorf("param %s: invalid count %q", name, parts[2])
	}
	return name, optim.Linspace(lo, hi, n), nil
}

func runTune(cmd *cobra.Command, args []string) error {
	if len(tuneParams) == 0 {
		return fmt.Errorf("at least one --param is required")
	}
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	base, err := resolveConfig(cmd, name)
	if err != nil {
		return err
	}
	// sessions run back to back; wall-clock pacing only slows the search
	base.Loop.TickInterval = 0

	var names []string
	var ranges [][]float64
	for _, p := range tuneParams {
		n, r, err := parseRange(p)
		if err != nil {
			return err
		}
		names = append(names, n)
		ranges = append(ranges, r)
	}

	logger, closer, err := newLogger()
	if err != nil {
		return err
	}
	defer closer.Close()

	reg := experiment.NewRegistry()
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := base.Clone()
		if cfg.Model.Params == nil {
			cfg.Model.Params = make(map[string]float64, len(params))
		}
		for k, v := range params {
			cfg.Model.Params[k] = v
		}
		return experiment.Build(reg, cfg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	gs := optim.NewGridSearch(names, ranges)
	gs.Workers = tuneWorkers
	fmt.Printf("searching %d points on %s (%s)...\n", len(gs.Points()), base.Plant, base.Model.Law)
	res, err := gs.Search(ctx, build, tuneMetric)
	if err != nil {
		return err
	}
	if res.Best == nil {
		return fmt.Errorf("no run completed with metric %s", tuneMetric)
	}

	fmt.Printf("best %s = %.6g\n", tuneMetric, res.Score)
	for _, n := range names {
		fmt.Printf("  %s = %.6g\n", n, res.Best[n])
	}
	for i, t := range res.Trials {
		if i >= tuneTop {
			break
		}
		fmt.Printf("%3d  %-12.6g %-10s %s\n", i+1, t.Score, t.Reason, formatParams(names, t.Params))
	}
	return nil
}

func formatParams(names []string, p map[string]float64) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%.4g", n, p[n])
	}
	return strings.Join(parts, " ")
}
