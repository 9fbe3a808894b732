package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/san-kum/mindstone/internal/config"
	"github.com/san-kum/mindstone/internal/experiment"
	"github.com/san-kum/mindstone/internal/metrics"
	"github.com/san-kum/mindstone/internal/remote"
	"github.com/san-kum/mindstone/internal/session"
	"github.com/san-kum/mindstone/internal/tui"
	"github.com/san-kum/mindstone/internal/viz"
)

var (
	configFile  string
	preset      string
	dt          float64
	ticks       int
	runFor      time.Duration
	integrator  string
	law         string
	adapter     string
	rate        float64
	seed        uint64
	noise       float64
	interval    time.Duration
	timeout     time.Duration
	fallback    string
	adaptation  string
	live        bool
	remoteURL   string
	metricsAddr string
	noSave      bool
)

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "plant timestep")
	cmd.Flags().IntVar(&ticks, "ticks", config.DefaultMaxTicks, "stop after this many ticks (0 = no limit)")
	cmd.Flags().DurationVar(&runFor, "duration", 0, "stop after this much wall time")
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator")
	cmd.Flags().StringVar(&law, "law", "lqr", "control law")
	cmd.Flags().StringVar(&adapter, "adapter", "none", "parameter adapter")
	cmd.Flags().Float64Var(&rate, "rate", 0.05, "adapter learning rate")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "noise seed")
	cmd.Flags().Float64Var(&noise, "noise", 0, "sensor noise standard deviation")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Millisecond, "tick interval (0 = as fast as possible)")
	cmd.Flags().DurationVar(&timeout, "timeout", 100*time.Millisecond, "snapshot timeout")
	cmd.Flags().StringVar(&fallback, "fallback", "hold_last", "fallback policy (hold_last, zero, abort)")
	cmd.Flags().StringVar(&adaptation, "adaptation", "async", "adaptation mode (async, sync)")
}

// resolveConfig layers defaults, a preset, a config file, and changed flags,
// in that order.
func resolveConfig(cmd *cobra.Command, plant string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		name := plant
		if name == "" {
			name = cfg.Plant
		}
		cfg = config.GetPreset(name, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(name))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if plant != "" && plant != cfg.Plant {
		if preset != "" || configFile != "" {
			return nil, fmt.Errorf("plant %s does not match configured plant %s", plant, cfg.Plant)
		}
		cfg.SetPlant(plant)
	}

	f := cmd.Flags()
	if f.Changed("dt") {
		cfg.Dt = dt
	}
	if f.Changed("ticks") {
		cfg.Session.MaxTicks = ticks
	}
	if f.Changed("duration") {
		cfg.Session.Duration = config.Duration(runFor)
	}
	if f.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if f.Changed("law") {
		cfg.Model = config.ModelConfig{Law: law}
	}
	if f.Changed("adapter") {
		cfg.Adapter.Kind = adapter
	}
	if f.Changed("rate") {
		cfg.Adapter.Rate = rate
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}
	if f.Changed("noise") {
		cfg.Noise = noise
	}
	if f.Changed("interval") {
		cfg.Loop.TickInterval = config.Duration(interval)
	}
	if f.Changed("timeout") {
		cfg.Loop.SnapshotTimeout = config.Duration(timeout)
	}
	if f.Changed("fallback") {
		cfg.Loop.Fallback = fallback
	}
	if f.Changed("adaptation") {
		cfg.Loop.Adaptation = adaptation
	}
	return cfg, cfg.Validate()
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [plant]",
		Short: "run a control session against a plant",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSession,
	}
	addConfigFlags(cmd)
	cmd.Flags().BoolVar(&live, "live", false, "follow the session in a terminal monitor")
	cmd.Flags().StringVar(&remoteURL, "remote", "", "drive a remote worker (ws://host:port/ws) instead of a local plant")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	return cmd
}

func runSession(cmd *cobra.Command, args []string) error {
	plant := ""
	if len(args) > 0 {
		plant = args[0]
	}
	cfg, err := resolveConfig(cmd, plant)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exp, err := experiment.Build(experiment.NewRegistry(), cfg, logger)
	if err != nil {
		return err
	}

	if remoteURL != "" {
		client, err := remote.Dial(ctx, remoteURL, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		exp.Sensor, exp.Actuator = client, client
	}

	id := uuid.NewString()
	opts := []session.Option{session.WithID(id)}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, session.WithObservers(metrics.NewPrometheus(reg, id)))
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	var res *experiment.Result
	if live {
		res, err = runLive(ctx, exp, opts)
	} else {
		fmt.Printf("running %s session...\n", cfg.Plant)
		res, err = exp.Run(ctx, opts...)
	}
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}

	if !noSave {
		drv, dir := storageTarget(cmd, cfg)
		st, err := openStore(drv, dir)
		if err != nil {
			return err
		}
		defer st.Close()
		if _, err := st.Save(res.Meta, res.Rows); err != nil {
			return err
		}
	}

	fmt.Println(viz.Summary(res.Meta))
	return outcomeErr(res.Outcome)
}

func runLive(ctx context.Context, exp *experiment.Experiment, opts []session.Option) (*experiment.Result, error) {
	feed := tui.NewFeed(64)
	sess, rec, err := exp.NewSession(append(opts, session.WithObservers(feed))...)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	if err := sess.Start(ctx); err != nil {
		return nil, err
	}
	if _, err := tui.Run(tui.NewMonitor(sess, feed, exp.Config.Plant)); err != nil {
		sess.Stop()
		return nil, err
	}
	out := sess.Wait()
	return &experiment.Result{
		Meta:    exp.Metadata(out, started),
		Rows:    rec.Rows(),
		Outcome: out,
	}, nil
}

// storageTarget prefers the --driver and --data flags over the config's
// storage section.
func storageTarget(cmd *cobra.Command, cfg *config.Config) (string, string) {
	drv, dir := driver, dataDir
	if !cmd.Flags().Changed("driver") && cfg.Storage.Driver != "" {
		drv = cfg.Storage.Driver
	}
	if !cmd.Flags().Changed("data") && cfg.Storage.Path != "" {
		dir = cfg.Storage.Path
	}
	return drv, dir
}

func outcomeErr(out session.Outcome) error {
	if out.Reason != session.ReasonFaulted {
		return nil
	}
	if out.Fault != nil {
		return fmt.Errorf("session faulted: %w", out.Fault)
	}
	return out.Err
}
