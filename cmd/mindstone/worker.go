package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/mindstone/internal/experiment"
	"github.com/san-kum/mindstone/internal/plant"
	"github.com/san-kum/mindstone/internal/remote"
)

var (
	workerAddr      string
	workerPeriod    time.Duration
	workerComponent string
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker [plant]",
		Short: "serve a free-running plant over websocket",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWorker,
	}
	addConfigFlags(cmd)
	cmd.Flags().StringVar(&workerAddr, "addr", ":8090", "listen address")
	cmd.Flags().DurationVar(&workerPeriod, "period", 0, "publish period (default: dt)")
	cmd.Flags().StringVar(&workerComponent, "component", "", "nest observations under this component name")
	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	cfg, err := resolveConfig(cmd, name)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger()
	if err != nil {
		return err
	}
	defer closer.Close()

	p, _, err := experiment.NewPlant(experiment.NewRegistry(), cfg, plant.FreeRunning())
	if err != nil {
		return err
	}
	period := workerPeriod
	if period <= 0 {
		period = time.Duration(cfg.Dt * float64(time.Second))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := remote.NewServer(p, period,
		remote.WithComponent(workerComponent),
		remote.WithServerLogger(logger),
	)
	fmt.Printf("serving %s on %s (ws path /ws)\n", cfg.Plant, workerAddr)
	return srv.Run(ctx, workerAddr)
}
