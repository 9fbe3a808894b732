package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/mindstone/internal/experiment"
	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/replay"
	"github.com/san-kum/mindstone/internal/session"
	"github.com/san-kum/mindstone/internal/storage"
)

var (
	replaySpeed float64
	replaySave  bool
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [run_id]",
		Short: "feed a stored run's snapshots through a model",
		Long: `Replays the snapshots of a stored run through a model built from the
given flags and reports how far its outputs drift from the recorded ones.`,
		Args: cobra.ExactArgs(1),
		RunE: runReplay,
	}
	addConfigFlags(cmd)
	cmd.Flags().Float64Var(&replaySpeed, "speed", 0, "pace snapshots at this multiple of real time (0 = unpaced)")
	cmd.Flags().BoolVar(&replaySave, "save", false, "store the replayed run")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	st, err := openStore(driver, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	rows, err := st.LoadTicks(args[0])
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("run %s has no ticks", args[0])
	}

	cfg, err := resolveConfig(cmd, meta.Plant)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger()
	if err != nil {
		return err
	}
	defer closer.Close()

	exp, err := experiment.Build(experiment.NewRegistry(), cfg, logger)
	if err != nil {
		return err
	}
	var opts []replay.Option
	if replaySpeed > 0 {
		opts = append(opts, replay.Paced(replaySpeed))
	}
	src := replay.NewSource(storage.Snapshots(rows), opts...)
	sink := &replay.Sink{}
	exp.Sensor, exp.Actuator = src, sink
	exp.Loop.TickInterval = 0
	if replaySpeed <= 0 {
		exp.Loop.SnapshotTimeout = 10 * time.Millisecond
	}
	// the stored run's own tick limit must not cut the replay short
	exp.Config.Session.MaxTicks = len(rows)
	exp.Config.Session.Duration = 0

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exhausted := func(loop.TickReport, time.Duration) bool { return src.Remaining() == 0 }
	res, err := exp.Run(ctx, session.WithUntil(exhausted))
	if err != nil {
		return err
	}

	recorded := make([]map[string]float64, len(rows))
	for i, r := range rows {
		recorded[i] = r.Outputs
	}
	outs := sink.Outputs()
	fmt.Printf("replayed %d of %d snapshots from %s (%s)\n", len(outs), len(rows), meta.ID, res.Outcome.Reason)
	fmt.Printf("max output difference: %.6g\n", replay.Diff(recorded, outs))

	if replaySave {
		id, err := st.Save(res.Meta, res.Rows)
		if err != nil {
			return err
		}
		fmt.Println("saved", id)
	}
	return nil
}
