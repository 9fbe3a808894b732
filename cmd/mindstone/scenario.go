package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/mindstone/internal/automation"
	"github.com/san-kum/mindstone/internal/experiment"
	"github.com/san-kum/mindstone/internal/metrics"
	"github.com/san-kum/mindstone/internal/viz"
)

var (
	mcTrials  int
	mcPerturb float64
)

func newScenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a yaml scenario in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := automation.LoadScenario(args[0])
			if err != nil {
				return err
			}
			logger, closer, err := newLogger()
			if err != nil {
				return err
			}
			defer closer.Close()
			st, err := openStore(driver, dataDir)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			fmt.Printf("scenario %s: %d steps\n", sc.Name, len(sc.Steps))
			save := func(sr automation.StepResult) error {
				id, err := st.Save(sr.Result.Meta, sr.Result.Rows)
				if err != nil {
					return err
				}
				label := id
				if sr.Step.SaveAs != "" {
					label = sr.Step.SaveAs + " (" + id + ")"
				}
				fmt.Printf("  %-40s %-10s %d ticks\n", label, sr.Result.Outcome.Reason, sr.Result.Outcome.Ticks)
				return nil
			}
			_, err = automation.RunScenario(ctx, sc, experiment.NewRegistry(), logger, save)
			return err
		},
	}
}

func newMonteCarloCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "montecarlo [plant]",
		Short: "run sessions from randomly perturbed initial states",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			cfg, err := resolveConfig(cmd, name)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				cfg.Loop.TickInterval = 0
			}
			logger, closer, err := newLogger()
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			results, err := automation.RunMonteCarlo(ctx, automation.MonteCarloConfig{
				Base:         cfg,
				Perturbation: mcPerturb,
				Trials:       mcTrials,
				Seed:         cfg.Seed,
			}, experiment.NewRegistry(), logger)
			if err != nil {
				return err
			}
			stable, unstable := automation.MonteCarloStats(results)
			errs := make([]float64, 0, len(results))
			for _, r := range results {
				errs = append(errs, r.Metrics[metrics.MeanError])
			}
			fmt.Printf("%d trials: %s stable, %s unstable\n", len(results),
				viz.StatusRunning.Render(fmt.Sprint(stable)), viz.StatusFaulted.Render(fmt.Sprint(unstable)))
			fmt.Println("mean error per trial ", viz.Sparkline(errs, 40))
			return nil
		},
	}
	addConfigFlags(cmd)
	cmd.Flags().IntVar(&mcTrials, "trials", 20, "number of trials")
	cmd.Flags().Float64Var(&mcPerturb, "perturb", 0.1, "uniform perturbation half-width applied to each initial reading")
	return cmd
}
