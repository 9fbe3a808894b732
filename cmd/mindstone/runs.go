package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/mindstone/internal/analysis"
	"github.com/san-kum/mindstone/internal/config"
	"github.com/san-kum/mindstone/internal/experiment"
	"github.com/san-kum/mindstone/internal/physics"
	"github.com/san-kum/mindstone/internal/storage"
	"github.com/san-kum/mindstone/internal/viz"
)

var (
	plotChannels []string
	plotPhase    string
	plotWidth    int
	plotHeight   int
	plotSVG      string
	analyzeCh    string
	specWidth    int
	specHeight   int
	exportFormat string
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(driver, dataDir)
			if err != nil {
				return err
			}
			defer st.Close()
			runs, err := st.List()
			if err != nil {
				return err
			}
			fmt.Println(viz.RunTable(runs))
			return nil
		},
	}
}

// loadRun returns a stored run's metadata and ticks.
func loadRun(id string) (*storage.RunMetadata, []storage.TickRow, error) {
	st, err := openStore(driver, dataDir)
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()
	meta, err := st.Load(id)
	if err != nil {
		return nil, nil, err
	}
	rows, err := st.LoadTicks(id)
	if err != nil {
		return nil, nil, err
	}
	return meta, rows, nil
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot channels of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, rows, err := loadRun(args[0])
			if err != nil {
				return err
			}
			fmt.Println(viz.Title.Render(meta.ID))

			if plotPhase != "" {
				x, y, ok := strings.Cut(plotPhase, ",")
				if !ok {
					return fmt.Errorf("--phase wants x,y")
				}
				samples := make([]map[string]float64, len(rows))
				for i, r := range rows {
					samples[i] = r.Readings
				}
				p, err := analysis.NewPortrait(samples, x, y)
				if err != nil {
					return err
				}
				if plotSVG != "" {
					xs, ys := make([]float64, len(p.Points)), make([]float64, len(p.Points))
					for i, pt := range p.Points {
						xs[i], ys[i] = pt.X, pt.Y
					}
					svg, err := viz.TrajectorySVG(xs, ys, 600, 600)
					if err != nil {
						return err
					}
					return writeSVG(plotSVG, svg)
				}
				fmt.Println(viz.Panel.Render(p.Render(plotWidth, plotHeight)))
				return nil
			}

			series := make([][]float64, 0, len(plotChannels))
			for _, ch := range plotChannels {
				s, err := viz.Channel(rows, ch)
				if err != nil {
					return err
				}
				series = append(series, s)
			}
			if plotSVG != "" {
				svg, err := viz.SeriesSVG(series, plotChannels, 800, 400)
				if err != nil {
					return err
				}
				return writeSVG(plotSVG, svg)
			}
			if len(series) == 1 {
				fmt.Println(viz.Plot(series[0], plotChannels[0], plotWidth, plotHeight))
				return nil
			}
			fmt.Println(viz.PlotMany(series, plotChannels, plotWidth, plotHeight))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&plotChannels, "channels", []string{"error"}, "channels to plot (error, out.<ch>, param.<name>, or a reading)")
	cmd.Flags().StringVar(&plotPhase, "phase", "", "draw a phase portrait of two readings, e.g. theta,omega")
	cmd.Flags().StringVar(&plotSVG, "svg", "", "write the plot to this svg file instead of the terminal")
	cmd.Flags().IntVar(&plotWidth, "width", 70, "plot width")
	cmd.Flags().IntVar(&plotHeight, "height", 15, "plot height")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency and decay analysis of one channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, rows, err := loadRun(args[0])
			if err != nil {
				return err
			}
			data, err := viz.Channel(rows, analyzeCh)
			if err != nil {
				return err
			}
			dt := sampleSpacing(meta, rows)

			freq, power, err := analysis.DominantFrequency(data, dt)
			if err != nil {
				return err
			}
			fmt.Println(viz.Title.Render(fmt.Sprintf("%s  %s", meta.ID, analyzeCh)))
			fmt.Printf("samples            %d (dt %.4g s)\n", len(data), dt)
			fmt.Printf("dominant frequency %.4g Hz (power %.4g)\n", freq, power)
			if rate, err := analysis.DecayRate(data, dt); err == nil {
				fmt.Printf("decay rate         %.4g 1/s\n", rate)
			}
			ps := analysis.PowerSpectrum(data)
			fmt.Println(viz.Plot(ps, "power spectrum", specWidth, specHeight))
			return nil
		},
	}
	cmd.Flags().StringVar(&analyzeCh, "channel", "error", "channel to analyze")
	cmd.Flags().IntVar(&specWidth, "width", 70, "plot width")
	cmd.Flags().IntVar(&specHeight, "height", 12, "plot height")
	return cmd
}

func writeSVG(path, svg string) error {
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Println("wrote", path)
	return nil
}

// sampleSpacing is the mean time between stored rows, falling back to the
// plant step.
func sampleSpacing(meta *storage.RunMetadata, rows []storage.TickRow) float64 {
	if n := len(rows); n > 1 {
		if span := rows[n-1].Time - rows[0].Time; span > 0 {
			return span / float64(n-1)
		}
	}
	return meta.Dt
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "write a stored run to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, rows, err := loadRun(args[0])
			if err != nil {
				return err
			}
			switch exportFormat {
			case "json":
				return storage.ExportJSON(os.Stdout, *meta, rows)
			case "csv":
				return storage.ExportCSV(os.Stdout, rows)
			}
			return fmt.Errorf("unknown format: %s", exportFormat)
		},
	}
	cmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json, csv)")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [plant]",
		Short: "list plants, laws, and presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			plants := reg.ListPlants()
			if len(args) > 0 {
				plants = args
			}
			for _, p := range plants {
				fmt.Printf("%s: %s\n", viz.MetricLabel.Render(p), strings.Join(config.ListPresets(p), ", "))
				cfg := config.DefaultConfig()
				cfg.SetPlant(p)
				sys, err := reg.System(cfg)
				if err != nil {
					return err
				}
				if c, ok := sys.(physics.Configurable); ok {
					params := c.GetParams()
					var kv []string
					for _, name := range physics.ParamNames(c) {
						kv = append(kv, fmt.Sprintf("%s=%g", name, params[name]))
					}
					fmt.Printf("  physics: %s\n", strings.Join(kv, " "))
				}
			}
			fmt.Printf("\nlaws:        %s\n", strings.Join(reg.ListLaws(), ", "))
			fmt.Printf("adapters:    %s\n", strings.Join(reg.ListAdapters(), ", "))
			fmt.Printf("integrators: %s\n", strings.Join(reg.ListIntegrators(), ", "))
			return nil
		},
	}
}
