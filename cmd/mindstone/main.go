package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/san-kum/mindstone/internal/config"
	"github.com/san-kum/mindstone/internal/logging"
	"github.com/san-kum/mindstone/internal/storage"
)

var version = "dev"

var (
	dataDir  string
	driver   string
	logLevel string
	logDir   string
)

// main registers the commands and exits with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "mindstone",
		Short:         "closed-loop control runtime",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "files", "run storage driver (files, sqlite)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "write logs to this directory instead of stderr")

	rootCmd.AddCommand(
		newRunCmd(),
		newReplayCmd(),
		newWorkerCmd(),
		newTuneCmd(),
		newScenarioCmd(),
		newMonteCarloCmd(),
		newListCmd(),
		newPlotCmd(),
		newAnalyzeCmd(),
		newExportCmd(),
		newPresetsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.New(logDir, logLevel)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

// openStore opens run storage under the data directory. The sqlite driver
// keeps every run in one database file there.
func openStore(drv, dir string) (storage.Backend, error) {
	if drv == "sqlite" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		return storage.Open(drv, filepath.Join(dir, "runs.db"))
	}
	return storage.Open(drv, dir)
}
