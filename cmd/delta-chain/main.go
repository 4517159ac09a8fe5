package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/contactkeval/delta-chain/internal/engine"
	"github.com/contactkeval/delta-chain/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:          "delta-chain",
	Short:        "Fetch the same-day options chain, filter by Black-Scholes delta and save it as JSON",
	SilenceUsage: true,
	// errors are logged once in main
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, req, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		return runOnce(cmd.Context(), cfg, req, cmd.OutOrStdout())
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Repeat the fetch on a fixed cadence during market hours",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, req, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		return runSchedule(cmd.Context(), cfg, req, cmd.OutOrStdout())
	},
}

func init() {
	registerFlags(rootCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func registerFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "path to YAML config")
	flags.String("env", ".env", "path to .env file with API keys")
	flags.Float64("spot", 0, "override spot price")
	flags.Float64("delta-min", 0.03, "min |delta| to include")
	flags.Float64("em", 0, "expected move; caps range to spot ± (EM + padding)")
	flags.String("underlying", "", "underlying ticker (default from config)")
	flags.String("provider", "", "market data provider: massive, polygon, synthetic or csv")
	flags.String("data-dir", "", "directory with CSV chain exports (csv provider)")
	flags.String("out", "", "JSON output path")
	flags.String("csv", "", "optional CSV output path")
	flags.String("snapshot-dir", "", "optional directory for timestamped snapshots")
	flags.IntP("verbosity", "v", -1, "0=errors, 1=info, 2=debug, 3=trace")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, engine.ErrNoExpiries) {
			fmt.Fprintln(os.Stderr, "No expirations available")
		}
		logger.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
