package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/contactkeval/delta-chain/internal/config"
	"github.com/contactkeval/delta-chain/internal/data"
	"github.com/contactkeval/delta-chain/internal/engine"
	"github.com/contactkeval/delta-chain/internal/logger"
	"github.com/contactkeval/delta-chain/internal/pricing"
	"github.com/contactkeval/delta-chain/internal/report"
	"github.com/contactkeval/delta-chain/internal/scheduler"
)

// loadSettings merges config file, environment and flags.
func loadSettings(cmd *cobra.Command) (config.Config, engine.Request, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	envFile, _ := flags.GetString("env")

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return config.Config{}, engine.Request{}, err
	}

	if flags.Changed("delta-min") {
		cfg.DeltaMin, _ = flags.GetFloat64("delta-min")
	}
	for name, dst := range map[string]*string{
		"underlying":   &cfg.Underlying,
		"provider":     &cfg.Provider,
		"data-dir":     &cfg.DataDir,
		"out":          &cfg.Output.JSONPath,
		"csv":          &cfg.Output.CSVPath,
		"snapshot-dir": &cfg.Output.SnapshotDir,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if v, _ := flags.GetInt("verbosity"); v >= 0 {
		cfg.Verbosity = v
	}
	logger.SetVerbosity(cfg.Verbosity)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, engine.Request{}, fmt.Errorf("invalid config: %w", err)
	}

	req := engine.Request{DeltaMin: cfg.DeltaMin}
	if flags.Changed("spot") {
		spot, _ := flags.GetFloat64("spot")
		if !finite(spot) || spot <= 0 {
			return config.Config{}, engine.Request{}, fmt.Errorf("--spot must be a positive number, got %v", spot)
		}
		req.Spot = &spot
	}
	if flags.Changed("em") {
		em, _ := flags.GetFloat64("em")
		if !finite(em) || em < 0 {
			return config.Config{}, engine.Request{}, fmt.Errorf("--em must be a non-negative number, got %v", em)
		}
		req.ExpectedMove = &em
	}
	return cfg, req, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// newProvider picks the market data source named by the config.
func newProvider(cfg config.Config, clock pricing.Clock) (data.Provider, error) {
	switch cfg.Provider {
	case config.ProviderMassive:
		if cfg.MassiveAPIKey == "" {
			return nil, errors.New("MASSIVE_API_KEY is not set")
		}
		prov := data.NewMassiveDataProvider(cfg.MassiveAPIKey, cfg.RequestsPerSecond)
		prov.ExpiryWindow = cfg.ExpiryWindow()
		return prov, nil

	case config.ProviderPolygon:
		key := cfg.PolygonAPIKey
		if key == "" {
			key = cfg.MassiveAPIKey
		}
		if key == "" {
			return nil, errors.New("POLYGON_API_KEY is not set")
		}
		return data.NewPolygonDataProvider(key).WithExpiryWindow(cfg.ExpiryWindow()), nil

	case config.ProviderCSV:
		var secondary data.Provider
		if cfg.MassiveAPIKey != "" {
			m := data.NewMassiveDataProvider(cfg.MassiveAPIKey, cfg.RequestsPerSecond)
			m.ExpiryWindow = cfg.ExpiryWindow()
			secondary = m
		}
		return data.NewLocalCSVDataProvider(cfg.DataDir, secondary), nil

	case config.ProviderSynthetic:
		logger.Infof("synthetic provider enabled")
		return data.NewSyntheticProvider(cfg.SyntheticSpot, clock, cfg.Seed), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

func newEngine(cfg config.Config) (*engine.Engine, error) {
	clock, err := cfg.Close.Clock()
	if err != nil {
		return nil, err
	}
	prov, err := newProvider(cfg, clock)
	if err != nil {
		return nil, err
	}
	return engine.NewEngine(engine.Settings{
		Underlying:   cfg.Underlying,
		RiskFreeRate: cfg.RiskFreeRate,
		Range:        cfg.Range,
		Clock:        clock,
	}, prov), nil
}

// runOnce executes one fetch and writes the artifacts. Nothing is written
// unless the whole pipeline succeeded.
func runOnce(ctx context.Context, cfg config.Config, req engine.Request, stdout io.Writer) error {
	start := time.Now()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	return execute(ctx, eng, cfg, req, stdout, start)
}

func execute(ctx context.Context, eng *engine.Engine, cfg config.Config, req engine.Request, stdout io.Writer, start time.Time) error {
	runID := uuid.New().String()[:8]
	logger.WithFields(logger.Fields{"run": runID}).Debugf("starting run")

	out, err := eng.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	res := out.Result

	if err := report.WriteJSON(res, cfg.Output.JSONPath); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.Output.JSONPath, err)
	}
	if cfg.Output.CSVPath != "" {
		if err := report.WriteCSV(res, cfg.Output.CSVPath); err != nil {
			return fmt.Errorf("writing %s: %w", cfg.Output.CSVPath, err)
		}
	}
	if cfg.Output.SnapshotDir != "" {
		at, err := snapshotTime(time.Now(), cfg.Schedule.Location)
		if err != nil {
			return err
		}
		path, err := report.WriteSnapshot(res, cfg.Output.SnapshotDir, at)
		if err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		logger.Debugf("snapshot written to %s", path)
	}

	report.PrintSummary(stdout, report.Summary{
		Result:            res,
		HoursToExpiry:     out.HoursToExpiry(),
		ExpirySubstituted: out.ExpirySubstituted,
		OutputPath:        cfg.Output.JSONPath,
	})

	logger.WithFields(logger.Fields{
		"run":     runID,
		"calls":   len(res.Calls),
		"puts":    len(res.Puts),
		"expiry":  res.Expiry,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Infof("wrote %s", cfg.Output.JSONPath)
	return nil
}

// snapshotTime expresses now in the market time zone so snapshot folders
// follow trading days rather than the host's calendar.
func snapshotTime(now time.Time, location string) (time.Time, error) {
	loc, err := time.LoadLocation(location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule.location: %w", err)
	}
	return now.In(loc), nil
}

// runSchedule repeats runOnce on the configured market-hours cadence.
func runSchedule(ctx context.Context, cfg config.Config, req engine.Request, stdout io.Writer) error {
	loc, err := time.LoadLocation(cfg.Schedule.Location)
	if err != nil {
		return fmt.Errorf("invalid schedule.location: %w", err)
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}

	window := scheduler.Window{Location: loc, Open: cfg.Schedule.Open, Close: cfg.Schedule.Close}
	s := scheduler.New(window, cfg.Schedule.Interval, cfg.Schedule.Offset)

	logger.Infof("scheduling %s every %s between %s and %s %s",
		cfg.Underlying, cfg.Schedule.Interval, cfg.Schedule.Open, cfg.Schedule.Close, loc)

	return s.Run(ctx, func(ctx context.Context) error {
		return execute(ctx, eng, cfg, req, stdout, time.Now())
	})
}
