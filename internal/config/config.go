// Package config loads run settings from a YAML file, a .env file and the
// environment. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"
	_ "time/tzdata" // market zones resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/contactkeval/delta-chain/internal/chain"
	"github.com/contactkeval/delta-chain/internal/pricing"
)

const (
	ProviderMassive   = "massive"
	ProviderPolygon   = "polygon"
	ProviderSynthetic = "synthetic"
	ProviderCSV       = "csv"
)

// Config struct
type Config struct {
	Underlying        string            `yaml:"underlying"`          // e.g. "SPX"
	Provider          string            `yaml:"provider"`            // massive, polygon, synthetic or csv
	DataDir           string            `yaml:"data_dir"`            // csv provider directory
	SyntheticSpot     float64           `yaml:"synthetic_spot"`      // spot used by the synthetic provider
	Seed              int64             `yaml:"seed"`                // synthetic provider seed
	DeltaMin          float64           `yaml:"delta_min"`           // minimum |delta| kept
	RiskFreeRate      float64           `yaml:"risk_free_rate"`      // annual, 0 for same-day expiry
	Range             chain.RangeConfig `yaml:"range"`               // strike window
	Close             CloseConfig       `yaml:"close"`               // expiry close time
	ExpiryWindowDays  int               `yaml:"expiry_window_days"`  // how far ahead expiries are listed
	RequestsPerSecond float64           `yaml:"requests_per_second"` // HTTP pacing, 0 = unlimited
	Output            OutputConfig      `yaml:"output"`
	Schedule          ScheduleConfig    `yaml:"schedule"`
	Verbosity         int               `yaml:"verbosity"` // 0=errors,1=info,2=debug,3=trace

	MassiveAPIKey string `yaml:"-"`
	PolygonAPIKey string `yaml:"-"`
}

// CloseConfig is the time of day contracts stop trading on expiry.
// The default 20:00 UTC ignores daylight saving; setting Location to
// America/New_York and Time to 16:00 follows the real market close.
type CloseConfig struct {
	Time     string `yaml:"time"`     // "HH:MM"
	Location string `yaml:"location"` // IANA zone
}

type OutputConfig struct {
	JSONPath    string `yaml:"json_path"`
	CSVPath     string `yaml:"csv_path,omitempty"`
	SnapshotDir string `yaml:"snapshot_dir,omitempty"`
}

// ScheduleConfig drives repeated runs during market hours.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
	Offset   time.Duration `yaml:"offset"` // delay after the open before the first tick
	Location string        `yaml:"location"`
	Open     string        `yaml:"open"`
	Close    string        `yaml:"close"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Underlying:        "SPX",
		SyntheticSpot:     5000,
		Seed:              1,
		DeltaMin:          0.03,
		RiskFreeRate:      0,
		Range:             chain.DefaultRange(),
		Close:             CloseConfig{Time: "20:00", Location: "UTC"},
		ExpiryWindowDays:  14,
		RequestsPerSecond: 5,
		Output:            OutputConfig{JSONPath: "latest_chain.json"},
		Schedule: ScheduleConfig{
			Interval: 10 * time.Minute,
			Offset:   4 * time.Minute,
			Location: "America/New_York",
			Open:     "09:30",
			Close:    "16:00",
		},
		Verbosity: 1,
	}
}

// Load reads .env (if present), then the YAML file at path (if non-empty)
// over the defaults, then API keys from the environment.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config: %w", err)
		}
	}

	cfg.MassiveAPIKey = os.Getenv("MASSIVE_API_KEY")
	cfg.PolygonAPIKey = os.Getenv("POLYGON_API_KEY")

	if cfg.Provider == "" {
		cfg.Provider = ProviderSynthetic
		if cfg.MassiveAPIKey != "" {
			cfg.Provider = ProviderMassive
		}
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Underlying == "" {
		return errors.New("underlying is required")
	}
	switch c.Provider {
	case ProviderMassive, ProviderPolygon, ProviderSynthetic:
	case ProviderCSV:
		if c.DataDir == "" {
			return errors.New("data_dir is required for the csv provider")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if math.IsNaN(c.DeltaMin) || math.IsInf(c.DeltaMin, 0) || c.DeltaMin < 0 {
		return fmt.Errorf("delta_min must be a non-negative number, got %v", c.DeltaMin)
	}
	if math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0) {
		return fmt.Errorf("risk_free_rate must be finite, got %v", c.RiskFreeRate)
	}
	if c.Range.SafetyCap < 0 || c.Range.MovePadding < 0 {
		return fmt.Errorf("range values must be non-negative, got cap=%v padding=%v", c.Range.SafetyCap, c.Range.MovePadding)
	}
	if c.Output.JSONPath == "" {
		return errors.New("output.json_path is required")
	}
	if _, err := c.Close.Clock(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Schedule.Location); err != nil {
		return fmt.Errorf("invalid schedule.location: %w", err)
	}
	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be positive, got %v", c.Schedule.Interval)
	}
	return nil
}

// Clock builds the expiry clock for this close configuration.
func (c CloseConfig) Clock() (pricing.Clock, error) {
	at, err := time.Parse("15:04", c.Time)
	if err != nil {
		return pricing.Clock{}, fmt.Errorf("invalid close.time format (HH:MM): %w", err)
	}
	loc := time.UTC
	if c.Location != "" {
		if loc, err = time.LoadLocation(c.Location); err != nil {
			return pricing.Clock{}, fmt.Errorf("invalid close.location: %w", err)
		}
	}
	return pricing.Clock{
		CloseHour:   at.Hour(),
		CloseMinute: at.Minute(),
		Location:    loc,
		Now:         time.Now,
	}, nil
}

// ExpiryWindow is ExpiryWindowDays as a duration.
func (c Config) ExpiryWindow() time.Duration {
	return time.Duration(c.ExpiryWindowDays) * 24 * time.Hour
}
