package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"MASSIVE_API_KEY", "POLYGON_API_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	cfg.Provider = ProviderSynthetic
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.03, cfg.DeltaMin)
	assert.Equal(t, 200.0, cfg.Range.SafetyCap)
	assert.Equal(t, 25.0, cfg.Range.MovePadding)
	assert.Equal(t, "latest_chain.json", cfg.Output.JSONPath)
}

func TestLoad_NoFileFallsBackToSynthetic(t *testing.T) {
	clearKeys(t)

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, ProviderSynthetic, cfg.Provider)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
underlying: I:SPX
provider: csv
data_dir: ./exports
delta_min: 0.05
range:
  safety_cap: 150
close:
  time: "16:00"
  location: UTC
schedule:
  interval: 5m
output:
  json_path: out/chain.json
  csv_path: out/chain.csv
`), 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "I:SPX", cfg.Underlying)
	assert.Equal(t, ProviderCSV, cfg.Provider)
	assert.Equal(t, 0.05, cfg.DeltaMin)
	assert.Equal(t, 150.0, cfg.Range.SafetyCap)
	assert.Equal(t, 25.0, cfg.Range.MovePadding, "unset nested fields keep defaults")
	assert.Equal(t, 5*time.Minute, cfg.Schedule.Interval)
	assert.Equal(t, 4*time.Minute, cfg.Schedule.Offset)
	assert.Equal(t, "out/chain.csv", cfg.Output.CSVPath)
}

func TestLoad_EnvFileSelectsMassive(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MASSIVE_API_KEY=abc123\n"), 0o644))

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, ProviderMassive, cfg.Provider)
	assert.Equal(t, "abc123", cfg.MassiveAPIKey)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	clearKeys(t)
	_, err := Load("", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("delta_min: [oops"), 0o644))

	_, err := Load(path, "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Default()
	base.Provider = ProviderSynthetic

	cases := map[string]func(*Config){
		"unknown provider":   func(c *Config) { c.Provider = "yahoo" },
		"csv without dir":    func(c *Config) { c.Provider = ProviderCSV },
		"negative delta":     func(c *Config) { c.DeltaMin = -0.1 },
		"NaN delta":          func(c *Config) { c.DeltaMin = math.NaN() },
		"infinite rate":      func(c *Config) { c.RiskFreeRate = math.Inf(1) },
		"negative cap":       func(c *Config) { c.Range.SafetyCap = -1 },
		"bad close time":     func(c *Config) { c.Close.Time = "4pm" },
		"bad close location": func(c *Config) { c.Close.Location = "Mars/Olympus" },
		"empty underlying":   func(c *Config) { c.Underlying = "" },
		"zero interval":      func(c *Config) { c.Schedule.Interval = 0 },
		"bad market zone":    func(c *Config) { c.Schedule.Location = "Mars/Olympus" },
		"no output":          func(c *Config) { c.Output.JSONPath = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCloseConfigClock(t *testing.T) {
	clock, err := CloseConfig{Time: "20:00", Location: "UTC"}.Clock()
	require.NoError(t, err)
	assert.Equal(t, 20, clock.CloseHour)
	assert.Equal(t, 0, clock.CloseMinute)
	assert.Equal(t, time.UTC, clock.Location)
}
