package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/delta-chain/internal/chain"
	"github.com/contactkeval/delta-chain/internal/config"
	"github.com/contactkeval/delta-chain/internal/engine"
	"github.com/contactkeval/delta-chain/internal/pricing"
)

func testConfig(t *testing.T, provider string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Provider = provider
	cfg.DataDir = t.TempDir()
	cfg.Output.JSONPath = filepath.Join(t.TempDir(), "latest_chain.json")
	cfg.Verbosity = 0
	return cfg
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func readResult(t *testing.T, path string) chain.Result {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var res chain.Result
	require.NoError(t, json.Unmarshal(b, &res))
	return res
}

func TestRunOnce_NoExpiriesWritesNothing(t *testing.T) {
	cfg := testConfig(t, config.ProviderCSV)
	spot := 5000.0

	var out bytes.Buffer
	err := runOnce(context.Background(), cfg, engine.Request{Spot: &spot, DeltaMin: 0.03}, &out)
	require.ErrorIs(t, err, engine.ErrNoExpiries)

	_, statErr := os.Stat(cfg.Output.JSONPath)
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, out.String())
}

func TestRunOnce_CSVProviderUsesNearestExpiry(t *testing.T) {
	cfg := testConfig(t, config.ProviderCSV)
	writeFile(t, cfg.DataDir, "spot.csv", "underlying,last_price\nSPX,5000\n")
	writeFile(t, cfg.DataDir, "SPX_2024-01-01_calls.csv",
		"strike,bid,ask,impliedVolatility,volume,openInterest\n"+
			"4990,12,14,0.15,10,20\n"+
			"5010,1,2,0.15,,\n")
	writeFile(t, cfg.DataDir, "SPX_2024-01-01_puts.csv",
		"strike,bid,ask,impliedVolatility,volume,openInterest\n"+
			"4990,1,2,0.16,5,6\n")

	var out bytes.Buffer
	require.NoError(t, runOnce(context.Background(), cfg, engine.Request{DeltaMin: 0.03}, &out))

	res := readResult(t, cfg.Output.JSONPath)
	assert.Equal(t, "2024-01-01", res.Expiry)
	assert.Equal(t, 5000.0, res.Spot)
	assert.Equal(t, 0.03, res.DeltaMin)
	assert.NotNil(t, res.Calls)
	assert.NotNil(t, res.Puts)
	for _, c := range res.Calls {
		assert.GreaterOrEqual(t, c.Delta, 0.03)
	}
	assert.Contains(t, out.String(), "2024-01-01")
}

func TestRunOnce_SyntheticWritesJSONAndCSV(t *testing.T) {
	cfg := testConfig(t, config.ProviderSynthetic)
	cfg.Output.CSVPath = filepath.Join(t.TempDir(), "latest_chain.csv")
	cfg.Output.SnapshotDir = filepath.Join(t.TempDir(), "snapshots")

	var out bytes.Buffer
	require.NoError(t, runOnce(context.Background(), cfg, engine.Request{DeltaMin: 0.03}, &out))

	res := readResult(t, cfg.Output.JSONPath)
	assert.Equal(t, 5000.0, res.Spot)
	assert.NotEmpty(t, res.Expiry)
	for i := 1; i < len(res.Calls); i++ {
		assert.LessOrEqual(t, res.Calls[i-1].Strike, res.Calls[i].Strike)
	}

	csvBytes, err := os.ReadFile(cfg.Output.CSVPath)
	require.NoError(t, err)
	assert.Contains(t, string(csvBytes), "strike")

	snaps, err := filepath.Glob(filepath.Join(cfg.Output.SnapshotDir, "*", "chain_*.json"))
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestNewProvider_RequiresKeys(t *testing.T) {
	clock := pricing.DefaultClock()

	cfg := config.Default()
	cfg.Provider = config.ProviderMassive
	_, err := newProvider(cfg, clock)
	assert.Error(t, err)

	cfg.Provider = config.ProviderPolygon
	_, err = newProvider(cfg, clock)
	assert.Error(t, err)

	cfg.PolygonAPIKey = "key"
	prov, err := newProvider(cfg, clock)
	require.NoError(t, err)
	assert.Nil(t, prov.Secondary())

	cfg.Provider = "bogus"
	_, err = newProvider(cfg, clock)
	assert.Error(t, err)
}

func TestNewProvider_CSVFallsBackToMassive(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = config.ProviderCSV
	cfg.DataDir = t.TempDir()

	prov, err := newProvider(cfg, pricing.DefaultClock())
	require.NoError(t, err)
	assert.Nil(t, prov.Secondary())

	cfg.MassiveAPIKey = "key"
	prov, err = newProvider(cfg, pricing.DefaultClock())
	require.NoError(t, err)
	assert.NotNil(t, prov.Secondary())
}

func settingsCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	t.Setenv("MASSIVE_API_KEY", "")
	t.Setenv("POLYGON_API_KEY", "")

	cmd := &cobra.Command{Use: "delta-chain"}
	registerFlags(cmd)
	args = append(args, "--env", "", "--provider", "synthetic", "-v", "0")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadSettings_RejectsNonFiniteOverrides(t *testing.T) {
	for _, args := range [][]string{
		{"--spot", "NaN"},
		{"--spot", "+Inf"},
		{"--spot", "0"},
		{"--em", "NaN"},
		{"--em", "Inf"},
		{"--em", "-1"},
		{"--delta-min", "NaN"},
	} {
		_, _, err := loadSettings(settingsCmd(t, args...))
		assert.Error(t, err, "%v", args)
	}
}

func TestLoadSettings_AppliesOverrides(t *testing.T) {
	_, req, err := loadSettings(settingsCmd(t, "--spot", "5001.5", "--em", "40", "--delta-min", "0.1"))
	require.NoError(t, err)

	require.NotNil(t, req.Spot)
	require.NotNil(t, req.ExpectedMove)
	assert.Equal(t, 5001.5, *req.Spot)
	assert.Equal(t, 40.0, *req.ExpectedMove)
	assert.Equal(t, 0.1, req.DeltaMin)
}

func TestSnapshotTime_FollowsMarketZone(t *testing.T) {
	// 01:30 UTC on Jan 3 is 20:30 on Jan 2 in New York
	got, err := snapshotTime(time.Date(2024, 1, 3, 1, 30, 0, 0, time.UTC), "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02 203000", got.Format("2006-01-02 150405"))

	_, err = snapshotTime(time.Now(), "Mars/Olympus")
	assert.Error(t, err)
}
