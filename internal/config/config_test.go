package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
data:
  symbols: [nifty, " banknifty ", NIFTY]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"NIFTY", "BANKNIFTY"}, cfg.Data.Symbols)
	assert.Equal(t, 0.2, cfg.Signal.SDMultiplier)
	assert.Equal(t, "counter", cfg.Signal.Source)
	assert.Equal(t, 100000.0, cfg.Simulation.InvestmentAmount)
	assert.Equal(t, "leave_open", cfg.Simulation.EndPolicy)
	assert.Equal(t, "close", cfg.Simulation.Execution)
	assert.Equal(t, 0.5, cfg.Simulation.EntryBandPct)
	assert.True(t, cfg.Exits.HardStop.Enabled)
	assert.Equal(t, 5.0, cfg.Exits.HardStop.Pct)
	assert.Equal(t, 15.0, cfg.Exits.TrailingStop.Pct)
	assert.False(t, cfg.Exits.VWAPArmed.Enabled)
	assert.True(t, cfg.Calibration.Auto)
	assert.Equal(t, 10, cfg.Calibration.MinObservations)
	assert.Equal(t, -0.002, cfg.ML.DownThreshold)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
calibration:
  auto: false
exits:
  hard_stop:
    enabled: false
  vwap_armed:
    enabled: true
    long_arm_pct: 2.5
simulation:
  end_policy: FORCE_CLOSE
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Calibration.Auto)
	assert.False(t, cfg.Exits.HardStop.Enabled)
	assert.True(t, cfg.Exits.VWAPArmed.Enabled)
	assert.Equal(t, 2.5, cfg.Exits.VWAPArmed.LongArmPct)
	assert.Equal(t, 5.0, cfg.Exits.VWAPArmed.ShortArmPct)
	assert.Equal(t, "force_close", cfg.Simulation.EndPolicy)
}

func TestLoadIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
signal:
  sd_multiplier: 1.0
simulation:
  investment_amount: 10000
`)
	path := writeFile(t, dir, "config.yaml", `
include: [base.yaml]
simulation:
  investment_amount: 25000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Signal.SDMultiplier)
	assert.Equal(t, 25000.0, cfg.Simulation.InvestmentAmount, "later files override includes")
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include: [b.yaml]\n")
	writeFile(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad end policy", "simulation:\n  end_policy: drop\n", "simulation.end_policy"},
		{"bad execution", "simulation:\n  execution: vwap\n", "simulation.execution"},
		{"ml source without ml", "signal:\n  source: ml\n", "ml.enabled"},
		{"ml without endpoint", "ml:\n  enabled: true\n", "endpoint or predictions_path"},
		{"profile without path", "exits:\n  profile: tight\n", "profiles_path"},
		{"stop out of range", "exits:\n  hard_stop:\n    pct: 120\n", "exits.hard_stop.pct"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tc.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, DefaultConfigPath, ResolvePath(""))
	t.Setenv(EnvConfigPath, "/etc/fnotrader.yaml")
	assert.Equal(t, "/etc/fnotrader.yaml", ResolvePath(" "))
	assert.Equal(t, "local.yaml", ResolvePath("local.yaml"))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FNOTRADER_SIMULATION_END_POLICY", "force_close")
	t.Setenv("FNOTRADER_DATA_SYMBOLS", "infy,tcs")
	t.Setenv("FNOTRADER_EXITS_HARD_STOP_ENABLED", "false")
	path := writeFile(t, t.TempDir(), "config.yaml", `
simulation:
  end_policy: leave_open
  investment_amount: 5000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "force_close", cfg.Simulation.EndPolicy)
	assert.Equal(t, 5000.0, cfg.Simulation.InvestmentAmount)
	assert.Equal(t, []string{"INFY", "TCS"}, cfg.Data.Symbols)
	assert.False(t, cfg.Exits.HardStop.Enabled, "env value counts as explicitly set")
}
