package main

import (
	"os"
	"path/filepath"
	"testing"

	"fnotrader/internal/backtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateFlag(t *testing.T) {
	d, err := parseDateFlag("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = parseDateFlag("2024-03-28")
	require.NoError(t, err)
	assert.Equal(t, 28, d.Day())

	_, err = parseDateFlag("28-03-2024")
	assert.Error(t, err)
}

func TestRunRequestFromFlags(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--symbol", "infy", "--band", "0.75", "--end-policy", "force_close", "--compounding=false",
	}))
	var f runFlags
	f.symbols, _ = cmd.Flags().GetStringSlice("symbol")
	f.band, _ = cmd.Flags().GetFloat64("band")
	f.endPolicy, _ = cmd.Flags().GetString("end-policy")

	req := f.request(cmd, f.symbols[0])
	assert.Equal(t, "infy", req.Symbol)
	assert.Equal(t, "force_close", req.EndPolicy)
	require.NotNil(t, req.EntryBandPct)
	assert.Equal(t, 0.75, *req.EntryBandPct)
	require.NotNil(t, req.Compounding, "explicit false overrides the config")
	assert.False(t, *req.Compounding)

	untouched := newRunCmd()
	req = runFlags{band: -1}.request(untouched, "INFY")
	assert.Nil(t, req.EntryBandPct)
	assert.Nil(t, req.Compounding)
}

func TestWriteOutputs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeOutputs(dir, " infy ", backtest.Result{}))
	for _, name := range []string{"INFY_ledger.csv", "INFY_trades.csv"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Positive(t, info.Size(), "header row is always written")
	}
}
