package ml

import (
	"testing"
	"time"

	"fnotrader/internal/signals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func trendRows(n int) []signals.Row {
	rows := make([]signals.Row, n)
	for i := range rows {
		rows[i] = signals.Row{
			Observation:   signals.Observation{Date: day(i), Close: 100 + float64(i), VWAP: 100, OISum: 1000 + 10*float64(i)},
			LongsTillNow:  10 * float64(i),
			ShortsTillNow: 5,
		}
	}
	return rows
}

func feature(t *testing.T, fv FeatureVector, name string) float64 {
	t.Helper()
	v, ok := fv.Map()[name]
	require.True(t, ok, "feature %s", name)
	return v
}

func TestBuildFeatures(t *testing.T) {
	rows := trendRows(12)
	rows[11].VWAP = 0
	fvs := BuildFeatures(rows)
	require.Len(t, fvs, 12)
	assert.Len(t, fvs[0].Values, len(FeatureNames))
	assert.Equal(t, day(3), fvs[3].Date)

	assert.Zero(t, feature(t, fvs[0], "ret_1"))
	assert.InDelta(t, 0.01, feature(t, fvs[1], "ret_1"), 1e-12)
	assert.Zero(t, feature(t, fvs[2], "ret_3"))
	assert.InDelta(t, 0.03, feature(t, fvs[3], "ret_3"), 1e-12)

	assert.Zero(t, feature(t, fvs[8], "vol_10"), "window not full")
	assert.Greater(t, feature(t, fvs[9], "vol_10"), 0.0)

	assert.Zero(t, feature(t, fvs[8], "gap_ema10"), "ema not yet available")
	assert.Greater(t, feature(t, fvs[9], "gap_ema10"), 0.0)
	assert.Zero(t, feature(t, fvs[11], "gap_ema50"))

	assert.InDelta(t, 0.01, feature(t, fvs[1], "gap_vwap"), 1e-12)
	assert.Zero(t, feature(t, fvs[11], "gap_vwap"), "missing vwap")

	assert.Equal(t, 10.0, feature(t, fvs[4], "long_diff"))
	assert.Zero(t, feature(t, fvs[4], "short_diff"))
	assert.Equal(t, 10.0, feature(t, fvs[4], "oi_diff"))
	assert.InDelta(t, 20.0/25, feature(t, fvs[2], "long_ratio"), 1e-6)
	assert.InDelta(t, 5.0/25, feature(t, fvs[2], "short_ratio"), 1e-6)

	assert.Zero(t, feature(t, fvs[5], "long_5ch"), "division by a zero counter")
	assert.InDelta(t, 60.0/10-1, feature(t, fvs[6], "long_5ch"), 1e-12)
}

func TestBuildLabels(t *testing.T) {
	got := BuildLabels([]float64{100, 101, 100.5, 100.6, 0, 5}, 0.002, -0.002)
	assert.Equal(t, []int{LabelLong, LabelShort, LabelFlat, LabelShort, LabelFlat}, got)
	assert.Nil(t, BuildLabels([]float64{1}, 0.002, -0.002))
}
