package ml

import (
	"math"

	"fnotrader/internal/analysis/indicator"
	"fnotrader/internal/signals"

	"gonum.org/v1/gonum/stat"
)

const (
	volWindow  = 10
	ratioEpsilon = 1e-6
)

// FeatureNames lists the model inputs in vector order.
var FeatureNames = []string{
	"ret_1", "ret_3", "ret_5",
	"vol_10",
	"gap_ema10", "gap_ema20", "gap_ema50", "gap_vwap",
	"long_diff", "short_diff", "oi_diff",
	"long_ratio", "short_ratio",
	"long_5ch", "short_5ch",
}

// BuildFeatures derives one vector per row from that row and the rows
// before it. Non-finite values become 0.
func BuildFeatures(rows []signals.Row) []FeatureVector {
	n := len(rows)
	closes := make([]float64, n)
	ltn := make([]float64, n)
	stn := make([]float64, n)
	oi := make([]float64, n)
	for i, r := range rows {
		closes[i] = r.Close
		ltn[i] = r.LongsTillNow
		stn[i] = r.ShortsTillNow
		oi[i] = r.OISum
	}
	ret1 := pctChange(closes, 1)
	ret3 := pctChange(closes, 3)
	ret5 := pctChange(closes, 5)
	long5 := pctChange(ltn, 5)
	short5 := pctChange(stn, 5)
	ema10 := indicator.EMASeries(closes, 10)
	ema20 := indicator.EMASeries(closes, 20)
	ema50 := indicator.EMASeries(closes, 50)

	out := make([]FeatureVector, n)
	for i, r := range rows {
		total := ltn[i] + stn[i] + ratioEpsilon
		vals := []float64{
			ret1[i], ret3[i], ret5[i],
			rollingStd(ret1, i, volWindow),
			gap(r.Close, ema10[i]), gap(r.Close, ema20[i]), gap(r.Close, ema50[i]), gap(r.Close, r.VWAP),
			diff(ltn, i), diff(stn, i), diff(oi, i),
			ltn[i] / total, stn[i] / total,
			long5[i], short5[i],
		}
		for j := range vals {
			vals[j] = finite(vals[j])
		}
		out[i] = FeatureVector{Date: r.Date, Names: FeatureNames, Values: vals}
	}
	return out
}

func pctChange(series []float64, k int) []float64 {
	out := make([]float64, len(series))
	for i := k; i < len(series); i++ {
		out[i] = finite(series[i]/series[i-k] - 1)
	}
	return out
}

// rollingStd is the sample std of the window ending at i; 0 until the window fills.
func rollingStd(series []float64, i, window int) float64 {
	if i+1 < window {
		return 0
	}
	return stat.StdDev(series[i+1-window:i+1], nil)
}

func gap(price, ref float64) float64 {
	if ref == 0 || math.IsNaN(ref) {
		return 0
	}
	return (price - ref) / ref
}

func diff(series []float64, i int) float64 {
	if i == 0 {
		return 0
	}
	return series[i] - series[i-1]
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
