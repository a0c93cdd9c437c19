package signals

import (
	"math"

	"fnotrader/internal/logger"
	"fnotrader/internal/types"
)

// CounterConfig drives the LTN/STN counter signal generator.
type CounterConfig struct {
	// DifferenceThresholdPct is the share of the day's OI sum (in percent)
	// the LTN-STN gap must exceed.
	DifferenceThresholdPct float64
	// MinOIQuantile picks the OI-sum floor below which days are ignored.
	MinOIQuantile float64
}

// DefaultCounterConfig mirrors the production settings.
func DefaultCounterConfig() CounterConfig {
	return CounterConfig{DifferenceThresholdPct: 5, MinOIQuantile: 0.25}
}

// CounterSignal is one day's signal with the values that produced it.
type CounterSignal struct {
	Signal         types.Signal `json:"signal"`
	NetChange      float64      `json:"net_change"`
	ThresholdValue float64      `json:"threshold_value"`
	Reason         string       `json:"reason,omitempty"`
}

// MinOI returns the integer OI-sum floor; a zero floor becomes 1.
func MinOI(oiSums []float64, q float64) float64 {
	valid := finiteValues(oiSums)
	if len(valid) == 0 {
		return 0
	}
	floor := math.Trunc(Quantile(valid, q))
	if floor <= 0 {
		logger.Warnf("minimum OI quantile is %.0f, using 1", floor)
		return 1
	}
	return floor
}

// GenerateSignals emits BUY/SELL/HOLD per row from the running long/short
// counters. A doubling of one counter while the gap is still inside the
// threshold is read as an early breakout in that direction.
func GenerateSignals(rows []Row, cfg CounterConfig) []CounterSignal {
	out := make([]CounterSignal, len(rows))
	if len(rows) == 0 {
		return out
	}
	oiSums := make([]float64, len(rows))
	for i, r := range rows {
		oiSums[i] = r.OISum
	}
	minOI := MinOI(oiSums, cfg.MinOIQuantile)
	pct := cfg.DifferenceThresholdPct / 100

	var ltnPrev, stnPrev float64
	for i, r := range rows {
		ltn, stn := r.LongsTillNow, r.ShortsTillNow
		sig := CounterSignal{
			Signal:         types.SignalHold,
			NetChange:      ltn - stn,
			ThresholdValue: r.OISum * pct,
		}
		if i > 0 {
			ltnPrev, stnPrev = rows[i-1].LongsTillNow, rows[i-1].ShortsTillNow
		}
		out[i] = decideCounter(sig, ltn, stn, ltnPrev, stnPrev, r.OISum, minOI)
	}
	return out
}

func decideCounter(sig CounterSignal, ltn, stn, ltnPrev, stnPrev, oiSum, minOI float64) CounterSignal {
	if oiSum < minOI {
		sig.Reason = "oi_below_min"
		return sig
	}
	longsUp := ltn > ltnPrev
	shortsUp := stn > stnPrev
	threshold := sig.ThresholdValue
	withinRange := math.Abs(ltn-stn) <= threshold

	longDoubling := ltnPrev > 1 && ltn >= 2*ltnPrev
	shortDoubling := stnPrev > 1 && stn >= 2*stnPrev

	switch {
	case longDoubling && withinRange && ltn > stn && longsUp:
		sig.Signal, sig.Reason = types.SignalBuy, "long_doubling"
	case shortDoubling && withinRange && stn > ltn && shortsUp:
		sig.Signal, sig.Reason = types.SignalSell, "short_doubling"
	case sig.NetChange > threshold && longsUp:
		sig.Signal, sig.Reason = types.SignalBuy, "net_above_threshold"
	case sig.NetChange < -threshold && shortsUp:
		sig.Signal, sig.Reason = types.SignalSell, "net_below_threshold"
	}
	return sig
}

// Signals extracts the bare signal stream.
func Signals(in []CounterSignal) []types.Signal {
	out := make([]types.Signal, len(in))
	for i, s := range in {
		out[i] = s.Signal
	}
	return out
}
