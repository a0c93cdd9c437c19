// Package indicator computes daily technical series over closes.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// EMASeries returns an EMA aligned with closes. Bars before the first full
// period, and any non-finite talib output, read as 0 (unavailable).
func EMASeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}
	raw := talib.Ema(closes, period)
	for i := period - 1; i < len(raw) && i < len(out); i++ {
		if v := raw[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[i] = v
		}
	}
	return out
}
