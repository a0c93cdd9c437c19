package signals

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finiteValues drops NaN and ±Inf, keeping order.
func finiteValues(series []float64) []float64 {
	out := make([]float64, 0, len(series))
	for _, v := range series {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

func positives(series []float64) []float64 {
	out := make([]float64, 0, len(series))
	for _, v := range series {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

func negatives(series []float64) []float64 {
	out := make([]float64, 0, len(series))
	for _, v := range series {
		if v < 0 {
			out = append(out, v)
		}
	}
	return out
}

// Quantile interpolates linearly between order statistics at position (n-1)*q.
// Empty input returns NaN.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := float64(len(sorted)-1) * q
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	if lo == hi {
		return sorted[int(lo)]
	}
	frac := pos - lo
	return sorted[int(lo)] + (sorted[int(hi)]-sorted[int(lo)])*frac
}

func median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// sampleStdDev is the n-1 standard deviation; fewer than two values yield 0.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

func round2(v float64) float64 {
	if !isFinite(v) {
		return v
	}
	return math.Round(v*100) / 100
}

func round0(v float64) float64 {
	if !isFinite(v) {
		return v
	}
	return math.Round(v)
}
