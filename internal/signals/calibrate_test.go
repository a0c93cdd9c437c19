package signals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, to float64) []float64 {
	var out []float64
	if from <= to {
		for v := from; v <= to; v++ {
			out = append(out, v)
		}
		return out
	}
	for v := from; v >= to; v-- {
		out = append(out, v)
	}
	return out
}

func TestQuantile(t *testing.T) {
	vals := []float64{4, 1, 3, 2}
	assert.InDelta(t, 2.5, Quantile(vals, 0.5), 1e-12)
	assert.InDelta(t, 2.8, Quantile(vals, 0.6), 1e-12)
	assert.Equal(t, 1.0, Quantile(vals, 0))
	assert.Equal(t, 4.0, Quantile(vals, 1))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
	assert.Equal(t, []float64{4, 1, 3, 2}, vals, "input is not reordered")
}

func TestCalibrator(t *testing.T) {
	cal := NewCalibrator(0)

	t.Run("short history yields zero thresholds", func(t *testing.T) {
		in := CalibrationInput{
			PriceChange:      []float64{1, -1, 2, math.NaN(), 3},
			RelativeDelivery: []float64{100, 120},
			OIChange:         seq(1, 9),
		}
		got := cal.Calibrate(in)
		assert.Equal(t, Thresholds{}, got.Thresholds)
		assert.Len(t, got.Notes, 4)
	})

	t.Run("balanced tails use tail quantiles", func(t *testing.T) {
		s := append(seq(1, 12), seq(-1, -12)...)
		got := cal.Calibrate(CalibrationInput{PriceChange: s, OIChange: s})
		// positives 1..12 at q0.6 -> 7.6; negatives -12..-1 at q0.4 -> -7.6
		assert.InDelta(t, 7.6, got.Thresholds.PriceLong, 1e-9)
		assert.InDelta(t, -7.6, got.Thresholds.PriceShort, 1e-9)
		assert.InDelta(t, 7.6, got.Thresholds.OILong, 1e-9)
		assert.InDelta(t, -7.6, got.Thresholds.OIShort, 1e-9)
	})

	t.Run("thin positive tail corrected to its median", func(t *testing.T) {
		s := append(seq(-1, -12), 1, 2, 3)
		got := cal.Calibrate(CalibrationInput{PriceChange: s})
		assert.InDelta(t, 2, got.Thresholds.PriceLong, 1e-9)
		assert.InDelta(t, -7.6, got.Thresholds.PriceShort, 1e-9)
	})

	t.Run("missing positive tail flips the opposite quantile", func(t *testing.T) {
		s := seq(-1, -12)
		got := cal.Calibrate(CalibrationInput{PriceChange: s})
		assert.InDelta(t, 8.7, got.Thresholds.PriceLong, 1e-9)
		assert.Greater(t, got.Thresholds.PriceLong, 0.0)
		assert.Less(t, got.Thresholds.PriceShort, 0.0)
	})

	t.Run("missing negative tail flips the opposite quantile", func(t *testing.T) {
		s := seq(1, 12)
		got := cal.Calibrate(CalibrationInput{PriceChange: s})
		assert.Greater(t, got.Thresholds.PriceLong, 0.0)
		assert.InDelta(t, -8.7, got.Thresholds.PriceShort, 1e-9)
	})

	t.Run("relative delivery uses whole-series quantiles", func(t *testing.T) {
		s := seq(91, 110)
		got := cal.Calibrate(CalibrationInput{RelativeDelivery: s})
		assert.InDelta(t, Quantile(s, 0.6), got.Thresholds.DelLong, 1e-9)
		assert.InDelta(t, Quantile(s, 0.3), got.Thresholds.DelShort, 1e-9)
	})

	t.Run("absolute oi keeps wrong-sign fallback out", func(t *testing.T) {
		s := seq(100, 1200)
		got := cal.Calibrate(CalibrationInput{AbsoluteOIChange: s[:20]})
		assert.Greater(t, got.Thresholds.AbsOILong, 0.0)
		assert.Greater(t, got.Thresholds.AbsOIShort, 0.0, "no negative tail to correct from")
	})

	t.Run("reference levels round trip", func(t *testing.T) {
		th := Thresholds{VWAPLong: 101, DeliveryShort: 3}
		var back Thresholds
		back.ApplyReference(th.Reference())
		require.Equal(t, th, back)
	})
}
