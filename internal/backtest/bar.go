package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"fnotrader/internal/signals"
	"fnotrader/internal/types"
)

// ErrUnorderedBars is returned when bar dates are not strictly ascending.
var ErrUnorderedBars = errors.New("bars must be in strictly ascending date order")

// Bar is one trading day as the simulator consumes it. VWAP, EMA and Open
// use 0 for "unavailable".
type Bar struct {
	Date          time.Time    `json:"date"`
	Open          float64      `json:"open,omitempty"`
	Close         float64      `json:"close"`
	VWAP          float64      `json:"vwap,omitempty"`
	EMA           float64      `json:"ema,omitempty"`
	OISum         float64      `json:"oi_sum"`
	LongsTillNow  float64      `json:"longs_till_now"`
	ShortsTillNow float64      `json:"shorts_till_now"`
	Signal        types.Signal `json:"signal"`
}

// MissingFieldError reports a required bar field that is absent.
type MissingFieldError struct {
	Field string
	Date  time.Time
}

func (e *MissingFieldError) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("bar is missing required field %q", e.Field)
	}
	return fmt.Sprintf("bar %s is missing required field %q", e.Date.Format(time.DateOnly), e.Field)
}

func missing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// normalizeBar checks required fields and zeroes unusable optional ones.
func normalizeBar(b Bar, prev *Bar) (Bar, error) {
	if b.Date.IsZero() {
		return b, &MissingFieldError{Field: "date"}
	}
	if prev != nil && !b.Date.After(prev.Date) {
		return b, fmt.Errorf("%w: %s follows %s", ErrUnorderedBars,
			b.Date.Format(time.DateOnly), prev.Date.Format(time.DateOnly))
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"close", b.Close},
		{"oi_sum", b.OISum},
		{"longs_till_now", b.LongsTillNow},
		{"shorts_till_now", b.ShortsTillNow},
	} {
		if missing(f.v) {
			return b, &MissingFieldError{Field: f.name, Date: b.Date}
		}
	}
	if b.Close < 0 {
		return b, fmt.Errorf("bar %s has negative close %.4f", b.Date.Format(time.DateOnly), b.Close)
	}
	if missing(b.VWAP) || b.VWAP < 0 {
		b.VWAP = 0
	}
	if missing(b.EMA) || b.EMA < 0 {
		b.EMA = 0
	}
	if missing(b.Open) || b.Open < 0 {
		b.Open = 0
	}
	if b.Signal == "" {
		b.Signal = types.SignalHold
	}
	return b, nil
}

// BarsFromRows joins analysed rows with their signals. A missing signal
// reads as HOLD.
func BarsFromRows(rows []signals.Row, sigs []types.Signal) []Bar {
	out := make([]Bar, len(rows))
	for i, r := range rows {
		sig := types.SignalHold
		if i < len(sigs) && sigs[i] != "" {
			sig = sigs[i]
		}
		out[i] = Bar{
			Date:          r.Date,
			Open:          r.Open,
			Close:         r.Close,
			VWAP:          r.VWAP,
			OISum:         r.OISum,
			LongsTillNow:  r.LongsTillNow,
			ShortsTillNow: r.ShortsTillNow,
			Signal:        sig,
		}
	}
	return out
}
