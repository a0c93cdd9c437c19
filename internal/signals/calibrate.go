package signals

import (
	"fmt"
	"math"
)

// Thresholds are the calibrated entry levels for one symbol. Percent series
// keep their percent units.
type Thresholds struct {
	PriceLong  float64 `json:"price_long"`
	PriceShort float64 `json:"price_short"`
	DelLong    float64 `json:"del_long"`
	DelShort   float64 `json:"del_short"`
	OILong     float64 `json:"oi_long"`
	OIShort    float64 `json:"oi_short"`

	AbsOILong  float64 `json:"abs_oi_long"`
	AbsOIShort float64 `json:"abs_oi_short"`

	// Reference levels; not read by the triggers.
	VWAPLong      float64 `json:"vwap_long"`
	VWAPShort     float64 `json:"vwap_short"`
	FiveDADLong   float64 `json:"five_dad_long"`
	FiveDADShort  float64 `json:"five_dad_short"`
	DeliveryLong  float64 `json:"delivery_long"`
	DeliveryShort float64 `json:"delivery_short"`
}

// Reference returns the informational levels keyed by name.
func (t Thresholds) Reference() map[string]float64 {
	return map[string]float64{
		"abs_oi_long":    t.AbsOILong,
		"abs_oi_short":   t.AbsOIShort,
		"vwap_long":      t.VWAPLong,
		"vwap_short":     t.VWAPShort,
		"five_dad_long":  t.FiveDADLong,
		"five_dad_short": t.FiveDADShort,
		"delivery_long":  t.DeliveryLong,
		"delivery_short": t.DeliveryShort,
	}
}

// ApplyReference copies known keys from m into t.
func (t *Thresholds) ApplyReference(m map[string]float64) {
	if t == nil || len(m) == 0 {
		return
	}
	t.AbsOILong = m["abs_oi_long"]
	t.AbsOIShort = m["abs_oi_short"]
	t.VWAPLong = m["vwap_long"]
	t.VWAPShort = m["vwap_short"]
	t.FiveDADLong = m["five_dad_long"]
	t.FiveDADShort = m["five_dad_short"]
	t.DeliveryLong = m["delivery_long"]
	t.DeliveryShort = m["delivery_short"]
}

// CalibrationInput is the history each threshold is derived from.
type CalibrationInput struct {
	PriceChange        []float64
	RelativeDelivery   []float64
	OIChange           []float64
	AbsoluteOIChange   []float64
	VWAP               []float64
	FiveDayAvgDelivery []float64
	DeliveryValue      []float64
}

// InputFromRows collects calibration series from derived rows.
func InputFromRows(rows []Row) CalibrationInput {
	in := CalibrationInput{
		PriceChange:        make([]float64, len(rows)),
		RelativeDelivery:   make([]float64, len(rows)),
		OIChange:           make([]float64, len(rows)),
		AbsoluteOIChange:   make([]float64, len(rows)),
		VWAP:               make([]float64, len(rows)),
		FiveDayAvgDelivery: make([]float64, len(rows)),
		DeliveryValue:      make([]float64, len(rows)),
	}
	for i, r := range rows {
		in.PriceChange[i] = r.PriceChangePct
		in.RelativeDelivery[i] = r.RelativeDelivery
		in.OIChange[i] = r.OIChangePct
		in.AbsoluteOIChange[i] = r.AbsoluteOIChange
		in.VWAP[i] = r.VWAP
		in.FiveDayAvgDelivery[i] = r.FiveDayAvgDelivery
		in.DeliveryValue[i] = r.DeliveryValue
	}
	return in
}

// Calibration is a threshold set plus the degradations hit on the way.
type Calibration struct {
	Thresholds Thresholds `json:"thresholds"`
	Notes      []string   `json:"notes,omitempty"`
}

// Calibrator derives thresholds from historical distributions.
type Calibrator struct {
	MinObservations int
}

// NewCalibrator returns a calibrator; minObs <= 0 uses MinObservations.
func NewCalibrator(minObs int) Calibrator {
	if minObs <= 0 {
		minObs = MinObservations
	}
	return Calibrator{MinObservations: minObs}
}

func (c Calibrator) minObs() int {
	if c.MinObservations <= 0 {
		return MinObservations
	}
	return c.MinObservations
}

// Calibrate computes every threshold. Series with too little finite history
// produce 0.0 and a note instead of an error.
func (c Calibrator) Calibrate(in CalibrationInput) Calibration {
	var out Calibration
	note := func(name string, n int) {
		out.Notes = append(out.Notes, fmt.Sprintf("%s: %d valid observations (< %d), thresholds set to 0", name, n, c.minObs()))
	}
	th := &out.Thresholds

	if s, ok := c.usable(in.PriceChange); ok {
		th.PriceLong, th.PriceShort = signedThresholds(s, 0.6, 0.4)
	} else {
		note("price_change", len(s))
	}
	if s, ok := c.usable(in.RelativeDelivery); ok {
		th.DelLong = Quantile(s, 0.6)
		th.DelShort = Quantile(s, 0.3)
	} else {
		note("relative_delivery", len(s))
	}
	if s, ok := c.usable(in.OIChange); ok {
		th.OILong, th.OIShort = signedThresholds(s, 0.6, 0.4)
	} else {
		note("oi_change", len(s))
	}
	if s, ok := c.usable(in.AbsoluteOIChange); ok {
		th.AbsOILong, th.AbsOIShort = splitThresholds(s, 0.6, 0.4)
	} else {
		note("absolute_oi_change", len(s))
	}

	vwaps := positives(finiteValues(in.VWAP))
	if len(vwaps) >= c.minObs() {
		m := median(vwaps)
		th.VWAPLong = m * 1.01
		th.VWAPShort = m * 0.99
	}
	if s, ok := c.usable(in.FiveDayAvgDelivery); ok {
		th.FiveDADLong = Quantile(s, 0.6)
		th.FiveDADShort = Quantile(s, 0.4)
	}
	if s, ok := c.usable(in.DeliveryValue); ok {
		th.DeliveryLong = Quantile(s, 0.6)
		th.DeliveryShort = Quantile(s, 0.4)
	}
	return out
}

func (c Calibrator) usable(series []float64) ([]float64, bool) {
	s := finiteValues(series)
	return s, len(s) >= c.minObs()
}

// splitThresholds takes the long level from the positive tail and the short
// level from the negative tail, falling back to the whole distribution when
// a tail is thin, then to the tail median when the sign came out wrong.
func splitThresholds(s []float64, longQ, shortQ float64) (long, short float64) {
	pos := positives(s)
	neg := negatives(s)

	if len(pos) >= MinObservations {
		long = Quantile(pos, longQ)
	} else {
		long = Quantile(s, 0.7)
	}
	if len(neg) >= MinObservations {
		short = Quantile(neg, shortQ)
	} else {
		short = Quantile(s, 0.3)
	}

	if long <= 0 && len(pos) > 0 {
		long = median(pos)
	}
	if short >= 0 && len(neg) > 0 {
		short = median(neg)
	}
	return long, short
}

// signedThresholds is splitThresholds plus a last resort for a missing tail:
// the opposite-tail quantile with its sign flipped.
func signedThresholds(s []float64, longQ, shortQ float64) (long, short float64) {
	long, short = splitThresholds(s, longQ, shortQ)
	if long <= 0 {
		long = -Quantile(s, 0.3)
	}
	if short >= 0 {
		short = -Quantile(s, 0.7)
	}
	return zeroIfNaN(long), zeroIfNaN(short)
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
