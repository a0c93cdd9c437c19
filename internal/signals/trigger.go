package signals

import (
	"math"
)

// Evaluate checks one row against the thresholds. The short side also asks
// for relative delivery above del_short: conviction selling shows up as high
// delivery just like conviction buying. NaN inputs never trigger.
func Evaluate(r Row, th Thresholds) (longTrigger, shortTrigger bool) {
	longTrigger = r.PriceChangePct > th.PriceLong &&
		r.RelativeDelivery > th.DelLong &&
		r.OIChangePct > th.OILong
	shortTrigger = r.PriceChangePct < th.PriceShort &&
		r.OIChangePct < th.OIShort &&
		r.RelativeDelivery > th.DelShort
	return longTrigger, shortTrigger
}

// Accumulator keeps the running "Longs Till Now" / "Shorts Till Now" totals.
// Both totals only grow.
type Accumulator struct {
	LongsTillNow  float64
	ShortsTillNow float64
}

// Add folds one day's triggers in and returns that day's contributions.
func (a *Accumulator) Add(absOIChange float64, longTrigger, shortTrigger bool) (longs, shorts float64) {
	size := math.Abs(absOIChange)
	if !isFinite(size) {
		size = 0
	}
	if longTrigger {
		longs = size
		a.LongsTillNow += size
	}
	if shortTrigger {
		shorts = size
		a.ShortsTillNow += size
	}
	return longs, shorts
}

// ApplyTriggers evaluates every row in order and fills triggers and counters.
func ApplyTriggers(rows []Row, th Thresholds) {
	var acc Accumulator
	for i := range rows {
		r := &rows[i]
		r.LongTrigger, r.ShortTrigger = Evaluate(*r, th)
		r.Longs, r.Shorts = acc.Add(r.AbsoluteOIChange, r.LongTrigger, r.ShortTrigger)
		r.LongsTillNow = acc.LongsTillNow
		r.ShortsTillNow = acc.ShortsTillNow
	}
}

// Analysis summarises a classification pass.
type Analysis struct {
	Rows               []Row    `json:"rows"`
	PriceBand          float64  `json:"price_band"`
	DeliveryBand       float64  `json:"delivery_band"`
	OIBand             float64  `json:"oi_band"`
	InsufficientSeries []string `json:"insufficient_series,omitempty"`
	UnknownScenarios   int      `json:"unknown_scenarios"`
}

// Analyze classifies each metric, resolves scenarios and applies the
// thresholds. Missing values count as zero change, matching how the
// history is presented to the classifier.
func Analyze(rows []Row, th Thresholds, sdMultiplier float64) Analysis {
	price := make([]float64, len(rows))
	del := make([]float64, len(rows))
	oi := make([]float64, len(rows))
	for i, r := range rows {
		price[i] = zeroIfMissing(r.PriceChangePct)
		del[i] = zeroIfMissing(r.RelativeDelivery)
		oi[i] = zeroIfMissing(r.OIChangePct)
	}
	pc := Classify(price, sdMultiplier)
	dc := Classify(del, sdMultiplier)
	oc := Classify(oi, sdMultiplier)

	out := Analysis{
		Rows:         rows,
		PriceBand:    pc.Threshold,
		DeliveryBand: dc.Threshold,
		OIBand:       oc.Threshold,
	}
	for _, c := range []struct {
		name string
		cls  Classification
	}{{"price_change", pc}, {"relative_delivery", dc}, {"oi_change", oc}} {
		if !c.cls.Sufficient {
			out.InsufficientSeries = append(out.InsufficientSeries, c.name)
		}
	}
	for i := range rows {
		r := &rows[i]
		r.PriceDir, r.DeliveryDir, r.OIDir = pc.Directions[i], dc.Directions[i], oc.Directions[i]
		c, ok := Lookup(r.PriceDir, r.DeliveryDir, r.OIDir)
		if !ok {
			c = Conclude(r.PriceDir, r.DeliveryDir, r.OIDir)
			out.UnknownScenarios++
		}
		r.Conclusion = c
	}
	ApplyTriggers(rows, th)
	return out
}

func zeroIfMissing(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}
