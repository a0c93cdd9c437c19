package signals

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnorderedDates is returned when observations are not strictly ascending by date.
var ErrUnorderedDates = errors.New("observations must have strictly ascending unique dates")

const (
	// oiZeroDenominator replaces a zero previous OI so the change stays finite.
	oiZeroDenominator = 1e-6
	// nearZero bounds a denominator treated as zero.
	nearZero = 1e-9
	// deliveryScale converts qty*vwap into crores.
	deliveryScale  = 1e7
	deliveryWindow = 5
)

// Observation is one merged trading day handed over by the aggregation step.
// VWAP 0 means unavailable; NaN marks any missing numeric field.
type Observation struct {
	Date        time.Time `json:"date"`
	Open        float64   `json:"open"`
	Close       float64   `json:"close"`
	VWAP        float64   `json:"vwap"`
	DeliveryQty float64   `json:"delivery_qty"`
	OISum       float64   `json:"oi_sum"`
}

// Row is an observation enriched with derived series, classifications,
// triggers and running counters.
type Row struct {
	Observation

	PriceChangePct     float64 `json:"price_change_pct"`
	OIChangePct        float64 `json:"oi_change_pct"`
	AbsoluteOIChange   float64 `json:"absolute_oi_change"`
	DeliveryValue      float64 `json:"delivery_value"`
	FiveDayAvgDelivery float64 `json:"five_day_avg_delivery"`
	RelativeDelivery   float64 `json:"relative_delivery"`

	PriceDir    Direction  `json:"price_dir"`
	DeliveryDir Direction  `json:"delivery_dir"`
	OIDir       Direction  `json:"oi_dir"`
	Conclusion  Conclusion `json:"conclusion"`

	LongTrigger   bool    `json:"long_trigger"`
	ShortTrigger  bool    `json:"short_trigger"`
	Longs         float64 `json:"longs"`
	Shorts        float64 `json:"shorts"`
	LongsTillNow  float64 `json:"longs_till_now"`
	ShortsTillNow float64 `json:"shorts_till_now"`
}

// Derive computes the percent-change, delivery and OI-change series.
func Derive(obs []Observation) ([]Row, error) {
	rows := make([]Row, len(obs))
	for i, o := range obs {
		if i > 0 && !o.Date.After(obs[i-1].Date) {
			return nil, fmt.Errorf("%w: %s after %s", ErrUnorderedDates,
				o.Date.Format(time.DateOnly), obs[i-1].Date.Format(time.DateOnly))
		}
		rows[i] = Row{Observation: o}
	}
	nan := math.NaN()
	for i := range rows {
		r := &rows[i]
		r.PriceChangePct, r.OIChangePct, r.AbsoluteOIChange = nan, nan, nan
		r.FiveDayAvgDelivery, r.RelativeDelivery = nan, nan
		r.DeliveryValue = r.DeliveryQty * r.VWAP / deliveryScale

		if i > 0 {
			prev := rows[i-1]
			if math.Abs(prev.Close) >= nearZero {
				r.PriceChangePct = (r.Close - prev.Close) / prev.Close * 100
			}
			denom := prev.OISum
			if math.Abs(denom) < nearZero {
				denom = oiZeroDenominator
			}
			r.OIChangePct = (r.OISum - prev.OISum) / denom * 100
			r.AbsoluteOIChange = r.OISum - prev.OISum
		}
		if i >= deliveryWindow {
			r.FiveDayAvgDelivery = windowMean(rows[i-deliveryWindow : i])
		}
		if r.FiveDayAvgDelivery != 0 {
			r.RelativeDelivery = r.DeliveryValue / r.FiveDayAvgDelivery * 100
		}
	}
	for i := range rows {
		r := &rows[i]
		r.PriceChangePct = round2(r.PriceChangePct)
		r.OIChangePct = round2(r.OIChangePct)
		r.RelativeDelivery = round2(r.RelativeDelivery)
		r.AbsoluteOIChange = round0(r.AbsoluteOIChange)
	}
	// rounded after the relative series so ~Del uses full precision
	for i := range rows {
		rows[i].DeliveryValue = round2(rows[i].DeliveryValue)
		rows[i].FiveDayAvgDelivery = round2(rows[i].FiveDayAvgDelivery)
	}
	return rows, nil
}

// windowMean averages unrounded delivery values; any missing value voids the window.
func windowMean(window []Row) float64 {
	sum := 0.0
	for _, w := range window {
		if !isFinite(w.DeliveryValue) {
			return math.NaN()
		}
		sum += w.DeliveryValue
	}
	return sum / float64(len(window))
}
