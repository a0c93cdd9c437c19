// Package signals turns daily F&O observations into directional classes,
// scenario conclusions, calibrated thresholds, trigger counters and the
// BUY/SELL/HOLD stream consumed by the backtest engine.
package signals

// Direction is the sign of a classified move.
type Direction int

const (
	DirShort   Direction = -1
	DirNeutral Direction = 0
	DirLong    Direction = 1
)

// Valid reports whether d is one of -1, 0, 1.
func (d Direction) Valid() bool {
	return d >= DirShort && d <= DirLong
}

// MinObservations is the smallest history the classifier and calibrator act on.
const MinObservations = 10

// Classification is the output of Classify.
type Classification struct {
	Directions []Direction
	Threshold  float64
	// Sufficient is false when the series had fewer than MinObservations
	// finite values and every direction was forced to neutral.
	Sufficient bool
}

// Classify maps each value to +1/-1/0 against a band of sdMultiplier sample
// standard deviations computed once over every finite value in series.
func Classify(series []float64, sdMultiplier float64) Classification {
	out := Classification{Directions: make([]Direction, len(series))}
	valid := finiteValues(series)
	if len(valid) < MinObservations {
		return out
	}
	threshold := sampleStdDev(valid) * sdMultiplier
	out.Threshold = threshold
	out.Sufficient = true
	for i, v := range series {
		if !isFinite(v) {
			continue
		}
		switch {
		case v > threshold:
			out.Directions[i] = DirLong
		case v < -threshold:
			out.Directions[i] = DirShort
		}
	}
	return out
}
