package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"fnotrader/internal/types"
)

// Class labels for next-day direction.
const (
	LabelShort = -1
	LabelFlat  = 0
	LabelLong  = 1
)

// FeatureVector is the model input for one trading day.
type FeatureVector struct {
	Date   time.Time `json:"date"`
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Map returns the features keyed by name.
func (f FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, len(f.Names))
	for i, name := range f.Names {
		if i < len(f.Values) {
			out[name] = f.Values[i]
		}
	}
	return out
}

type Prediction struct {
	Label      int     `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Validate rejects labels outside {-1,0,1} and confidences outside [0,1].
func (p Prediction) Validate() error {
	if p.Label < LabelShort || p.Label > LabelLong {
		return fmt.Errorf("prediction label %d out of range", p.Label)
	}
	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("prediction confidence %v out of [0,1]", p.Confidence)
	}
	return nil
}

// Predictor turns a feature vector into a class prediction.
type Predictor interface {
	Predict(ctx context.Context, fv FeatureVector) (Prediction, error)
}

// MapSignal converts a prediction into a trading signal. A label only
// trades when its confidence reaches the side's probability floor.
func MapSignal(p Prediction, probLong, probShort float64) (types.Signal, error) {
	if err := p.Validate(); err != nil {
		return types.SignalHold, err
	}
	switch {
	case p.Label == LabelLong && p.Confidence >= probLong:
		return types.SignalBuy, nil
	case p.Label == LabelShort && p.Confidence >= probShort:
		return types.SignalSell, nil
	default:
		return types.SignalHold, nil
	}
}
