package ml

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Model scores a single feature row.
type Model interface {
	Predict(x []float64) Prediction
}

// Trainer fits a model on labelled rows.
type Trainer interface {
	Train(ctx context.Context, x [][]float64, y []int) (Model, error)
}

// Evaluation is the out-of-sample result of a walk-forward pass.
// Predictions has one entry per feature row; rows before the first
// training window hold a flat, zero-confidence prediction.
type Evaluation struct {
	Predictions []Prediction `json:"predictions"`
	Evaluated   int          `json:"evaluated"`
	Correct     int          `json:"correct"`
	Accuracy    float64      `json:"accuracy"`
	// Confusion is indexed [actual+1][predicted+1].
	Confusion [3][3]int `json:"confusion"`
}

var ErrNotEnoughHistory = errors.New("not enough labelled rows for walk-forward")

// WalkForward trains on rows [0,t) and predicts row t for every t from
// minTrain on. Row t-1's label needs close t, which is known when row t
// is predicted, so no future data leaks into a prediction.
func WalkForward(ctx context.Context, features []FeatureVector, labels []int, trainer Trainer, minTrain int) (Evaluation, error) {
	if minTrain <= 0 {
		return Evaluation{}, fmt.Errorf("min train size must be positive, got %d", minTrain)
	}
	if len(labels) > len(features) {
		return Evaluation{}, fmt.Errorf("%d labels for %d feature rows", len(labels), len(features))
	}
	if len(labels) < minTrain {
		return Evaluation{}, fmt.Errorf("%w: %d labelled, need %d", ErrNotEnoughHistory, len(labels), minTrain)
	}
	for i, l := range labels {
		if l < LabelShort || l > LabelLong {
			return Evaluation{}, fmt.Errorf("label %d at row %d out of range", l, i)
		}
	}
	x := make([][]float64, len(features))
	for i, f := range features {
		x[i] = f.Values
	}
	ev := Evaluation{Predictions: make([]Prediction, len(features))}
	for t := minTrain; t < len(features); t++ {
		if err := ctx.Err(); err != nil {
			return ev, err
		}
		model, err := trainer.Train(ctx, x[:t], labels[:t])
		if err != nil {
			return ev, fmt.Errorf("train window ending %s: %w", features[t].Date.Format("2006-01-02"), err)
		}
		pred := model.Predict(x[t])
		if err := pred.Validate(); err != nil {
			return ev, err
		}
		ev.Predictions[t] = pred
		if t < len(labels) {
			ev.Evaluated++
			ev.Confusion[labels[t]+1][pred.Label+1]++
			if labels[t] == pred.Label {
				ev.Correct++
			}
		}
	}
	if ev.Evaluated > 0 {
		ev.Accuracy = float64(ev.Correct) / float64(ev.Evaluated)
	}
	return ev, nil
}

// CentroidTrainer fits a nearest-centroid classifier on z-scored features.
type CentroidTrainer struct{}

func (CentroidTrainer) Train(_ context.Context, x [][]float64, y []int) (Model, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("centroid trainer needs matching non-empty rows, got %d/%d", len(x), len(y))
	}
	dim := len(x[0])
	m := &centroidModel{mean: make([]float64, dim), scale: make([]float64, dim)}
	col := make([]float64, len(x))
	for j := 0; j < dim; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		m.mean[j], m.scale[j] = mean, std
	}
	var counts [3]int
	for i, row := range x {
		c := y[i] + 1
		if c < 0 || c > 2 {
			return nil, fmt.Errorf("label %d out of range", y[i])
		}
		if m.centroids[c] == nil {
			m.centroids[c] = make([]float64, dim)
		}
		floats.Add(m.centroids[c], m.standardize(row))
		counts[c]++
	}
	for c, n := range counts {
		if n > 0 {
			floats.Scale(1/float64(n), m.centroids[c])
		}
	}
	return m, nil
}

type centroidModel struct {
	mean, scale []float64
	centroids   [3][]float64
}

func (m *centroidModel) standardize(row []float64) []float64 {
	out := make([]float64, len(m.mean))
	for j := range out {
		if j < len(row) {
			out[j] = (row[j] - m.mean[j]) / m.scale[j]
		}
	}
	return out
}

// Predict picks the nearest centroid; confidence is a softmax over
// negative distances of the classes seen in training.
func (m *centroidModel) Predict(x []float64) Prediction {
	z := m.standardize(x)
	best, bestDist := LabelFlat, math.Inf(1)
	var dist [3]float64
	for c, centroid := range m.centroids {
		if centroid == nil {
			continue
		}
		dist[c] = floats.Distance(z, centroid, 2)
		if dist[c] < bestDist {
			best, bestDist = c-1, dist[c]
		}
	}
	if math.IsInf(bestDist, 1) {
		return Prediction{Label: LabelFlat}
	}
	var sum float64
	for c, centroid := range m.centroids {
		if centroid != nil {
			sum += math.Exp(bestDist - dist[c])
		}
	}
	return Prediction{Label: best, Confidence: 1 / sum}
}
