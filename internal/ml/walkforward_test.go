package ml

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// persistence predicts the most recent training label.
type persistence struct{ seen []int }

type constModel Prediction

func (m constModel) Predict([]float64) Prediction { return Prediction(m) }

func (p *persistence) Train(_ context.Context, x [][]float64, y []int) (Model, error) {
	p.seen = append(p.seen, len(x))
	return constModel{Label: y[len(y)-1], Confidence: 1}, nil
}

func vectors(n int) []FeatureVector {
	out := make([]FeatureVector, n)
	for i := range out {
		out[i] = FeatureVector{Date: day(i), Names: []string{"x"}, Values: []float64{float64(i)}}
	}
	return out
}

func TestWalkForward(t *testing.T) {
	tr := &persistence{}
	ev, err := WalkForward(context.Background(), vectors(6), []int{1, -1, 1, -1, 1}, tr, 2)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4, 5}, tr.seen, "row t trains on rows before t only")
	assert.Equal(t, Prediction{}, ev.Predictions[0])
	assert.Equal(t, Prediction{}, ev.Predictions[1])
	assert.Equal(t, Prediction{Label: 1, Confidence: 1}, ev.Predictions[5], "unlabelled last row still predicted")
	assert.Equal(t, 3, ev.Evaluated)
	assert.Zero(t, ev.Correct)
	assert.Zero(t, ev.Accuracy)
	assert.Equal(t, 2, ev.Confusion[2][0])
	assert.Equal(t, 1, ev.Confusion[0][2])
}

func TestWalkForwardErrors(t *testing.T) {
	ctx := context.Background()
	_, err := WalkForward(ctx, vectors(3), []int{0, 0}, &persistence{}, 0)
	assert.Error(t, err)

	_, err = WalkForward(ctx, vectors(3), []int{0, 0}, &persistence{}, 5)
	assert.ErrorIs(t, err, ErrNotEnoughHistory)

	_, err = WalkForward(ctx, vectors(3), []int{0, 4}, &persistence{}, 1)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = WalkForward(cancelled, vectors(4), []int{0, 0, 0}, &persistence{}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCentroidTrainer(t *testing.T) {
	x := [][]float64{{-5}, {-4}, {0}, {0.1}, {4}, {5}}
	y := []int{-1, -1, 0, 0, 1, 1}
	m, err := CentroidTrainer{}.Train(context.Background(), x, y)
	require.NoError(t, err)

	up := m.Predict([]float64{4.5})
	assert.Equal(t, LabelLong, up.Label)
	assert.Greater(t, up.Confidence, 1.0/3)
	assert.LessOrEqual(t, up.Confidence, 1.0)
	assert.Equal(t, LabelShort, m.Predict([]float64{-4.5}).Label)
	assert.Equal(t, LabelFlat, m.Predict([]float64{0.05}).Label)

	single, err := CentroidTrainer{}.Train(context.Background(), [][]float64{{1}, {2}}, []int{1, 1})
	require.NoError(t, err)
	assert.Equal(t, Prediction{Label: 1, Confidence: 1}, single.Predict([]float64{-10}))

	_, err = CentroidTrainer{}.Train(context.Background(), x, y[:2])
	assert.Error(t, err)
}
