package ml

import (
	"context"
	"fmt"

	"fnotrader/internal/logger"
	"fnotrader/internal/signals"
	"fnotrader/internal/types"
)

// Source produces BUY/SELL/HOLD signals from model predictions. With no
// Predictor set, Trainer is fitted walk-forward over each symbol's rows.
type Source struct {
	Predictor Predictor
	ProbLong  float64
	ProbShort float64

	Trainer       Trainer
	MinTrain      int
	UpThreshold   float64
	DownThreshold float64
}

func (Source) Name() string { return "ml" }

func (s Source) Signals(ctx context.Context, symbol string, rows []signals.Row) ([]types.Signal, error) {
	predictor := s.Predictor
	if predictor == nil {
		if s.Trainer == nil {
			return nil, fmt.Errorf("ml source has no predictor")
		}
		wf, ev, err := NewWalkForwardPredictor(ctx, rows, s.Trainer, s.MinTrain, s.UpThreshold, s.DownThreshold)
		if err != nil {
			return nil, fmt.Errorf("%s walk-forward: %w", symbol, err)
		}
		logger.Infof("[ml] %s walk-forward accuracy %.3f over %d days", symbol, ev.Accuracy, ev.Evaluated)
		predictor = wf
	}
	features := BuildFeatures(rows)
	out := make([]types.Signal, len(rows))
	var trades int
	for i, fv := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pred, err := predictor.Predict(ctx, fv)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", symbol, fv.Date.Format("2006-01-02"), err)
		}
		sig, err := MapSignal(pred, s.ProbLong, s.ProbShort)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", symbol, fv.Date.Format("2006-01-02"), err)
		}
		if sig != types.SignalHold {
			trades++
		}
		out[i] = sig
	}
	logger.Debugf("[ml] %s: %d of %d days carry a trade signal", symbol, trades, len(rows))
	return out, nil
}

// WalkForwardPredictor replays an out-of-sample walk-forward pass so the
// backtest never sees a prediction fitted on its own future.
type WalkForwardPredictor struct {
	preds map[string]Prediction
}

// NewWalkForwardPredictor fits trainer over rows with the given label bands.
func NewWalkForwardPredictor(ctx context.Context, rows []signals.Row, trainer Trainer, minTrain int, up, down float64) (*WalkForwardPredictor, Evaluation, error) {
	features := BuildFeatures(rows)
	closes := make([]float64, len(rows))
	for i, r := range rows {
		closes[i] = r.Close
	}
	ev, err := WalkForward(ctx, features, BuildLabels(closes, up, down), trainer, minTrain)
	if err != nil {
		return nil, ev, err
	}
	w := &WalkForwardPredictor{preds: make(map[string]Prediction, len(features))}
	for i, fv := range features {
		w.preds[fv.Date.Format("2006-01-02")] = ev.Predictions[i]
	}
	return w, ev, nil
}

func (w *WalkForwardPredictor) Predict(_ context.Context, fv FeatureVector) (Prediction, error) {
	return w.preds[fv.Date.Format("2006-01-02")], nil
}
