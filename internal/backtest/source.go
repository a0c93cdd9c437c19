package backtest

import (
	"context"

	"fnotrader/internal/signals"
	"fnotrader/internal/types"
)

// SignalSource produces one signal per analysed row. A signal on row t is
// acted on at bar t+1.
type SignalSource interface {
	Name() string
	Signals(ctx context.Context, symbol string, rows []signals.Row) ([]types.Signal, error)
}

// CounterSource is the rule-based generator driven by the long/short counters.
type CounterSource struct {
	Config signals.CounterConfig
}

func (CounterSource) Name() string { return "counter" }

func (c CounterSource) Signals(_ context.Context, _ string, rows []signals.Row) ([]types.Signal, error) {
	return signals.Signals(signals.GenerateSignals(rows, c.Config)), nil
}
