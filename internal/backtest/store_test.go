package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"fnotrader/internal/signals"
	"fnotrader/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleObservations(n int) []signals.Observation {
	out := make([]signals.Observation, n)
	for i := range out {
		x := float64(i)
		cls := 100 + 6*math.Sin(x/3) + 0.3*x
		out[i] = signals.Observation{
			Date:        day(i),
			Open:        cls - 0.5*math.Cos(x),
			Close:       math.Round(cls*100) / 100,
			VWAP:        math.Round(cls*0.998*100) / 100,
			DeliveryQty: 1e5 * (1 + 0.6*math.Sin(x*1.7)),
			OISum:       1e6 + 4e4*x*math.Sin(x/2),
		}
	}
	return out
}

func TestBarStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewBarStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	obs := sampleObservations(5)
	obs[2].VWAP = math.NaN()
	n, err := s.UpsertBars(ctx, "nifty", obs)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	obs[4].Close = 999
	_, err = s.UpsertBars(ctx, "NIFTY", obs[4:])
	require.NoError(t, err)

	got, err := s.LoadBars(ctx, "NIFTY", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 999.0, got[4].Close)
	assert.True(t, math.IsNaN(got[2].VWAP))
	assert.Equal(t, obs[0].Date, got[0].Date)

	ranged, err := s.LoadBars(ctx, "NIFTY", day(1), day(3))
	require.NoError(t, err)
	assert.Len(t, ranged, 3)

	m, err := s.Manifest(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, "NIFTY", m.Symbol)
	assert.EqualValues(t, 5, m.Rows)
	assert.Equal(t, day(0).Format(dateLayout), m.MinDate)
	assert.Equal(t, day(4).Format(dateLayout), m.MaxDate)

	_, err = s.LoadBars(ctx, " ", time.Time{}, time.Time{})
	assert.Error(t, err)
}

func TestResultStore(t *testing.T) {
	ctx := context.Background()
	rs, err := NewResultStore(t.TempDir())
	require.NoError(t, err)
	defer rs.Close()

	run := newRun(RunConfig{Symbol: "ACC", EndPolicy: EndLeaveOpen, Execution: ExecClose, SignalSource: "counter"})
	require.NoError(t, rs.InsertRun(ctx, run))

	eng := newTestEngine(t, EngineConfig{})
	res := runOK(t, eng, mkBars(
		barSpec{close: 100, ltn: 100, sig: types.SignalBuy},
		barSpec{close: 100, ltn: 100},
		barSpec{close: 105, ltn: 100, sig: types.SignalSell},
		barSpec{close: 103, ltn: 100, sig: types.SignalBuy},
		barSpec{close: 104, ltn: 200},
	))
	stats := RunStats{Summary: Summarize(res), FinishedAt: time.Now()}
	require.NoError(t, rs.SaveResult(ctx, run.ID, RunStatusDone, res, stats, ""))

	got, err := rs.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusDone, got.Status)
	assert.Equal(t, "ACC", got.Config.Symbol)
	assert.Equal(t, stats.TotalPnL, got.TotalPnL)
	assert.False(t, got.CompletedAt.IsZero())

	ledger, err := rs.ListLedger(ctx, run.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, ledger, len(res.Ledger))
	assert.Equal(t, res.Ledger[1].Event, ledger[1].Event)
	assert.Equal(t, res.Ledger[3].QuantityTraded, ledger[3].QuantityTraded)
	assert.NoError(t, VerifyLedger(ledger))

	trades, err := rs.ListTrades(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Trades, trades)

	open, err := rs.OpenPosition(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, res.Open.Qty, open.Qty)

	runs, err := rs.ListRuns(ctx, "ACC", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = rs.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownRun)
}
