package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fnotrader/internal/analysis/indicator"
	"fnotrader/internal/logger"
	"fnotrader/internal/strategy/exit"
	"fnotrader/internal/types"
)

// EndPolicy decides what happens to a position still open after the last bar.
type EndPolicy string

const (
	EndLeaveOpen  EndPolicy = "leave_open"
	EndForceClose EndPolicy = "force_close"
)

// Execution selects the fill price model.
type Execution string

const (
	// ExecClose fills at the bar close and applies the full entry rules.
	ExecClose Execution = "close"
	// ExecNextOpen fills at the open after the signal with plain sizing.
	ExecNextOpen Execution = "next_open"
)

// Ledger events.
const (
	EventEntryLong    = "entry_long"
	EventEntryShort   = "entry_short"
	EventExitOpposite = "exit_opposite_signal"
	EventExitSignal   = "exit_signal"
	EventForceClose   = "force_close"
)

// EngineConfig is fixed for a whole run.
type EngineConfig struct {
	InvestmentAmount float64
	EntryBandPct     float64
	EndPolicy        EndPolicy
	Execution        Execution
	// Compounding carries realised P&L into the next entry's capital.
	// Only the next-open model compounds.
	Compounding bool
	Exits       *exit.Chain
}

// PositionState is everything the engine carries from one bar to the next.
type PositionState struct {
	exit.State
	Qty             int64
	LastBuyTrigger  float64
	LastSellTrigger float64
	Capital         float64
}

// Engine runs the position state machine over an ordered bar series.
type Engine struct {
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.InvestmentAmount <= 0 || missing(cfg.InvestmentAmount) {
		return nil, fmt.Errorf("investment amount must be > 0, got %v", cfg.InvestmentAmount)
	}
	if cfg.EntryBandPct < 0 || missing(cfg.EntryBandPct) {
		return nil, fmt.Errorf("entry band must be >= 0, got %v", cfg.EntryBandPct)
	}
	switch cfg.EndPolicy {
	case "":
		cfg.EndPolicy = EndLeaveOpen
	case EndLeaveOpen, EndForceClose:
	default:
		return nil, fmt.Errorf("unknown end policy %q", cfg.EndPolicy)
	}
	switch cfg.Execution {
	case "":
		cfg.Execution = ExecClose
	case ExecClose, ExecNextOpen:
	default:
		return nil, fmt.Errorf("unknown execution model %q", cfg.Execution)
	}
	if cfg.Exits == nil {
		cfg.Exits = exit.NewChain()
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Config() EngineConfig { return e.cfg }

// Run simulates bars in order. On a data error or cancellation the rows
// processed so far are returned with the error.
func (e *Engine) Run(ctx context.Context, bars []Bar) (Result, error) {
	res := Result{Meta: e.meta()}
	if len(bars) == 0 {
		return res, nil
	}
	bars, err := e.prepare(bars)
	if err != nil {
		return res, err
	}

	st := PositionState{State: exit.State{Side: types.SideFlat}, Capital: e.cfg.InvestmentAmount}
	cum := 0.0
	first := newLedgerRow(bars[0])
	res.Ledger = append(res.Ledger, first)
	lastIdx := len(bars) - 1

	for i := 1; i < len(bars); i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.Meta.Cancelled = true
			e.finish(&res, st, false)
			return res, ctxErr
		}
		cur, err := normalizeBar(bars[i], &bars[i-1])
		if err != nil {
			e.finish(&res, st, false)
			return res, err
		}
		bars[i] = cur
		final := i == lastIdx
		var row LedgerRow
		if e.cfg.Execution == ExecNextOpen {
			row = e.stepOpen(&st, bars[i-1], cur, final)
		} else {
			row = e.stepClose(&st, bars[i-1], cur, final)
		}
		cum += row.DailyPnL
		row.CumulativePnL = cum
		res.Ledger = append(res.Ledger, row)
	}
	e.finish(&res, st, true)
	return res, nil
}

// prepare validates the first bar and fills EMA when a rule needs it and
// the input carries none.
func (e *Engine) prepare(in []Bar) ([]Bar, error) {
	bars := make([]Bar, len(in))
	copy(bars, in)
	b0, err := normalizeBar(bars[0], nil)
	if err != nil {
		return nil, err
	}
	bars[0] = b0
	period := e.cfg.Exits.EMAPeriod()
	if period <= 0 {
		return bars, nil
	}
	for _, b := range bars {
		if b.EMA > 0 {
			return bars, nil
		}
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	ema := indicator.EMASeries(closes, period)
	for i := range bars {
		if i < len(ema) {
			bars[i].EMA = ema[i]
		}
	}
	return bars, nil
}

// stepClose applies one bar under close execution. The decision uses the
// previous bar's signal and counters; fills happen at today's close.
func (e *Engine) stepClose(st *PositionState, prev, cur Bar, final bool) LedgerRow {
	row := newLedgerRow(cur)
	row.ExecPrice = cur.Close
	row.DailyPnL = (cur.Close - prev.Close) * float64(st.Qty)
	sig := prev.Signal

	if st.Qty != 0 {
		q := exit.Quote{Close: cur.Close, VWAP: cur.VWAP, EMA: cur.EMA}
		if id, out := e.cfg.Exits.Evaluate(&st.State, q); out.Exit {
			logger.Debugf("%s exit %s: %s", cur.Date.Format("2006-01-02"), id, out.Reason)
			e.flatten(st, &row, id)
			return e.seal(st, row)
		}
	}

	allowBuy, allowSell := entryGate(cur.Close, cur.VWAP, e.cfg.EntryBandPct)
	switch {
	case st.Qty < 0 && sig == types.SignalBuy && allowBuy:
		e.flatten(st, &row, EventExitOpposite)
	case st.Qty > 0 && sig == types.SignalSell && allowSell:
		e.flatten(st, &row, EventExitOpposite)
	case st.Qty == 0:
		if final && e.cfg.EndPolicy == EndForceClose {
			break
		}
		switch {
		case sig == types.SignalBuy && allowBuy:
			if prev.LongsTillNow > prev.ShortsTillNow && prev.LongsTillNow > st.LastBuyTrigger {
				if e.open(st, &row, types.SideLong, cur.Close, st.Capital) {
					st.LastBuyTrigger = prev.LongsTillNow
				}
			}
		case sig == types.SignalSell && allowSell:
			if prev.ShortsTillNow > prev.LongsTillNow && prev.ShortsTillNow > st.LastSellTrigger {
				if e.open(st, &row, types.SideShort, cur.Close, st.Capital) {
					st.LastSellTrigger = prev.ShortsTillNow
				}
			}
		}
	default:
		st.Track(cur.Close)
	}
	return e.seal(st, row)
}

func (e *Engine) open(st *PositionState, row *LedgerRow, side types.Side, price, capital float64) bool {
	qty := sizeQty(capital, price)
	if qty <= 0 {
		logger.Debugf("%s %s signal sized to zero at %.2f", row.Date.Format("2006-01-02"), side, price)
		return false
	}
	event := EventEntryLong
	if side == types.SideShort {
		qty = -qty
		event = EventEntryShort
	}
	st.Qty = qty
	st.State.Open(side, price)
	row.QuantityTraded += qty
	row.addEvent(event)
	return true
}

// flatten closes the whole position and clears the side's trigger mark.
func (e *Engine) flatten(st *PositionState, row *LedgerRow, reason string) {
	if st.Qty > 0 {
		st.LastBuyTrigger = 0
	} else if st.Qty < 0 {
		st.LastSellTrigger = 0
	}
	row.QuantityTraded -= st.Qty
	row.addEvent(reason)
	st.Qty = 0
	e.cfg.Exits.Reset(&st.State)
	st.State.Clear()
}

func (e *Engine) seal(st *PositionState, row LedgerRow) LedgerRow {
	row.Position = st.Qty
	row.ArmedVWAP = st.ArmedVWAP
	row.ArmedEMA = st.ArmedEMA
	if st.Held() {
		row.EntryPrice = st.EntryPrice
	}
	return row
}

// finish applies the end policy and derives trades. complete is false for
// partial results, which are never force closed.
func (e *Engine) finish(res *Result, st PositionState, complete bool) {
	res.Meta.BarsProcessed = len(res.Ledger)
	if complete && e.cfg.EndPolicy == EndForceClose && st.Qty != 0 && len(res.Ledger) > 0 {
		last := &res.Ledger[len(res.Ledger)-1]
		last.QuantityTraded -= st.Qty
		last.Position = 0
		last.ExecPrice = last.Close
		last.EntryPrice = 0
		last.ArmedVWAP, last.ArmedEMA = false, false
		last.addEvent(EventForceClose)
	}
	res.Trades, res.Open = DeriveTrades(res.Ledger, e.cfg.EndPolicy)
}

func (e *Engine) meta() ResultMeta {
	m := ResultMeta{
		EndPolicy:        e.cfg.EndPolicy,
		Execution:        e.cfg.Execution,
		InvestmentAmount: e.cfg.InvestmentAmount,
		EntryBandPct:     e.cfg.EntryBandPct,
	}
	// compounding only applies to open fills
	switch e.cfg.Execution {
	case ExecClose:
		m.ExitRules = e.cfg.Exits.IDs()
	case ExecNextOpen:
		m.Compounding = e.cfg.Compounding
	}
	return m
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func (r *LedgerRow) addEvent(ev string) {
	if r.Event == "" {
		r.Event = ev
		return
	}
	r.Event = strings.Join([]string{r.Event, ev}, "+")
}

// IsDataError reports whether err came from malformed input bars.
func IsDataError(err error) bool {
	var mf *MissingFieldError
	return errors.As(err, &mf) || errors.Is(err, ErrUnorderedBars)
}
