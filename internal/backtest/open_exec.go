package backtest

import (
	"fnotrader/internal/logger"
	"fnotrader/internal/types"
)

// stepOpen applies one bar under next-open execution: the previous bar's
// signal fills at today's open, and a held position exits on an opposite
// or HOLD signal.
func (e *Engine) stepOpen(st *PositionState, prev, cur Bar, final bool) LedgerRow {
	row := newLedgerRow(cur)
	price := cur.Open
	if price <= 0 {
		logger.Warnf("%s has no open price, filling at close", cur.Date.Format("2006-01-02"))
		price = cur.Close
	}
	row.ExecPrice = price
	sig := prev.Signal

	if (st.Qty > 0 && sig != types.SignalBuy) || (st.Qty < 0 && sig != types.SignalSell) {
		realised := realisedPnL(st.Side, st.EntryPrice, price, abs64(st.Qty))
		if e.cfg.Compounding {
			st.Capital += realised
			if st.Capital < 0 {
				st.Capital = 0
			}
		}
		e.flatten(st, &row, EventExitSignal)
	}
	if st.Qty == 0 && price > 0 && !(final && e.cfg.EndPolicy == EndForceClose) {
		switch sig {
		case types.SignalBuy:
			e.open(st, &row, types.SideLong, price, st.Capital)
		case types.SignalSell:
			e.open(st, &row, types.SideShort, price, st.Capital)
		}
	}
	row.DailyPnL = (cur.Close - prev.Close) * float64(st.Qty)
	return e.seal(st, row)
}

func realisedPnL(side types.Side, entry, exitPrice float64, qty int64) float64 {
	if side == types.SideShort {
		return (entry - exitPrice) * float64(qty)
	}
	return (exitPrice - entry) * float64(qty)
}
