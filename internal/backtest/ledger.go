package backtest

import (
	"fmt"
	"math"
	"time"

	"fnotrader/internal/types"
)

// LedgerRow is one bar of simulation output.
type LedgerRow struct {
	Date           time.Time    `json:"date"`
	Open           float64      `json:"open,omitempty"`
	Close          float64      `json:"close"`
	VWAP           float64      `json:"vwap,omitempty"`
	EMA            float64      `json:"ema,omitempty"`
	OISum          float64      `json:"oi_sum"`
	LongsTillNow   float64      `json:"longs_till_now"`
	ShortsTillNow  float64      `json:"shorts_till_now"`
	Signal         types.Signal `json:"signal"`
	ExecPrice      float64      `json:"exec_price,omitempty"`
	QuantityTraded int64        `json:"quantity_traded"`
	Position       int64        `json:"position"`
	EntryPrice     float64      `json:"entry_price,omitempty"`
	DailyPnL       float64      `json:"daily_pnl"`
	CumulativePnL  float64      `json:"cumulative_pnl"`
	Event          string       `json:"event,omitempty"`
	ArmedVWAP      bool         `json:"armed_vwap"`
	ArmedEMA       bool         `json:"armed_ema"`
}

func newLedgerRow(b Bar) LedgerRow {
	return LedgerRow{
		Date:          b.Date,
		Open:          b.Open,
		Close:         b.Close,
		VWAP:          b.VWAP,
		EMA:           b.EMA,
		OISum:         b.OISum,
		LongsTillNow:  b.LongsTillNow,
		ShortsTillNow: b.ShortsTillNow,
		Signal:        b.Signal,
		ExecPrice:     b.Close,
	}
}

// RebuildPositions recomputes positions as the running sum of trades.
func RebuildPositions(ledger []LedgerRow) []int64 {
	out := make([]int64, len(ledger))
	var pos int64
	for i, r := range ledger {
		pos += r.QuantityTraded
		out[i] = pos
	}
	return out
}

// VerifyLedger checks the bookkeeping identities of a ledger: position is
// the running sum of trades, cumulative P&L the running sum of daily P&L,
// and no bar both holds and adds to a same-side position.
func VerifyLedger(ledger []LedgerRow) error {
	var pos int64
	cum := 0.0
	for i, r := range ledger {
		prev := pos
		pos += r.QuantityTraded
		if pos != r.Position {
			return fmt.Errorf("row %d: position %d, trades sum to %d", i, r.Position, pos)
		}
		cum += r.DailyPnL
		if math.Abs(cum-r.CumulativePnL) > 1e-6*math.Max(1, math.Abs(cum)) {
			return fmt.Errorf("row %d: cumulative pnl %.6f, daily sums to %.6f", i, r.CumulativePnL, cum)
		}
		if prev != 0 && pos != 0 && (prev > 0) == (pos > 0) && prev != pos {
			return fmt.Errorf("row %d: position resized from %d to %d", i, prev, pos)
		}
	}
	return nil
}
