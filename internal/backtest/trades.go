package backtest

import (
	"math"
	"strings"
	"time"

	"fnotrader/internal/types"
)

// Trade is one closed round trip.
type Trade struct {
	EntryDate   time.Time `json:"entry_date"`
	ExitDate    time.Time `json:"exit_date"`
	HoldingDays int       `json:"holding_days"`
	Direction   string    `json:"direction"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	Qty         int64     `json:"qty"`
	PnL         float64   `json:"pnl"`
	ReturnPct   float64   `json:"return_pct"`
	ExitReason  string    `json:"exit_reason,omitempty"`
}

// OpenPosition is a position still held after the last bar, marked at the
// final close.
type OpenPosition struct {
	EntryDate     time.Time `json:"entry_date"`
	MarkDate      time.Time `json:"mark_date"`
	HoldingDays   int       `json:"holding_days"`
	Direction     string    `json:"direction"`
	EntryPrice    float64   `json:"entry_price"`
	MarkPrice     float64   `json:"mark_price"`
	Qty           int64     `json:"qty"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	ReturnPct     float64   `json:"return_pct"`
}

const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

type openLeg struct {
	date  time.Time
	price float64
	qty   int64
}

// DeriveTrades pairs entries and exits from a ledger. A bar whose trade
// flips the position closes the old leg and opens a new one. With
// force_close a leg still open at the end is closed at the last close.
func DeriveTrades(ledger []LedgerRow, policy EndPolicy) ([]Trade, *OpenPosition) {
	var (
		trades []Trade
		leg    *openLeg
		prev   int64
	)
	for _, r := range ledger {
		pos := prev + r.QuantityTraded
		if r.QuantityTraded != 0 {
			if leg != nil && (pos == 0 || (pos > 0) != (leg.qty > 0)) {
				trades = append(trades, closeLeg(*leg, r.Date, r.ExecPrice, exitReason(r.Event)))
				leg = nil
			}
			if leg == nil && pos != 0 {
				leg = &openLeg{date: r.Date, price: r.ExecPrice, qty: pos}
			}
		}
		prev = pos
	}
	if leg == nil || len(ledger) == 0 {
		return trades, nil
	}
	last := ledger[len(ledger)-1]
	if policy == EndForceClose {
		trades = append(trades, closeLeg(*leg, last.Date, last.Close, EventForceClose))
		return trades, nil
	}
	t := closeLeg(*leg, last.Date, last.Close, "")
	return trades, &OpenPosition{
		EntryDate:     t.EntryDate,
		MarkDate:      t.ExitDate,
		HoldingDays:   t.HoldingDays,
		Direction:     t.Direction,
		EntryPrice:    t.EntryPrice,
		MarkPrice:     t.ExitPrice,
		Qty:           t.Qty,
		UnrealizedPnL: t.PnL,
		ReturnPct:     t.ReturnPct,
	}
}

func closeLeg(leg openLeg, date time.Time, price float64, reason string) Trade {
	side := types.SideOf(leg.qty)
	qty := abs64(leg.qty)
	t := Trade{
		EntryDate:   leg.date,
		ExitDate:    date,
		HoldingDays: calendarDays(leg.date, date),
		Direction:   DirectionLong,
		EntryPrice:  leg.price,
		ExitPrice:   price,
		Qty:         qty,
		PnL:         realisedPnL(side, leg.price, price, qty),
		ExitReason:  reason,
	}
	if side == types.SideShort {
		t.Direction = DirectionShort
	}
	if leg.price > 0 {
		t.ReturnPct = t.PnL / (leg.price * float64(qty)) * 100
	}
	return t
}

// exitReason keeps the closing half of a combined event.
func exitReason(event string) string {
	for _, part := range strings.Split(event, "+") {
		if part != EventEntryLong && part != EventEntryShort && part != "" {
			return part
		}
	}
	return ""
}

func calendarDays(from, to time.Time) int {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(to.Sub(from).Hours() / 24))
}
