package backtest

import (
	"math"
)

// Summary is the headline statistics of a result.
type Summary struct {
	Bars           int     `json:"bars"`
	TotalPnL       float64 `json:"total_pnl"`
	RealizedPnL    float64 `json:"realized_pnl"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	Trades         int     `json:"trades"`
	LongTrades     int     `json:"long_trades"`
	ShortTrades    int     `json:"short_trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate"`
	AvgReturnPct   float64 `json:"avg_return_pct"`
	AvgHoldingDays float64 `json:"avg_holding_days"`
	MaxDrawdown    float64 `json:"max_drawdown"`
}

func Summarize(res Result) Summary {
	s := Summary{Bars: len(res.Ledger), TotalPnL: res.FinalPnL(), Trades: len(res.Trades)}
	var retSum, daySum float64
	for _, t := range res.Trades {
		s.RealizedPnL += t.PnL
		retSum += t.ReturnPct
		daySum += float64(t.HoldingDays)
		if t.Direction == DirectionShort {
			s.ShortTrades++
		} else {
			s.LongTrades++
		}
		switch {
		case t.PnL > 0:
			s.Wins++
		case t.PnL < 0:
			s.Losses++
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
		s.AvgReturnPct = retSum / float64(s.Trades)
		s.AvgHoldingDays = daySum / float64(s.Trades)
	}
	if res.Open != nil {
		s.UnrealizedPnL = res.Open.UnrealizedPnL
	}
	peak := 0.0
	for _, r := range res.Ledger {
		peak = math.Max(peak, r.CumulativePnL)
		s.MaxDrawdown = math.Max(s.MaxDrawdown, peak-r.CumulativePnL)
	}
	return s
}
