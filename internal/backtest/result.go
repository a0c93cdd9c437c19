package backtest

import (
	"fnotrader/internal/signals"
)

// Result is the full output of one simulation.
type Result struct {
	Symbol string        `json:"symbol,omitempty"`
	Ledger []LedgerRow   `json:"ledger"`
	Trades []Trade       `json:"trades"`
	Open   *OpenPosition `json:"open_position,omitempty"`
	Meta   ResultMeta    `json:"meta"`
}

// ResultMeta records the settings a result was produced with.
type ResultMeta struct {
	EndPolicy        EndPolicy           `json:"end_policy"`
	Execution        Execution           `json:"execution"`
	InvestmentAmount float64             `json:"investment_amount"`
	EntryBandPct     float64             `json:"entry_band_pct"`
	Compounding      bool                `json:"compounding,omitempty"`
	ExitRules        []string            `json:"exit_rules,omitempty"`
	ExitProfile      string              `json:"exit_profile,omitempty"`
	SignalSource     string              `json:"signal_source,omitempty"`
	Thresholds       *signals.Thresholds `json:"thresholds,omitempty"`
	BarsProcessed    int                 `json:"bars_processed"`
	Cancelled        bool                `json:"cancelled,omitempty"`
}

// FinalPnL is the last cumulative P&L, 0 for an empty ledger.
func (r Result) FinalPnL() float64 {
	if len(r.Ledger) == 0 {
		return 0
	}
	return r.Ledger[len(r.Ledger)-1].CumulativePnL
}
