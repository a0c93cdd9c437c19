package backtest

import (
	"encoding/json"
	"time"

	"fnotrader/internal/signals"
)

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusDone      = "done"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// RunConfig is the parameter snapshot a run was executed with.
type RunConfig struct {
	Symbol           string              `json:"symbol"`
	From             string              `json:"from,omitempty"`
	To               string              `json:"to,omitempty"`
	InvestmentAmount float64             `json:"investment_amount"`
	EntryBandPct     float64             `json:"entry_band_pct"`
	EndPolicy        EndPolicy           `json:"end_policy"`
	Execution        Execution           `json:"execution"`
	Compounding      bool                `json:"compounding,omitempty"`
	SignalSource     string              `json:"signal_source"`
	ExitProfile      string              `json:"exit_profile,omitempty"`
	ExitRules        []string            `json:"exit_rules,omitempty"`
	SDMultiplier     float64             `json:"sd_multiplier"`
	Thresholds       *signals.Thresholds `json:"thresholds,omitempty"`
}

// RunStats is the stored summary of a finished run.
type RunStats struct {
	Summary
	Cancelled  bool      `json:"cancelled,omitempty"`
	Notes      []string  `json:"notes,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Run is one simulation job.
type Run struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	TotalPnL    float64   `json:"total_pnl"`
	Trades      int       `json:"trades"`
	Config      RunConfig `json:"config"`
	Stats       RunStats  `json:"stats"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// MarshalStats returns the stats JSON.
func (r Run) MarshalStats() ([]byte, error) {
	return json.Marshal(r.Stats)
}

// MarshalConfig returns the config JSON.
func (r Run) MarshalConfig() ([]byte, error) {
	return json.Marshal(r.Config)
}

// RunRequest is what callers submit. Empty fields fall back to configuration.
type RunRequest struct {
	Symbol           string   `json:"symbol" binding:"required"`
	From             string   `json:"from" binding:"omitempty,datetime=2006-01-02"`
	To               string   `json:"to" binding:"omitempty,datetime=2006-01-02"`
	InvestmentAmount float64  `json:"investment_amount" binding:"omitempty,gt=0"`
	EntryBandPct     *float64 `json:"entry_band_pct" binding:"omitempty,gte=0"`
	EndPolicy        string   `json:"end_policy" binding:"omitempty,oneof=leave_open force_close"`
	Execution        string   `json:"execution" binding:"omitempty,oneof=close next_open"`
	Compounding      *bool    `json:"compounding"`
	SignalSource     string   `json:"signal_source" binding:"omitempty,oneof=counter ml"`
	ExitProfile      string   `json:"exit_profile"`
}
