package handlers

import (
	"fnotrader/internal/strategy/exit"
)

const (
	VWAPArmedID    = "vwap_armed"
	EMAArmedID     = "ema_armed"
	HardStopID     = "hard_stop"
	TrailingStopID = "trailing_stop"
)

// Register installs the built-in exit handlers.
func Register(reg *exit.HandlerRegistry) {
	reg.Register(newArmedHandler(VWAPArmedID, anchorVWAP))
	reg.Register(newArmedHandler(EMAArmedID, anchorEMA))
	reg.Register(newStopHandler(HardStopID, func(pct float64) exit.Rule {
		return &hardStopRule{pct: pct}
	}))
	reg.Register(newStopHandler(TrailingStopID, func(pct float64) exit.Rule {
		return &trailingStopRule{pct: pct}
	}))
}

// NewRegistry returns a registry with the built-in handlers.
func NewRegistry() *exit.HandlerRegistry {
	reg := exit.NewHandlerRegistry()
	Register(reg)
	return reg
}
