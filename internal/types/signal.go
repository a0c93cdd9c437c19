package types

import (
	"fmt"
	"strings"
)

// Signal is the per-day trading instruction consumed by the position state machine.
type Signal string

const (
	SignalHold Signal = "HOLD"
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
)

// ParseSignal accepts BUY/SELL/HOLD in any case; empty input is HOLD.
func ParseSignal(raw string) (Signal, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "HOLD":
		return SignalHold, nil
	case "BUY":
		return SignalBuy, nil
	case "SELL":
		return SignalSell, nil
	default:
		return SignalHold, fmt.Errorf("unknown signal %q", raw)
	}
}

func (s Signal) String() string {
	if s == "" {
		return string(SignalHold)
	}
	return string(s)
}

// Side names a position direction.
type Side string

const (
	SideFlat  Side = "flat"
	SideLong  Side = "long"
	SideShort Side = "short"
)

// SideOf returns the side implied by a signed quantity.
func SideOf(qty int64) Side {
	switch {
	case qty > 0:
		return SideLong
	case qty < 0:
		return SideShort
	default:
		return SideFlat
	}
}
