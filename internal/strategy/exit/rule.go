package exit

import (
	"fnotrader/internal/types"
)

// Stage orders rules inside a Chain. Armed exits run before risk exits.
type Stage int

const (
	StageArmed Stage = iota
	StageRisk
)

func (s Stage) String() string {
	switch s {
	case StageArmed:
		return "armed"
	case StageRisk:
		return "risk"
	default:
		return "unknown"
	}
}

// Quote is the bar an exit rule sees. Zero VWAP or EMA means unavailable.
type Quote struct {
	Close float64
	VWAP  float64
	EMA   float64
}

// State is the slice of position state exit rules read and mutate.
type State struct {
	Side       types.Side
	EntryPrice float64
	HighWater  float64
	LowWater   float64
	ArmedVWAP  bool
	ArmedEMA   bool
}

// Held reports whether a position is open.
func (s *State) Held() bool {
	return s != nil && (s.Side == types.SideLong || s.Side == types.SideShort)
}

// Open records a fresh entry; both latches start disarmed.
func (s *State) Open(side types.Side, price float64) {
	s.Side = side
	s.EntryPrice = price
	s.HighWater = price
	s.LowWater = price
	s.ArmedVWAP = false
	s.ArmedEMA = false
}

// Track moves the water mark of the held side with today's close.
func (s *State) Track(close float64) {
	switch s.Side {
	case types.SideLong:
		if close > s.HighWater {
			s.HighWater = close
		}
	case types.SideShort:
		if s.LowWater <= 0 || close < s.LowWater {
			s.LowWater = close
		}
	}
}

// Clear returns the state to flat.
func (s *State) Clear() {
	*s = State{Side: types.SideFlat}
}

// Outcome is a rule's verdict for one bar.
type Outcome struct {
	Exit   bool
	Armed  bool
	Reason string
}

// Rule is one pluggable exit strategy.
type Rule interface {
	ID() string
	Stage() Stage
	// Evaluate may update latches in st; it never changes quantity.
	Evaluate(st *State, q Quote) Outcome
	// Reset drops whatever the rule keeps in st.
	Reset(st *State)
}

// EMARule is implemented by rules that need an EMA anchor on each quote.
type EMARule interface {
	EMAPeriod() int
}
