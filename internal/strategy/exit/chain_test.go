package exit

import (
	"testing"

	"fnotrader/internal/types"

	"github.com/stretchr/testify/assert"
)

type stubRule struct {
	id    string
	stage Stage
	fire  bool
	calls *[]string
}

func (s stubRule) ID() string   { return s.id }
func (s stubRule) Stage() Stage { return s.stage }
func (s stubRule) Reset(*State) {}
func (s stubRule) Evaluate(*State, Quote) Outcome {
	*s.calls = append(*s.calls, s.id)
	return Outcome{Exit: s.fire, Reason: s.id}
}

func TestChainStagesAndShortCircuit(t *testing.T) {
	var calls []string
	chain := NewChain(
		stubRule{id: "risk", stage: StageRisk, fire: true, calls: &calls},
		stubRule{id: "armed", stage: StageArmed, calls: &calls},
		nil,
		stubRule{id: "risk2", stage: StageRisk, fire: true, calls: &calls},
	)
	assert.Equal(t, []string{"armed", "risk", "risk2"}, chain.IDs())

	st := &State{}
	st.Open(types.SideLong, 10)
	id, out := chain.Evaluate(st, Quote{Close: 9})
	assert.Equal(t, "risk", id)
	assert.True(t, out.Exit)
	assert.Equal(t, []string{"armed", "risk"}, calls)
}

func TestStateTracking(t *testing.T) {
	st := &State{}
	assert.False(t, st.Held())
	st.Open(types.SideShort, 50)
	st.Track(55)
	st.Track(45)
	st.Track(47)
	assert.Equal(t, 45.0, st.LowWater)
	assert.Equal(t, 50.0, st.HighWater, "short does not move the high")

	st.ArmedEMA = true
	st.Clear()
	assert.Equal(t, State{Side: types.SideFlat}, *st)
}

func TestSanitizeParams(t *testing.T) {
	got := SanitizeParams(map[string]any{"pct": " 5 ", "name": "x", "nested": []any{"1"}})
	assert.Equal(t, 5.0, got["pct"])
	assert.Equal(t, "x", got["name"])
	assert.Equal(t, []any{1.0}, got["nested"])
	assert.Nil(t, SanitizeParams(nil))
}
