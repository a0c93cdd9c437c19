package handlers

import (
	"testing"

	"fnotrader/internal/config"
	"fnotrader/internal/strategy/exit"
	"fnotrader/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, handler string, params map[string]any) exit.Rule {
	t.Helper()
	rule, err := NewRegistry().MustHandler(handler).Build(params)
	require.NoError(t, err)
	return rule
}

func longAt(price float64) *exit.State {
	st := &exit.State{}
	st.Open(types.SideLong, price)
	return st
}

func shortAt(price float64) *exit.State {
	st := &exit.State{}
	st.Open(types.SideShort, price)
	return st
}

func TestHardStopBoundary(t *testing.T) {
	rule := build(t, HardStopID, map[string]any{"pct": 5})

	assert.True(t, rule.Evaluate(longAt(100), exit.Quote{Close: 94.99}).Exit)
	assert.False(t, rule.Evaluate(longAt(100), exit.Quote{Close: 95.01}).Exit)
	assert.False(t, rule.Evaluate(longAt(100), exit.Quote{Close: 95}).Exit, "stop is strict")

	assert.True(t, rule.Evaluate(shortAt(100), exit.Quote{Close: 105.01}).Exit)
	assert.False(t, rule.Evaluate(shortAt(100), exit.Quote{Close: 104.99}).Exit)
	assert.False(t, rule.Evaluate(&exit.State{}, exit.Quote{Close: 1}).Exit, "flat never exits")
}

func TestTrailingStop(t *testing.T) {
	rule := build(t, TrailingStopID, map[string]any{"pct": "15"})

	st := longAt(100)
	st.Track(120)
	assert.False(t, rule.Evaluate(st, exit.Quote{Close: 102.01}).Exit)
	out := rule.Evaluate(st, exit.Quote{Close: 102})
	assert.True(t, out.Exit, "exactly 15 percent off the high")
	assert.Equal(t, TrailingStopID, out.Reason)

	sh := shortAt(100)
	sh.Track(80)
	assert.Equal(t, 80.0, sh.LowWater)
	assert.True(t, rule.Evaluate(sh, exit.Quote{Close: 92}).Exit)
	assert.False(t, rule.Evaluate(sh, exit.Quote{Close: 91.99}).Exit)
}

func TestArmedLatch(t *testing.T) {
	rule := build(t, VWAPArmedID, map[string]any{"long_arm_pct": 5, "short_arm_pct": 5})

	t.Run("long arms then fires below vwap", func(t *testing.T) {
		st := longAt(100)
		out := rule.Evaluate(st, exit.Quote{Close: 106, VWAP: 100})
		assert.True(t, out.Armed)
		assert.False(t, out.Exit)
		assert.True(t, st.ArmedVWAP)

		assert.False(t, rule.Evaluate(st, exit.Quote{Close: 101, VWAP: 100}).Exit)
		assert.True(t, rule.Evaluate(st, exit.Quote{Close: 99, VWAP: 100}).Exit)
	})

	t.Run("arming bar cannot fire", func(t *testing.T) {
		st := longAt(100)
		assert.False(t, rule.Evaluate(st, exit.Quote{Close: 99, VWAP: 100}).Exit)
		assert.False(t, st.ArmedVWAP)
	})

	t.Run("band is strict", func(t *testing.T) {
		st := longAt(100)
		rule.Evaluate(st, exit.Quote{Close: 105, VWAP: 100})
		assert.False(t, st.ArmedVWAP)
	})

	t.Run("short mirrors", func(t *testing.T) {
		st := shortAt(100)
		rule.Evaluate(st, exit.Quote{Close: 94, VWAP: 100})
		require.True(t, st.ArmedVWAP)
		assert.True(t, rule.Evaluate(st, exit.Quote{Close: 100.5, VWAP: 100}).Exit)
	})

	t.Run("missing vwap disables the rule", func(t *testing.T) {
		st := longAt(100)
		st.ArmedVWAP = true
		assert.False(t, rule.Evaluate(st, exit.Quote{Close: 10}).Exit)
		rule.Reset(st)
		assert.False(t, st.ArmedVWAP)
	})

	t.Run("zero arm band never arms", func(t *testing.T) {
		off := build(t, VWAPArmedID, map[string]any{})
		st := longAt(100)
		off.Evaluate(st, exit.Quote{Close: 200, VWAP: 100})
		assert.False(t, st.ArmedVWAP)
	})
}

func TestEMAArmedUsesItsOwnFlag(t *testing.T) {
	rule := build(t, EMAArmedID, map[string]any{"period": 10, "long_arm_pct": 2})
	st := longAt(100)
	rule.Evaluate(st, exit.Quote{Close: 103, VWAP: 200, EMA: 100})
	assert.True(t, st.ArmedEMA)
	assert.False(t, st.ArmedVWAP)
	er, ok := rule.(exit.EMARule)
	require.True(t, ok)
	assert.Equal(t, 10, er.EMAPeriod())
}

func TestValidation(t *testing.T) {
	reg := NewRegistry()
	cases := []struct {
		name string
		spec exit.RuleSpec
		ok   bool
	}{
		{"hard stop ok", exit.RuleSpec{Handler: HardStopID, Params: map[string]any{"pct": 5}}, true},
		{"hard stop missing pct", exit.RuleSpec{Handler: HardStopID}, false},
		{"hard stop unknown field", exit.RuleSpec{Handler: HardStopID, Params: map[string]any{"pct": 5, "x": 1}}, false},
		{"trailing zero", exit.RuleSpec{Handler: TrailingStopID, Params: map[string]any{"pct": 0}}, false},
		{"ema needs period", exit.RuleSpec{Handler: EMAArmedID, Params: map[string]any{"long_arm_pct": 1}}, false},
		{"negative arm", exit.RuleSpec{Handler: VWAPArmedID, Params: map[string]any{"long_arm_pct": -1}}, false},
		{"unknown handler", exit.RuleSpec{Handler: "take_profit"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := reg.Validate(tc.spec)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestChainOrderAndConfig(t *testing.T) {
	cfg := config.ExitsConfig{
		HardStop:  config.StopExitConfig{Enabled: true, Pct: 5},
		VWAPArmed: config.ArmedExitConfig{Enabled: true, LongArmPct: 5, ShortArmPct: 5},
		EMAArmed:  config.ArmedExitConfig{Period: 20},
	}
	chain, err := NewRegistry().BuildChain(SpecsFromConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, []string{VWAPArmedID, HardStopID}, chain.IDs())
	assert.Zero(t, chain.EMAPeriod())

	st := longAt(100)
	st.ArmedVWAP = true
	id, out := chain.Evaluate(st, exit.Quote{Close: 90, VWAP: 95})
	assert.Equal(t, VWAPArmedID, id, "armed exit wins over the stop on the same bar")
	assert.True(t, out.Exit)

	id, _ = chain.Evaluate(&exit.State{}, exit.Quote{Close: 1})
	assert.Empty(t, id)
}
