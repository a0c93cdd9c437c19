package handlers

import (
	"fnotrader/internal/config"
	"fnotrader/internal/strategy/exit"
)

// SpecsFromConfig turns the inline exits section into rule specs, armed
// exits first.
func SpecsFromConfig(cfg config.ExitsConfig) []exit.RuleSpec {
	var specs []exit.RuleSpec
	if cfg.VWAPArmed.Enabled {
		specs = append(specs, exit.RuleSpec{Handler: VWAPArmedID, Params: map[string]any{
			"long_arm_pct":  cfg.VWAPArmed.LongArmPct,
			"short_arm_pct": cfg.VWAPArmed.ShortArmPct,
		}})
	}
	if cfg.EMAArmed.Enabled {
		specs = append(specs, exit.RuleSpec{Handler: EMAArmedID, Params: map[string]any{
			"period":        cfg.EMAArmed.Period,
			"long_arm_pct":  cfg.EMAArmed.LongArmPct,
			"short_arm_pct": cfg.EMAArmed.ShortArmPct,
		}})
	}
	if cfg.HardStop.Enabled {
		specs = append(specs, exit.RuleSpec{Handler: HardStopID, Params: map[string]any{"pct": cfg.HardStop.Pct}})
	}
	if cfg.TrailingStop.Enabled {
		specs = append(specs, exit.RuleSpec{Handler: TrailingStopID, Params: map[string]any{"pct": cfg.TrailingStop.Pct}})
	}
	return specs
}
