package config

import (
	"fmt"
)

func validate(c *Config) error {
	if err := c.Signal.validate(); err != nil {
		return err
	}
	if err := c.Simulation.validate(); err != nil {
		return err
	}
	if err := c.Exits.validate(); err != nil {
		return err
	}
	if err := c.ML.validate(c.Signal.Source); err != nil {
		return err
	}
	return nil
}

func (s *SignalConfig) validate() error {
	if s.SDMultiplier < 0 {
		return fmt.Errorf("signal.sd_multiplier must be >= 0")
	}
	if s.DifferenceThresholdPct < 0 {
		return fmt.Errorf("signal.difference_threshold_pct must be >= 0")
	}
	if s.MinOIQuantile < 0 || s.MinOIQuantile > 1 {
		return fmt.Errorf("signal.min_oi_quantile must be in [0,1]")
	}
	switch s.Source {
	case "counter", "ml":
	default:
		return fmt.Errorf("signal.source must be counter or ml, got %q", s.Source)
	}
	return nil
}

func (s *SimulationConfig) validate() error {
	if s.InvestmentAmount <= 0 {
		return fmt.Errorf("simulation.investment_amount must be > 0")
	}
	switch s.EndPolicy {
	case "leave_open", "force_close":
	default:
		return fmt.Errorf("simulation.end_policy must be leave_open or force_close, got %q", s.EndPolicy)
	}
	switch s.Execution {
	case "close", "next_open":
	default:
		return fmt.Errorf("simulation.execution must be close or next_open, got %q", s.Execution)
	}
	if s.EntryBandPct < 0 {
		return fmt.Errorf("simulation.entry_band_pct must be >= 0")
	}
	if s.MaxConcurrent <= 0 || s.MaxConcurrent > 64 {
		return fmt.Errorf("simulation.max_concurrent must be in [1,64]")
	}
	return nil
}

func (e *ExitsConfig) validate() error {
	if e.Profile != "" && e.ProfilesPath == "" {
		return fmt.Errorf("exits.profile=%s requires exits.profiles_path", e.Profile)
	}
	if e.VWAPArmed.LongArmPct < 0 || e.VWAPArmed.ShortArmPct < 0 {
		return fmt.Errorf("exits.vwap_armed arm percentages must be >= 0")
	}
	if e.EMAArmed.LongArmPct < 0 || e.EMAArmed.ShortArmPct < 0 {
		return fmt.Errorf("exits.ema_armed arm percentages must be >= 0")
	}
	if e.EMAArmed.Enabled && e.EMAArmed.Period < 2 {
		return fmt.Errorf("exits.ema_armed.period must be >= 2")
	}
	if e.HardStop.Enabled && (e.HardStop.Pct <= 0 || e.HardStop.Pct >= 100) {
		return fmt.Errorf("exits.hard_stop.pct must be in (0,100)")
	}
	if e.TrailingStop.Enabled && (e.TrailingStop.Pct <= 0 || e.TrailingStop.Pct >= 100) {
		return fmt.Errorf("exits.trailing_stop.pct must be in (0,100)")
	}
	return nil
}

func (m *MLConfig) validate(source string) error {
	if source == "ml" && !m.Enabled {
		return fmt.Errorf("signal.source=ml requires ml.enabled")
	}
	if !m.Enabled {
		return nil
	}
	if m.Model != "" && m.Model != "centroid" {
		return fmt.Errorf("ml.model must be centroid, got %q", m.Model)
	}
	if m.Endpoint == "" && m.PredictionsPath == "" && m.Model == "" {
		return fmt.Errorf("ml requires endpoint or predictions_path or model")
	}
	if m.ProbLong < 0 || m.ProbLong > 1 || m.ProbShort < 0 || m.ProbShort > 1 {
		return fmt.Errorf("ml.prob_long and ml.prob_short must be in [0,1]")
	}
	if m.UpThreshold <= m.DownThreshold {
		return fmt.Errorf("ml.up_threshold must be greater than ml.down_threshold")
	}
	return nil
}
