package config

import (
	"strings"
)

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogFormat     = "text"
	defaultAppHTTPAddr      = ":9991"
	defaultDataRoot         = "data/bars"
	defaultResultsPath      = "data/results"
	defaultThresholdsDB     = "data/thresholds.db"
	defaultSDMultiplier     = 0.2
	defaultDifferencePct    = 5.0
	defaultMinOIQuantile    = 0.25
	defaultSignalSource     = "counter"
	defaultMinObservations  = 10
	defaultInvestment       = 100000
	defaultEndPolicy        = "leave_open"
	defaultEntryBandPct     = 0.5
	defaultExecution        = "close"
	defaultMaxConcurrent    = 4
	defaultArmPct           = 5.0
	defaultEMAPeriod        = 20
	defaultHardStopPct      = 5.0
	defaultTrailingStopPct  = 15.0
	defaultMLProb           = 0.55
	defaultMLTimeoutSeconds = 10
	defaultMLMinTrain       = 60
	defaultMLUpThreshold    = 0.002
	defaultMLDownThreshold  = -0.002
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Signal.applyDefaults(keys)
	c.Calibration.applyDefaults(keys)
	c.Simulation.applyDefaults(keys)
	c.Exits.applyDefaults(keys)
	c.ML.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.root", &d.Root, defaultDataRoot),
		stringFieldDefault("data.results_path", &d.ResultsPath, defaultResultsPath),
		stringFieldDefault("data.thresholds_db", &d.ThresholdsDB, defaultThresholdsDB),
	)
	d.Symbols = d.NormalizedSymbols()
}

func (s *SignalConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		positiveFloatDefault("signal.sd_multiplier", &s.SDMultiplier, defaultSDMultiplier),
		positiveFloatDefault("signal.difference_threshold_pct", &s.DifferenceThresholdPct, defaultDifferencePct),
		positiveFloatDefault("signal.min_oi_quantile", &s.MinOIQuantile, defaultMinOIQuantile),
		stringFieldDefault("signal.source", &s.Source, defaultSignalSource),
	)
	s.Source = strings.ToLower(strings.TrimSpace(s.Source))
}

func (c *CalibrationConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "calibration.min_observations",
			need:  func() bool { return c.MinObservations <= 0 },
			apply: func() { c.MinObservations = defaultMinObservations },
		},
		boolFieldDefault("calibration.auto", &c.Auto, true),
	)
}

func (s *SimulationConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		positiveFloatDefault("simulation.investment_amount", &s.InvestmentAmount, defaultInvestment),
		stringFieldDefault("simulation.end_policy", &s.EndPolicy, defaultEndPolicy),
		positiveFloatDefault("simulation.entry_band_pct", &s.EntryBandPct, defaultEntryBandPct),
		stringFieldDefault("simulation.execution", &s.Execution, defaultExecution),
		fieldDefault{
			key:   "simulation.max_concurrent",
			need:  func() bool { return s.MaxConcurrent <= 0 },
			apply: func() { s.MaxConcurrent = defaultMaxConcurrent },
		},
	)
	s.EndPolicy = strings.ToLower(strings.TrimSpace(s.EndPolicy))
	s.Execution = strings.ToLower(strings.TrimSpace(s.Execution))
}

func (e *ExitsConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		positiveFloatDefault("exits.vwap_armed.long_arm_pct", &e.VWAPArmed.LongArmPct, defaultArmPct),
		positiveFloatDefault("exits.vwap_armed.short_arm_pct", &e.VWAPArmed.ShortArmPct, defaultArmPct),
		positiveFloatDefault("exits.ema_armed.long_arm_pct", &e.EMAArmed.LongArmPct, defaultArmPct),
		positiveFloatDefault("exits.ema_armed.short_arm_pct", &e.EMAArmed.ShortArmPct, defaultArmPct),
		fieldDefault{
			key:   "exits.ema_armed.period",
			need:  func() bool { return e.EMAArmed.Period <= 0 },
			apply: func() { e.EMAArmed.Period = defaultEMAPeriod },
		},
		boolFieldDefault("exits.hard_stop.enabled", &e.HardStop.Enabled, true),
		positiveFloatDefault("exits.hard_stop.pct", &e.HardStop.Pct, defaultHardStopPct),
		boolFieldDefault("exits.trailing_stop.enabled", &e.TrailingStop.Enabled, true),
		positiveFloatDefault("exits.trailing_stop.pct", &e.TrailingStop.Pct, defaultTrailingStopPct),
	)
	e.Profile = strings.TrimSpace(e.Profile)
	e.ProfilesPath = strings.TrimSpace(e.ProfilesPath)
}

func (m *MLConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		positiveFloatDefault("ml.prob_long", &m.ProbLong, defaultMLProb),
		positiveFloatDefault("ml.prob_short", &m.ProbShort, defaultMLProb),
		fieldDefault{
			key:   "ml.timeout_seconds",
			need:  func() bool { return m.TimeoutSeconds <= 0 },
			apply: func() { m.TimeoutSeconds = defaultMLTimeoutSeconds },
		},
		fieldDefault{
			key:   "ml.min_train_size",
			need:  func() bool { return m.MinTrainSize <= 0 },
			apply: func() { m.MinTrainSize = defaultMLMinTrain },
		},
		positiveFloatDefault("ml.up_threshold", &m.UpThreshold, defaultMLUpThreshold),
		fieldDefault{
			key:   "ml.down_threshold",
			need:  func() bool { return m.DownThreshold >= 0 },
			apply: func() { m.DownThreshold = defaultMLDownThreshold },
		},
	)
	m.Endpoint = strings.TrimSpace(m.Endpoint)
	m.PredictionsPath = strings.TrimSpace(m.PredictionsPath)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func positiveFloatDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
