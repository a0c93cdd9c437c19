package config

import "strings"

// Config is the root configuration for fnotrader.
type Config struct {
	App         AppConfig         `toml:"app"`
	Data        DataConfig        `toml:"data"`
	Signal      SignalConfig      `toml:"signal"`
	Calibration CalibrationConfig `toml:"calibration"`
	Simulation  SimulationConfig  `toml:"simulation"`
	Exits       ExitsConfig       `toml:"exits"`
	ML          MLConfig          `toml:"ml"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogPath   string `toml:"log_path"`
	HTTPAddr  string `toml:"http_addr"`
}

// DataConfig locates the bar store, result store and threshold database.
type DataConfig struct {
	Root         string   `toml:"root"`
	ResultsPath  string   `toml:"results_path"`
	ThresholdsDB string   `toml:"thresholds_db"`
	Symbols      []string `toml:"symbols"`
}

// NormalizedSymbols returns the configured symbols upper-cased, deduplicated, in order.
func (d DataConfig) NormalizedSymbols() []string {
	seen := make(map[string]struct{}, len(d.Symbols))
	out := make([]string, 0, len(d.Symbols))
	for _, s := range d.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

type SignalConfig struct {
	SDMultiplier           float64 `toml:"sd_multiplier"`
	DifferenceThresholdPct float64 `toml:"difference_threshold_pct"`
	MinOIQuantile          float64 `toml:"min_oi_quantile"`
	Source                 string  `toml:"source"` // "counter" | "ml"
}

type CalibrationConfig struct {
	MinObservations int  `toml:"min_observations"`
	Auto            bool `toml:"auto"`
}

// SimulationConfig holds sizing, gating and execution settings. Percent
// values are in percent units (0.5 means half a percent).
type SimulationConfig struct {
	InvestmentAmount float64 `toml:"investment_amount"`
	EndPolicy        string  `toml:"end_policy"` // "leave_open" | "force_close"
	EntryBandPct     float64 `toml:"entry_band_pct"`
	Execution        string  `toml:"execution"` // "close" | "next_open"
	Compounding      bool    `toml:"compounding"`
	MaxConcurrent    int     `toml:"max_concurrent"`
}

// ExitsConfig selects the exit rules. When Profile is set it names an entry
// in the profile file; otherwise the inline toggles below build the chain.
type ExitsConfig struct {
	Profile      string          `toml:"profile"`
	ProfilesPath string          `toml:"profiles_path"`
	VWAPArmed    ArmedExitConfig `toml:"vwap_armed"`
	EMAArmed     ArmedExitConfig `toml:"ema_armed"`
	HardStop     StopExitConfig  `toml:"hard_stop"`
	TrailingStop StopExitConfig  `toml:"trailing_stop"`
}

type ArmedExitConfig struct {
	Enabled     bool    `toml:"enabled"`
	Period      int     `toml:"period"` // EMA only
	LongArmPct  float64 `toml:"long_arm_pct"`
	ShortArmPct float64 `toml:"short_arm_pct"`
}

type StopExitConfig struct {
	Enabled bool    `toml:"enabled"`
	Pct     float64 `toml:"pct"`
}

type MLConfig struct {
	Enabled         bool    `toml:"enabled"`
	Endpoint        string  `toml:"endpoint"`
	PredictionsPath string  `toml:"predictions_path"`
	Model           string  `toml:"model"` // "centroid" trains in-process walk-forward
	ProbLong        float64 `toml:"prob_long"`
	ProbShort       float64 `toml:"prob_short"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	RatePerSecond   float64 `toml:"rate_per_second"`
	MinTrainSize    int     `toml:"min_train_size"`
	UpThreshold     float64 `toml:"up_threshold"`
	DownThreshold   float64 `toml:"down_threshold"`
}

// keySet tracks the field paths explicitly present in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes how a single field receives its default.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
