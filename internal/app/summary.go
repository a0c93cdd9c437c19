package app

import (
	"fmt"
	"strings"

	"fnotrader/internal/backtest"
	"fnotrader/internal/config"
	"fnotrader/internal/strategy/exit"
)

type StartupSummary struct {
	Data       DataSummary
	Simulation SimulationSummary
	Signals    []string
	ExitRules  []string
	HTTPAddr   string
}

type DataSummary struct {
	Symbols      []string
	BarsRoot     string
	ResultsPath  string
	ThresholdsDB string
}

type SimulationSummary struct {
	InvestmentAmount float64
	EntryBandPct     float64
	EndPolicy        string
	Execution        string
	Compounding      bool
	DefaultSource    string
	ExitProfile      string
	MaxConcurrent    int
}

func newStartupSummary(cfg *config.Config, sources []backtest.SignalSource, inline []exit.RuleSpec) *StartupSummary {
	s := &StartupSummary{
		Data: DataSummary{
			Symbols:      cfg.Data.NormalizedSymbols(),
			BarsRoot:     cfg.Data.Root,
			ResultsPath:  cfg.Data.ResultsPath,
			ThresholdsDB: cfg.Data.ThresholdsDB,
		},
		Simulation: SimulationSummary{
			InvestmentAmount: cfg.Simulation.InvestmentAmount,
			EntryBandPct:     cfg.Simulation.EntryBandPct,
			EndPolicy:        cfg.Simulation.EndPolicy,
			Execution:        cfg.Simulation.Execution,
			Compounding:      cfg.Simulation.Compounding,
			DefaultSource:    cfg.Signal.Source,
			ExitProfile:      cfg.Exits.Profile,
			MaxConcurrent:    cfg.Simulation.MaxConcurrent,
		},
		HTTPAddr: cfg.App.HTTPAddr,
	}
	for _, src := range sources {
		s.Signals = append(s.Signals, src.Name())
	}
	for _, r := range inline {
		s.ExitRules = append(s.ExitRules, r.Handler)
	}
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("STARTUP SUMMARY")/2, "STARTUP SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[DATA]")
	fmt.Printf("  symbols:    %s\n", formatList(s.Data.Symbols))
	fmt.Printf("  bars:       %s\n", s.Data.BarsRoot)
	fmt.Printf("  results:    %s\n", s.Data.ResultsPath)
	fmt.Printf("  thresholds: %s\n", s.Data.ThresholdsDB)
	fmt.Println()

	sim := s.Simulation
	fmt.Println("[SIMULATION]")
	fmt.Printf("  investment: %.2f\n", sim.InvestmentAmount)
	fmt.Printf("  entry band: %.2f%%\n", sim.EntryBandPct)
	fmt.Printf("  end policy: %s\n", sim.EndPolicy)
	fmt.Printf("  execution:  %s (compounding=%v)\n", sim.Execution, sim.Compounding)
	fmt.Printf("  workers:    %d\n", sim.MaxConcurrent)
	fmt.Println()

	fmt.Println("[SIGNALS / EXITS]")
	fmt.Printf("  sources:      %s (default %s)\n", formatList(s.Signals), sim.DefaultSource)
	if sim.ExitProfile != "" {
		fmt.Printf("  exit profile: %s\n", sim.ExitProfile)
	} else {
		fmt.Printf("  exit rules:   %s\n", formatList(s.ExitRules))
	}
	if s.HTTPAddr != "" {
		fmt.Printf("  http:         %s\n", s.HTTPAddr)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
