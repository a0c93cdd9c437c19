package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fnotrader/internal/config"
	"fnotrader/internal/logger"
	"fnotrader/internal/signals"
	"fnotrader/internal/strategy/exit"

	"github.com/google/uuid"
)

// ErrUnknownRun is returned for a run id the store does not know.
var ErrUnknownRun = errors.New("unknown run")

// ThresholdStore persists calibrated thresholds per symbol.
type ThresholdStore interface {
	LoadThresholds(ctx context.Context, symbol string) (signals.Thresholds, bool, error)
	SaveThresholds(ctx context.Context, symbol string, th signals.Thresholds) error
}

// ExitResolver builds the exit chain for a profile name; "" means default.
type ExitResolver interface {
	Chain(profile string) (*exit.Chain, string, error)
}

// Observer is told about every finished run.
type Observer interface {
	ObserveRun(symbol, status string, elapsed time.Duration, res Result)
}

// Defaults are the configuration values a request may override.
type Defaults struct {
	InvestmentAmount float64
	EntryBandPct     float64
	EndPolicy        EndPolicy
	Execution        Execution
	Compounding      bool
	SignalSource     string
	ExitProfile      string
	SDMultiplier     float64
	MinObservations  int
	AutoCalibrate    bool
}

// DefaultsFromConfig lifts the run defaults out of the loaded configuration.
func DefaultsFromConfig(cfg config.Config) Defaults {
	return Defaults{
		InvestmentAmount: cfg.Simulation.InvestmentAmount,
		EntryBandPct:     cfg.Simulation.EntryBandPct,
		EndPolicy:        EndPolicy(cfg.Simulation.EndPolicy),
		Execution:        Execution(cfg.Simulation.Execution),
		Compounding:      cfg.Simulation.Compounding,
		SignalSource:     cfg.Signal.Source,
		ExitProfile:      cfg.Exits.Profile,
		SDMultiplier:     cfg.Signal.SDMultiplier,
		MinObservations:  cfg.Calibration.MinObservations,
		AutoCalibrate:    cfg.Calibration.Auto,
	}
}

type SimulatorConfig struct {
	Bars          *BarStore
	Results       *ResultStore
	Thresholds    ThresholdStore
	Exits         ExitResolver
	Sources       []SignalSource
	Defaults      Defaults
	Observer      Observer
	MaxConcurrent int
}

// Simulator turns stored bars into persisted backtest runs.
type Simulator struct {
	bars       *BarStore
	results    *ResultStore
	thresholds ThresholdStore
	exits      ExitResolver
	sources    map[string]SignalSource
	defaults   Defaults
	observer   Observer

	sem     chan struct{}
	baseCtx context.Context
	wg      sync.WaitGroup
}

func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if cfg.Bars == nil {
		return nil, fmt.Errorf("bar store is required")
	}
	if cfg.Results == nil {
		return nil, fmt.Errorf("result store is required")
	}
	if cfg.Thresholds == nil {
		return nil, fmt.Errorf("threshold store is required")
	}
	if cfg.Exits == nil {
		return nil, fmt.Errorf("exit resolver is required")
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("at least one signal source is required")
	}
	sources := make(map[string]SignalSource, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if src != nil {
			sources[strings.ToLower(src.Name())] = src
		}
	}
	if cfg.Defaults.SignalSource == "" {
		cfg.Defaults.SignalSource = "counter"
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Simulator{
		bars:       cfg.Bars,
		results:    cfg.Results,
		thresholds: cfg.Thresholds,
		exits:      cfg.Exits,
		sources:    sources,
		defaults:   cfg.Defaults,
		observer:   cfg.Observer,
		sem:        make(chan struct{}, maxConcurrent),
		baseCtx:    context.Background(),
	}, nil
}

func (s *Simulator) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Simulator) ctx() context.Context {
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}

// Wait blocks until background runs have finished.
func (s *Simulator) Wait() {
	s.wg.Wait()
}

// Results exposes the run store for read APIs.
func (s *Simulator) Results() *ResultStore { return s.results }

// Bars exposes the bar store for read APIs.
func (s *Simulator) Bars() *BarStore { return s.bars }

// BuildRunConfig merges a request with the defaults and validates it.
func (s *Simulator) BuildRunConfig(req RunRequest) (RunConfig, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return RunConfig{}, fmt.Errorf("symbol is required")
	}
	d := s.defaults
	cfg := RunConfig{
		Symbol:           symbol,
		From:             strings.TrimSpace(req.From),
		To:               strings.TrimSpace(req.To),
		InvestmentAmount: d.InvestmentAmount,
		EntryBandPct:     d.EntryBandPct,
		EndPolicy:        d.EndPolicy,
		Execution:        d.Execution,
		Compounding:      d.Compounding,
		SignalSource:     d.SignalSource,
		ExitProfile:      d.ExitProfile,
		SDMultiplier:     d.SDMultiplier,
	}
	if req.InvestmentAmount > 0 {
		cfg.InvestmentAmount = req.InvestmentAmount
	}
	if req.EntryBandPct != nil {
		cfg.EntryBandPct = *req.EntryBandPct
	}
	if req.EndPolicy != "" {
		cfg.EndPolicy = EndPolicy(strings.ToLower(req.EndPolicy))
	}
	if req.Execution != "" {
		cfg.Execution = Execution(strings.ToLower(req.Execution))
	}
	if req.Compounding != nil {
		cfg.Compounding = *req.Compounding
	}
	if req.SignalSource != "" {
		cfg.SignalSource = strings.ToLower(req.SignalSource)
	}
	if req.ExitProfile != "" {
		cfg.ExitProfile = req.ExitProfile
	}
	if _, ok := s.sources[cfg.SignalSource]; !ok {
		return RunConfig{}, fmt.Errorf("signal source %q is not available", cfg.SignalSource)
	}
	from, to, err := cfg.dateRange()
	if err != nil {
		return RunConfig{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return RunConfig{}, fmt.Errorf("to %s is before from %s", cfg.To, cfg.From)
	}
	if _, err := NewEngine(EngineConfig{
		InvestmentAmount: cfg.InvestmentAmount,
		EntryBandPct:     cfg.EntryBandPct,
		EndPolicy:        cfg.EndPolicy,
		Execution:        cfg.Execution,
	}); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func (c RunConfig) dateRange() (from, to time.Time, err error) {
	if c.From != "" {
		if from, err = time.Parse(dateLayout, c.From); err != nil {
			return from, to, fmt.Errorf("invalid from date: %w", err)
		}
	}
	if c.To != "" {
		if to, err = time.Parse(dateLayout, c.To); err != nil {
			return from, to, fmt.Errorf("invalid to date: %w", err)
		}
	}
	return from, to, nil
}

func newRun(cfg RunConfig) Run {
	return Run{
		ID:     uuid.NewString(),
		Symbol: cfg.Symbol,
		Status: RunStatusPending,
		Config: cfg,
	}
}

// StartRun records a pending run and simulates it in the background.
func (s *Simulator) StartRun(req RunRequest) (Run, error) {
	cfg, err := s.BuildRunConfig(req)
	if err != nil {
		return Run{}, err
	}
	run := newRun(cfg)
	if err := s.results.InsertRun(s.ctx(), run); err != nil {
		return Run{}, err
	}
	s.wg.Add(1)
	go s.runLoop(run.ID, cfg)
	return run, nil
}

// RunSync executes a run inline and returns the stored record.
func (s *Simulator) RunSync(ctx context.Context, req RunRequest) (Run, Result, error) {
	cfg, err := s.BuildRunConfig(req)
	if err != nil {
		return Run{}, Result{}, err
	}
	run := newRun(cfg)
	if err := s.results.InsertRun(ctx, run); err != nil {
		return Run{}, Result{}, err
	}
	res, runErr := s.execute(ctx, run.ID, cfg)
	stored, err := s.results.GetRun(context.WithoutCancel(ctx), run.ID)
	if err != nil {
		return run, res, errors.Join(runErr, err)
	}
	return stored, res, runErr
}

func (s *Simulator) runLoop(runID string, cfg RunConfig) {
	defer s.wg.Done()
	select {
	case s.sem <- struct{}{}:
	default:
		logger.Warnf("[backtest] run %s waiting for a free worker", runID)
		s.sem <- struct{}{}
	}
	defer func() { <-s.sem }()

	if _, err := s.execute(s.ctx(), runID, cfg); err != nil {
		logger.Warnf("[backtest] run %s failed: %v", runID, err)
	}
}

// execute runs the pipeline for a stored run and records the outcome.
func (s *Simulator) execute(ctx context.Context, runID string, cfg RunConfig) (Result, error) {
	started := time.Now()
	log := logger.With("run", runID, "symbol", cfg.Symbol)
	bg := context.WithoutCancel(ctx)
	if err := s.results.UpdateRunStatus(bg, runID, RunStatusRunning, "loading bars"); err != nil {
		log.Warn("store run status", "err", err)
	}

	res, notes, err := s.Simulate(ctx, &cfg)
	if cfgErr := s.results.UpdateRunConfig(bg, runID, cfg); cfgErr != nil {
		log.Warn("store run config", "err", cfgErr)
	}
	res.Symbol = cfg.Symbol

	status, message := RunStatusDone, ""
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, message = RunStatusCancelled, err.Error()
	default:
		status, message = RunStatusFailed, err.Error()
	}
	stats := RunStats{
		Summary:    Summarize(res),
		Cancelled:  res.Meta.Cancelled,
		Notes:      notes,
		FinishedAt: time.Now(),
	}
	if saveErr := s.results.SaveResult(bg, runID, status, res, stats, message); saveErr != nil {
		log.Error("store run result", "err", saveErr)
		err = errors.Join(err, saveErr)
	}
	if s.observer != nil {
		s.observer.ObserveRun(cfg.Symbol, status, time.Since(started), res)
	}
	log.Info("run finished", "status", status, "bars", res.Meta.BarsProcessed,
		"trades", stats.Trades, "pnl", stats.TotalPnL)
	return res, err
}

// Simulate runs the full pipeline without persistence: load bars, resolve
// thresholds, analyse, generate signals, run the engine. cfg gains the
// thresholds and exit rules that were used.
func (s *Simulator) Simulate(ctx context.Context, cfg *RunConfig) (Result, []string, error) {
	from, to, err := cfg.dateRange()
	if err != nil {
		return Result{}, nil, err
	}
	obs, err := s.bars.LoadBars(ctx, cfg.Symbol, from, to)
	if err != nil {
		return Result{}, nil, fmt.Errorf("load bars: %w", err)
	}
	if len(obs) == 0 {
		return Result{}, nil, fmt.Errorf("no bars stored for %s", cfg.Symbol)
	}
	rows, err := signals.Derive(obs)
	if err != nil {
		return Result{}, nil, err
	}
	th, notes, err := s.resolveThresholds(ctx, cfg.Symbol, rows)
	if err != nil {
		return Result{}, notes, err
	}
	cfg.Thresholds = &th

	analysis := signals.Analyze(rows, th, cfg.SDMultiplier)
	for _, name := range analysis.InsufficientSeries {
		notes = append(notes, fmt.Sprintf("%s: insufficient history, classified neutral", name))
	}
	if analysis.UnknownScenarios > 0 {
		logger.Warnf("[backtest] %s: %d rows resolved to an unknown scenario", cfg.Symbol, analysis.UnknownScenarios)
	}

	src, ok := s.sources[cfg.SignalSource]
	if !ok {
		return Result{}, notes, fmt.Errorf("signal source %q is not available", cfg.SignalSource)
	}
	sigs, err := src.Signals(ctx, cfg.Symbol, analysis.Rows)
	if err != nil {
		return Result{}, notes, fmt.Errorf("%s signals: %w", src.Name(), err)
	}

	chain, profile, err := s.exits.Chain(cfg.ExitProfile)
	if err != nil {
		return Result{}, notes, err
	}
	cfg.ExitProfile = profile

	eng, err := NewEngine(EngineConfig{
		InvestmentAmount: cfg.InvestmentAmount,
		EntryBandPct:     cfg.EntryBandPct,
		EndPolicy:        cfg.EndPolicy,
		Execution:        cfg.Execution,
		Compounding:      cfg.Compounding,
		Exits:            chain,
	})
	if err != nil {
		return Result{}, notes, err
	}
	res, err := eng.Run(ctx, BarsFromRows(analysis.Rows, sigs))
	res.Symbol = cfg.Symbol
	res.Meta.SignalSource = src.Name()
	res.Meta.ExitProfile = profile
	res.Meta.Thresholds = &th
	cfg.ExitRules = res.Meta.ExitRules
	return res, notes, err
}

func (s *Simulator) resolveThresholds(ctx context.Context, symbol string, rows []signals.Row) (signals.Thresholds, []string, error) {
	th, ok, err := s.thresholds.LoadThresholds(ctx, symbol)
	if err != nil {
		return th, nil, fmt.Errorf("load thresholds: %w", err)
	}
	if ok {
		return th, nil, nil
	}
	if !s.defaults.AutoCalibrate {
		return th, nil, fmt.Errorf("no thresholds stored for %s and auto calibration is off", symbol)
	}
	cal := signals.NewCalibrator(s.defaults.MinObservations).Calibrate(signals.InputFromRows(rows))
	if err := s.thresholds.SaveThresholds(ctx, symbol, cal.Thresholds); err != nil {
		return cal.Thresholds, cal.Notes, fmt.Errorf("save thresholds: %w", err)
	}
	logger.Infof("[backtest] calibrated %s from %d bars", symbol, len(rows))
	return cal.Thresholds, cal.Notes, nil
}

// Calibrate recomputes and stores thresholds for symbol from its bars.
func (s *Simulator) Calibrate(ctx context.Context, symbol string, from, to time.Time) (signals.Calibration, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	obs, err := s.bars.LoadBars(ctx, symbol, from, to)
	if err != nil {
		return signals.Calibration{}, fmt.Errorf("load bars: %w", err)
	}
	if len(obs) == 0 {
		return signals.Calibration{}, fmt.Errorf("no bars stored for %s", symbol)
	}
	rows, err := signals.Derive(obs)
	if err != nil {
		return signals.Calibration{}, err
	}
	cal := signals.NewCalibrator(s.defaults.MinObservations).Calibrate(signals.InputFromRows(rows))
	for _, n := range cal.Notes {
		logger.Warnf("[calibrate] %s: %s", symbol, n)
	}
	if err := s.thresholds.SaveThresholds(ctx, symbol, cal.Thresholds); err != nil {
		return cal, fmt.Errorf("save thresholds: %w", err)
	}
	return cal, nil
}

// Thresholds returns the stored thresholds for symbol.
func (s *Simulator) Thresholds(ctx context.Context, symbol string) (signals.Thresholds, bool, error) {
	return s.thresholds.LoadThresholds(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}
