package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fnotrader/internal/backtest"
	"fnotrader/internal/config"
	"fnotrader/internal/exitplan"
	"fnotrader/internal/logger"
	"fnotrader/internal/metrics"
	"fnotrader/internal/ml"
	"fnotrader/internal/signals"
	"fnotrader/internal/store/sqlite"
	"fnotrader/internal/strategy/exit"
	exitHandlers "fnotrader/internal/strategy/exit/handlers"
	backtesthttp "fnotrader/internal/transport/http/backtest"
)

type AppBuilder struct {
	cfg *config.Config

	thresholdStoreFn func(path string) (*sqlite.SqliteStore, error)
	profilesFn       func(path string, handlers *exit.HandlerRegistry) (*exitplan.Registry, error)
	mlSourceFn       func(config.MLConfig) (backtest.SignalSource, error)
	httpFn           func(config.AppConfig, *backtest.Simulator, *exitplan.Registry, *sqlite.SqliteStore, *metrics.Registry) (*backtesthttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithoutHTTP skips the HTTP server, used by the one-shot CLI commands.
func WithoutHTTP() AppBuilderOption {
	return func(b *AppBuilder) {
		b.httpFn = func(config.AppConfig, *backtest.Simulator, *exitplan.Registry, *sqlite.SqliteStore, *metrics.Registry) (*backtesthttp.Server, error) {
			return nil, nil
		}
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:              cfg,
		thresholdStoreFn: sqlite.NewSqliteStore,
		profilesFn:       exitplan.NewRegistry,
		mlSourceFn:       buildMLSource,
		httpFn:           buildHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	app = &App{cfg: cfg}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	if app.bars, err = backtest.NewBarStore(cfg.Data.Root); err != nil {
		return app, fmt.Errorf("open bar store: %w", err)
	}
	if app.results, err = backtest.NewResultStore(cfg.Data.ResultsPath); err != nil {
		return app, fmt.Errorf("open result store: %w", err)
	}
	if app.thresholds, err = b.thresholdStoreFn(cfg.Data.ThresholdsDB); err != nil {
		return app, fmt.Errorf("open threshold store: %w", err)
	}

	handlers := exitHandlers.NewRegistry()
	if path := strings.TrimSpace(cfg.Exits.ProfilesPath); path != "" {
		if app.profiles, err = b.profilesFn(path, handlers); err != nil {
			return app, err
		}
		snap := app.profiles.Snapshot()
		logger.Infof("✓ loaded %d exit profiles from %s: %v", len(snap.Profiles), path, snap.Names())
		app.profiles.OnChange(func(s exitplan.Snapshot) {
			logger.Infof("exit profiles reloaded (v%d): %v", s.Version, s.Names())
		})
	}
	inline := exitHandlers.SpecsFromConfig(cfg.Exits)
	resolver := &exitplan.Resolver{
		Profiles: app.profiles,
		Handlers: handlers,
		Inline:   inline,
		Default:  cfg.Exits.Profile,
	}
	if _, _, err = resolver.Chain(""); err != nil {
		return app, fmt.Errorf("exit rules: %w", err)
	}

	sources := []backtest.SignalSource{backtest.CounterSource{Config: signals.CounterConfig{
		DifferenceThresholdPct: cfg.Signal.DifferenceThresholdPct,
		MinOIQuantile:          cfg.Signal.MinOIQuantile,
	}}}
	if cfg.ML.Enabled {
		src, err := b.mlSourceFn(cfg.ML)
		if err != nil {
			return app, err
		}
		sources = append(sources, src)
	}

	app.metrics = metrics.NewRegistry()
	app.sim, err = backtest.NewSimulator(backtest.SimulatorConfig{
		Bars:          app.bars,
		Results:       app.results,
		Thresholds:    app.thresholds,
		Exits:         resolver,
		Sources:       sources,
		Defaults:      backtest.DefaultsFromConfig(*cfg),
		Observer:      app.metrics,
		MaxConcurrent: cfg.Simulation.MaxConcurrent,
	})
	if err != nil {
		return app, err
	}
	app.sim.SetContext(ctx)

	if app.server, err = b.httpFn(cfg.App, app.sim, app.profiles, app.thresholds, app.metrics); err != nil {
		return app, err
	}
	app.Summary = newStartupSummary(cfg, sources, inline)
	return app, nil
}

func buildMLSource(cfg config.MLConfig) (backtest.SignalSource, error) {
	src := ml.Source{
		ProbLong:      cfg.ProbLong,
		ProbShort:     cfg.ProbShort,
		MinTrain:      cfg.MinTrainSize,
		UpThreshold:   cfg.UpThreshold,
		DownThreshold: cfg.DownThreshold,
	}
	switch {
	case strings.TrimSpace(cfg.PredictionsPath) != "":
		preds, err := ml.LoadPredictions(cfg.PredictionsPath)
		if err != nil {
			return nil, err
		}
		logger.Infof("✓ ml predictions loaded: %d days from %s", preds.Len(), cfg.PredictionsPath)
		src.Predictor = preds
	case strings.TrimSpace(cfg.Endpoint) != "":
		p, err := ml.NewHTTPPredictor(cfg.Endpoint, time.Duration(cfg.TimeoutSeconds)*time.Second, cfg.RatePerSecond)
		if err != nil {
			return nil, err
		}
		logger.Infof("✓ ml predictor endpoint %s", cfg.Endpoint)
		src.Predictor = p
	default:
		logger.Infof("✓ ml walk-forward %s model, min train %d", cfg.Model, cfg.MinTrainSize)
		src.Trainer = ml.CentroidTrainer{}
	}
	return src, nil
}

func buildHTTPServer(cfg config.AppConfig, sim *backtest.Simulator, profiles *exitplan.Registry, thresholds *sqlite.SqliteStore, reg *metrics.Registry) (*backtesthttp.Server, error) {
	httpCfg := backtesthttp.Config{Addr: cfg.HTTPAddr, Simulator: sim, Catalog: thresholds, Metrics: reg.Handler()}
	if profiles != nil {
		httpCfg.Profiles = profiles
	}
	return backtesthttp.NewServer(httpCfg)
}
