package app

import (
	"context"
	"fmt"

	"fnotrader/internal/backtest"
	"fnotrader/internal/config"
	"fnotrader/internal/exitplan"
	"fnotrader/internal/logger"
	"fnotrader/internal/metrics"
	"fnotrader/internal/store/sqlite"
	backtesthttp "fnotrader/internal/transport/http/backtest"

	"golang.org/x/sync/errgroup"
)

// App owns the stores, the simulator and the HTTP server.
type App struct {
	cfg        *config.Config
	bars       *backtest.BarStore
	results    *backtest.ResultStore
	thresholds *sqlite.SqliteStore
	profiles   *exitplan.Registry
	metrics    *metrics.Registry
	sim        *backtest.Simulator
	server     *backtesthttp.Server
	Summary    *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetFormat(cfg.App.LogFormat)
	return buildAppWithWire(context.Background(), cfg)
}

// Run serves HTTP until ctx is cancelled, then waits for in-flight runs.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.sim == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	a.sim.SetContext(ctx)
	group, ctx := errgroup.WithContext(ctx)
	if a.server != nil {
		group.Go(func() error {
			logger.Infof("HTTP API listening on %s", a.server.Addr())
			if err := a.server.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-ctx.Done()
		a.sim.Wait()
		return nil
	})
	return group.Wait()
}

// Simulator exposes the simulator for the CLI commands.
func (a *App) Simulator() *backtest.Simulator {
	if a == nil {
		return nil
	}
	return a.sim
}

// Close releases the stores.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.sim != nil {
		a.sim.Wait()
	}
	if a.results != nil {
		_ = a.results.Close()
	}
	if a.bars != nil {
		_ = a.bars.Close()
	}
	if a.thresholds != nil {
		_ = a.thresholds.Close()
	}
}
