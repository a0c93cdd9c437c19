package app

import (
	"context"
	"fmt"

	"fnotrader/internal/config"
	"fnotrader/internal/logger"
)

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

func provideAppFromBuilder(b appBuilderDeps, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}

func provideAppBuilder(cfg *config.Config) appBuilderDeps {
	return NewAppBuilder(cfg)
}

func provideCLIAppBuilder(cfg *config.Config) appBuilderDeps {
	return NewAppBuilder(cfg, WithoutHTTP())
}

// NewCLIApp builds the application without the HTTP server.
func NewCLIApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetFormat(cfg.App.LogFormat)
	return buildCLIAppWithWire(ctx, cfg)
}
