//go:build wireinject

package app

import (
	"context"

	"fnotrader/internal/config"

	"github.com/google/wire"
)

func buildAppWithWire(ctx context.Context, cfg *config.Config) (*App, error) {
	wire.Build(provideAppBuilder, provideAppFromBuilder)
	return nil, nil
}

func buildCLIAppWithWire(ctx context.Context, cfg *config.Config) (*App, error) {
	wire.Build(provideCLIAppBuilder, provideAppFromBuilder)
	return nil, nil
}
