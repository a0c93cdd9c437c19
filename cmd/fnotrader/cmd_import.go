package main

import (
	"fmt"
	"os"

	"fnotrader/internal/app"
	"fnotrader/internal/backtest"
	"fnotrader/internal/config"
	"fnotrader/internal/logger"

	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var symbol, path string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load daily bars for a symbol from a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()
			obs, err := backtest.ReadObservationsCSV(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			return withCLIApp(cmd.Context(), func(a *app.App, _ *config.Config) error {
				n, err := a.Simulator().Bars().UpsertBars(cmd.Context(), symbol, obs)
				if err != nil {
					return err
				}
				logger.Infof("✓ imported %d bars for %s from %s", n, symbol, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol the bars belong to")
	cmd.Flags().StringVarP(&path, "file", "f", "", "CSV file with date, close, vwap, open, delivery_qty, oi columns")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
