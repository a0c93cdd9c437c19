package main

import (
	"encoding/json"
	"fmt"
	"time"

	"fnotrader/internal/app"
	"fnotrader/internal/config"

	"github.com/spf13/cobra"
)

func newCalibrateCmd() *cobra.Command {
	var symbols []string
	var from, to string
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Recompute and store trigger thresholds from stored bars",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fromT, err := parseDateFlag(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toT, err := parseDateFlag(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			return withCLIApp(cmd.Context(), func(a *app.App, cfg *config.Config) error {
				if len(symbols) == 0 {
					symbols = cfg.Data.NormalizedSymbols()
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				for _, symbol := range symbols {
					cal, err := a.Simulator().Calibrate(cmd.Context(), symbol, fromT, toT)
					if err != nil {
						return fmt.Errorf("%s: %w", symbol, err)
					}
					if err := enc.Encode(map[string]any{"symbol": symbol, "calibration": cal}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&symbols, "symbol", "s", nil, "symbol to calibrate (repeatable, default data.symbols)")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	return cmd
}

// parseDateFlag returns the zero time for an empty value.
func parseDateFlag(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", v)
}
