package main

import (
	"fmt"

	"fnotrader/internal/app"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logFile, err := loadConfig()
			if err != nil {
				return err
			}
			if logFile != nil {
				defer logFile.Close()
			}
			a, err := app.NewApp(cfg)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			defer a.Close()
			return a.Run(cmd.Context())
		},
	}
}
