package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"fnotrader/internal/app"
	"fnotrader/internal/config"
	"fnotrader/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const version = "v0.4.0"

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "fnotrader",
		Short:         "F&O daily signal classifier and position backtester",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addConfigFlag(rootCmd.PersistentFlags())
	rootCmd.AddCommand(newServeCmd(), newRunCmd(), newCalibrateCmd(), newImportCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addConfigFlag(fs *pflag.FlagSet) {
	fs.StringVarP(&configPath, "config", "c", "", "config file (default $"+config.EnvConfigPath+" or "+config.DefaultConfigPath+")")
}

// loadConfig reads the config and points the logger at the configured file.
func loadConfig() (*config.Config, io.Closer, error) {
	path := config.ResolvePath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger.Infof("✓ config loaded (env=%s, path=%s)", cfg.App.Env, path)
	return cfg, logFile, nil
}

func setupLogOutput(path string) (io.Closer, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

// withCLIApp builds the app without HTTP and releases it after fn.
func withCLIApp(ctx context.Context, fn func(*app.App, *config.Config) error) error {
	cfg, logFile, err := loadConfig()
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}
	a, err := app.NewCLIApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return fn(a, cfg)
}
