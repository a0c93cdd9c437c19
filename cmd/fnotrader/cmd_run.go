package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"fnotrader/internal/app"
	"fnotrader/internal/backtest"
	"fnotrader/internal/config"
	"fnotrader/internal/logger"

	"github.com/spf13/cobra"
)

type runFlags struct {
	symbols      []string
	from, to     string
	amount       float64
	band         float64
	endPolicy    string
	execution    string
	compounding  bool
	source       string
	exitProfile  string
	outDir       string
	continueOnEr bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backtest one or more symbols and print a summary",
		Long:  "Runs every symbol through the full pipeline in parallel. Without --symbol the configured data.symbols are used.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCLIApp(cmd.Context(), func(a *app.App, cfg *config.Config) error {
				return runBacktests(cmd, a, cfg, f)
			})
		},
	}
	fs := cmd.Flags()
	fs.StringSliceVarP(&f.symbols, "symbol", "s", nil, "symbol to backtest (repeatable)")
	fs.StringVar(&f.from, "from", "", "first date, YYYY-MM-DD")
	fs.StringVar(&f.to, "to", "", "last date, YYYY-MM-DD")
	fs.Float64Var(&f.amount, "amount", 0, "investment amount per entry")
	fs.Float64Var(&f.band, "band", -1, "VWAP entry band in percent")
	fs.StringVar(&f.endPolicy, "end-policy", "", "leave_open or force_close")
	fs.StringVar(&f.execution, "execution", "", "close or next_open")
	fs.BoolVar(&f.compounding, "compounding", false, "reinvest realised P&L (next_open only)")
	fs.StringVar(&f.source, "source", "", "signal source: counter or ml")
	fs.StringVar(&f.exitProfile, "exit-profile", "", "named exit profile")
	fs.StringVar(&f.outDir, "out", "", "write <SYMBOL>_ledger.csv and <SYMBOL>_trades.csv here")
	fs.BoolVar(&f.continueOnEr, "keep-going", false, "report failed symbols instead of stopping the batch")
	return cmd
}

type runOutcome struct {
	symbol  string
	run     backtest.Run
	summary backtest.Summary
	err     error
}

func runBacktests(cmd *cobra.Command, a *app.App, cfg *config.Config, f runFlags) error {
	symbols := f.symbols
	if len(symbols) == 0 {
		symbols = cfg.Data.NormalizedSymbols()
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols: pass --symbol or set data.symbols")
	}
	if f.outDir != "" {
		if err := os.MkdirAll(f.outDir, 0o755); err != nil {
			return err
		}
	}
	var mu sync.Mutex
	var outcomes []runOutcome
	sim := a.Simulator()
	err := backtest.Batch(cmd.Context(), symbols, cfg.Simulation.MaxConcurrent, func(ctx context.Context, symbol string) error {
		run, res, err := sim.RunSync(ctx, f.request(cmd, symbol))
		if err == nil && f.outDir != "" {
			err = writeOutputs(f.outDir, symbol, res)
		}
		mu.Lock()
		outcomes = append(outcomes, runOutcome{symbol: symbol, run: run, summary: backtest.Summarize(res), err: err})
		mu.Unlock()
		if err != nil {
			logger.Errorf("[run] %s: %v", symbol, err)
			if !f.continueOnEr {
				return fmt.Errorf("%s: %w", symbol, err)
			}
		}
		return nil
	})
	printOutcomes(cmd, outcomes)
	return err
}

func (f runFlags) request(cmd *cobra.Command, symbol string) backtest.RunRequest {
	req := backtest.RunRequest{
		Symbol:           symbol,
		From:             f.from,
		To:               f.to,
		InvestmentAmount: f.amount,
		EndPolicy:        f.endPolicy,
		Execution:        f.execution,
		SignalSource:     f.source,
		ExitProfile:      f.exitProfile,
	}
	if f.band >= 0 {
		band := f.band
		req.EntryBandPct = &band
	}
	if cmd.Flags().Changed("compounding") {
		c := f.compounding
		req.Compounding = &c
	}
	return req
}

func writeOutputs(dir, symbol string, res backtest.Result) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	write := func(name string, fn func(*os.File) error) error {
		file, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := fn(file); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	}
	if err := write(symbol+"_ledger.csv", func(w *os.File) error { return backtest.WriteLedgerCSV(w, res.Ledger) }); err != nil {
		return err
	}
	return write(symbol+"_trades.csv", func(w *os.File) error { return backtest.WriteTradesCSV(w, res.Trades) })
}

func printOutcomes(cmd *cobra.Command, outcomes []runOutcome) {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].symbol < outcomes[j].symbol })
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSTATUS\tBARS\tTRADES\tWIN%\tPNL\tUNREALIZED\tMAX DD\tRUN")
	for _, o := range outcomes {
		if o.err != nil {
			fmt.Fprintf(tw, "%s\tfailed\t-\t-\t-\t-\t-\t-\t%s\n", o.symbol, strings.TrimSpace(o.err.Error()))
			continue
		}
		s := o.summary
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f\t%.2f\t%.2f\t%.2f\t%s\n",
			o.symbol, o.run.Status, s.Bars, s.Trades, s.WinRate*100, s.TotalPnL, s.UnrealizedPnL, s.MaxDrawdown, o.run.ID)
	}
	_ = tw.Flush()
}
