package metrics

import (
	"net/http"
	"strings"
	"time"

	"fnotrader/internal/backtest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fnotrader"

// Registry holds the backtest metrics on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Runs          *prometheus.CounterVec
	BarsProcessed *prometheus.CounterVec
	Trades        *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	LastRunPnL    *prometheus.GaugeVec
}

func NewRegistry() *Registry {
	r := &Registry{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_runs_total",
				Help:      "Finished backtest runs by final status",
			},
			[]string{"status"},
		),
		BarsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_bars_processed_total",
				Help:      "Bars stepped through the position state machine",
			},
			[]string{"symbol"},
		),
		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_trades_total",
				Help:      "Closed trades by direction and exit reason",
			},
			[]string{"direction", "exit_reason"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backtest_run_duration_seconds",
				Help:      "Wall time of a backtest run",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
		LastRunPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backtest_last_run_pnl",
				Help:      "Final cumulative P&L of the latest run per symbol",
			},
			[]string{"symbol"},
		),
	}
	r.reg = prometheus.NewRegistry()
	r.reg.MustRegister(
		r.Runs, r.BarsProcessed, r.Trades, r.RunDuration, r.LastRunPnL,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveRun records a finished run.
func (r *Registry) ObserveRun(symbol, status string, elapsed time.Duration, res backtest.Result) {
	r.Runs.WithLabelValues(status).Inc()
	r.RunDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	if res.Meta.BarsProcessed > 0 {
		r.BarsProcessed.WithLabelValues(symbol).Add(float64(res.Meta.BarsProcessed))
	}
	for _, tr := range res.Trades {
		r.Trades.WithLabelValues(strings.ToLower(tr.Direction), tr.ExitReason).Inc()
	}
	if status == backtest.RunStatusDone {
		r.LastRunPnL.WithLabelValues(symbol).Set(res.FinalPnL())
	}
}

// Handler serves the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

var _ backtest.Observer = (*Registry)(nil)
