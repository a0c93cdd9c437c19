package backtesthttp

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"fnotrader/internal/backtest"
	"fnotrader/internal/exitplan"
	"fnotrader/internal/metrics"
	"fnotrader/internal/signals"
	"fnotrader/internal/store/sqlite"
	"fnotrader/internal/strategy/exit"
	"fnotrader/internal/strategy/exit/handlers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type staticProfiles exitplan.Snapshot

func (p staticProfiles) Snapshot() exitplan.Snapshot { return exitplan.Snapshot(p) }

func newTestServer(t *testing.T) (*Server, *backtest.Simulator) {
	t.Helper()
	bars, err := backtest.NewBarStore(t.TempDir())
	require.NoError(t, err)
	results, err := backtest.NewResultStore(t.TempDir())
	require.NoError(t, err)
	th, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "thresholds.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = bars.Close()
		_ = results.Close()
		_ = th.Close()
	})
	sim, err := backtest.NewSimulator(backtest.SimulatorConfig{
		Bars:       bars,
		Results:    results,
		Thresholds: th,
		Exits: &exitplan.Resolver{
			Handlers: handlers.NewRegistry(),
			Inline:   []exit.RuleSpec{{Handler: handlers.HardStopID, Params: map[string]any{"pct": 5.0}}},
		},
		Sources: []backtest.SignalSource{backtest.CounterSource{Config: signals.DefaultCounterConfig()}},
		Defaults: backtest.Defaults{
			InvestmentAmount: 100000,
			EntryBandPct:     0.5,
			EndPolicy:        backtest.EndLeaveOpen,
			Execution:        backtest.ExecClose,
			SignalSource:     "counter",
			SDMultiplier:     0.2,
			MinObservations:  10,
		},
		Observer: metrics.NewRegistry(),
	})
	require.NoError(t, err)

	reg := metrics.NewRegistry()
	srv, err := NewServer(Config{
		Simulator: sim,
		Catalog:   th,
		Metrics:   reg.Handler(),
		Profiles: staticProfiles{Version: 3, Profiles: map[string]exitplan.Profile{
			"tight": {Name: "tight", Rules: []exit.RuleSpec{{Handler: handlers.HardStopID}}},
		}},
	})
	require.NoError(t, err)
	return srv, sim
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func barsBody(n int) map[string]any {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]map[string]any, n)
	for i := range out {
		x := float64(i)
		cls := math.Round((100+6*math.Sin(x/3)+0.3*x)*100) / 100
		out[i] = map[string]any{
			"date":         start.AddDate(0, 0, i).Format(dateLayout),
			"open":         cls - 0.5,
			"close":        cls,
			"vwap":         math.Round(cls*0.998*100) / 100,
			"delivery_qty": 1e5 * (1 + 0.6*math.Sin(x*1.7)),
			"oi_sum":       1e6 + 4e4*x*math.Sin(x/2),
		}
	}
	return map[string]any{"bars": out}
}

func TestBarsAndThresholdRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/bars/acc", barsBody(60))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 60, gjson.Get(rec.Body.String(), "upserted").Int())

	rec = do(t, srv, http.MethodGet, "/api/bars/ACC/manifest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 60, gjson.Get(rec.Body.String(), "manifest.rows").Int())

	rec = do(t, srv, http.MethodGet, "/api/thresholds/ACC", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/thresholds/ACC/calibrate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, gjson.Get(rec.Body.String(), "thresholds").IsObject())

	rec = do(t, srv, http.MethodGet, "/api/thresholds/acc", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACC", gjson.Get(rec.Body.String(), "symbol").String())

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/thresholds/ACC/calibrate", nil).Code)
	rec = do(t, srv, http.MethodGet, "/api/thresholds/acc/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gjson.Get(rec.Body.String(), "history").Array(), 2)

	rec = do(t, srv, http.MethodGet, "/api/thresholds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACC", gjson.Get(rec.Body.String(), "symbols.0").String())

	rec = do(t, srv, http.MethodPost, "/api/thresholds/ACC/calibrate?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/bars/ACC", map[string]any{"bars": []map[string]any{{"date": "01/02/2024"}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunRoutes(t *testing.T) {
	srv, sim := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/bars/ACC", barsBody(60)).Code)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/thresholds/ACC/calibrate", nil).Code)

	rec := do(t, srv, http.MethodPost, "/api/backtest/runs", map[string]any{"investment_amount": 1000})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "symbol is required")

	rec = do(t, srv, http.MethodPost, "/api/backtest/runs", map[string]any{"symbol": "ACC", "end_policy": "force_close"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id := gjson.Get(rec.Body.String(), "run.id").String()
	require.NotEmpty(t, id)
	sim.Wait()

	rec = do(t, srv, http.MethodGet, "/api/backtest/runs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, backtest.RunStatusDone, gjson.Get(rec.Body.String(), "run.status").String())
	assert.Equal(t, "force_close", gjson.Get(rec.Body.String(), "run.config.end_policy").String())
	assert.Equal(t, "null", gjson.Get(rec.Body.String(), "open_position").Raw)

	rec = do(t, srv, http.MethodGet, "/api/backtest/runs/"+id+"/ledger?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gjson.Get(rec.Body.String(), "ledger").Array(), 10)

	rec = do(t, srv, http.MethodGet, "/api/backtest/runs/"+id+"/trades", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/backtest/runs?symbol=ACC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gjson.Get(rec.Body.String(), "runs").Array(), 1)

	for _, path := range []string{"/api/backtest/runs/nope", "/api/backtest/runs/nope/ledger", "/api/backtest/runs/nope/trades"} {
		assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, path, nil).Code, path)
	}
}

func TestProfilesHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/exit-profiles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, gjson.Get(rec.Body.String(), "version").Int())
	assert.Equal(t, handlers.HardStopID, gjson.Get(rec.Body.String(), "profiles.tight.rules.0.handler").String())

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", nil).Code)

	rec = do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
