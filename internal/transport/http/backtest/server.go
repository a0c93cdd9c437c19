package backtesthttp

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fnotrader/internal/backtest"
	"fnotrader/internal/exitplan"
	"fnotrader/internal/logger"
	"fnotrader/internal/signals"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// ProfileSource lists the loaded exit profiles.
type ProfileSource interface {
	Snapshot() exitplan.Snapshot
}

// ThresholdCatalog lists stored symbols and their calibration history.
type ThresholdCatalog interface {
	ListSymbols(ctx context.Context) ([]string, error)
	History(ctx context.Context, symbol string, limit int) ([]signals.Thresholds, error)
}

// Server exposes runs, thresholds, bars and exit profiles over HTTP.
type Server struct {
	addr     string
	sim      *backtest.Simulator
	profiles ProfileSource
	catalog  ThresholdCatalog
	router   *gin.Engine
}

type Config struct {
	Addr      string
	Simulator *backtest.Simulator
	Profiles  ProfileSource
	Catalog   ThresholdCatalog
	Metrics   http.Handler
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Simulator == nil {
		return nil, errors.New("simulator is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		addr:     cfg.Addr,
		sim:      cfg.Simulator,
		profiles: cfg.Profiles,
		catalog:  cfg.Catalog,
		router:   router,
	}
	s.registerRoutes(cfg.Metrics)
	return s, nil
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string { return s.addr }

func (s *Server) registerRoutes(metrics http.Handler) {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		s.router.GET("/metrics", gin.WrapH(metrics))
	}
	api := s.router.Group("/api")
	runs := api.Group("/backtest/runs")
	runs.POST("", s.handleRunStart)
	runs.GET("", s.handleRunList)
	runs.GET("/:id", s.handleRunDetail)
	runs.GET("/:id/ledger", s.handleRunLedger)
	runs.GET("/:id/trades", s.handleRunTrades)

	if s.catalog != nil {
		api.GET("/thresholds", s.handleThresholdSymbols)
		api.GET("/thresholds/:symbol/history", s.handleThresholdHistory)
	}
	api.GET("/thresholds/:symbol", s.handleThresholds)
	api.POST("/thresholds/:symbol/calibrate", s.handleCalibrate)
	api.GET("/bars/:symbol/manifest", s.handleManifest)
	api.POST("/bars/:symbol", s.handleBarsUpsert)
	api.GET("/exit-profiles", s.handleExitProfiles)
}

func (s *Server) handleRunStart(c *gin.Context) {
	var req backtest.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := s.sim.StartRun(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.sim.Results().ListRuns(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	ctx := c.Request.Context()
	run, err := s.sim.Results().GetRun(ctx, c.Param("id"))
	if err != nil {
		s.runError(c, err)
		return
	}
	open, err := s.sim.Results().OpenPosition(ctx, run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "open_position": open})
}

func (s *Server) handleRunLedger(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := s.sim.Results().GetRun(ctx, c.Param("id")); err != nil {
		s.runError(c, err)
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	rows, err := s.sim.Results().ListLedger(ctx, c.Param("id"), offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ledger": rows})
}

func (s *Server) handleRunTrades(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := s.sim.Results().GetRun(ctx, c.Param("id")); err != nil {
		s.runError(c, err)
		return
	}
	trades, err := s.sim.Results().ListTrades(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) runError(c *gin.Context, err error) {
	if errors.Is(err, backtest.ErrUnknownRun) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) handleThresholds(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	th, ok, err := s.sim.Thresholds(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no thresholds stored for " + symbol})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "thresholds": th})
}

func (s *Server) handleThresholdSymbols(c *gin.Context) {
	symbols, err := s.catalog.ListSymbols(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

func (s *Server) handleThresholdHistory(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	hist, err := s.catalog.History(c.Request.Context(), symbol, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "history": hist})
}

func (s *Server) handleCalibrate(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	from, err := parseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from: " + err.Error()})
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to: " + err.Error()})
		return
	}
	cal, err := s.sim.Calibrate(c.Request.Context(), symbol, from, to)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "thresholds": cal.Thresholds, "notes": cal.Notes})
}

func (s *Server) handleManifest(c *gin.Context) {
	info, err := s.sim.Bars().Manifest(c.Request.Context(), normalizeSymbol(c.Param("symbol")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manifest": info})
}

// barPayload is one daily observation; absent numbers are stored as missing.
type barPayload struct {
	Date        string   `json:"date" binding:"required"`
	Open        *float64 `json:"open"`
	Close       *float64 `json:"close"`
	VWAP        *float64 `json:"vwap"`
	DeliveryQty *float64 `json:"delivery_qty"`
	OISum       *float64 `json:"oi_sum"`
}

func (s *Server) handleBarsUpsert(c *gin.Context) {
	var req struct {
		Bars []barPayload `json:"bars" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	obs := make([]signals.Observation, 0, len(req.Bars))
	for _, b := range req.Bars {
		date, err := time.Parse(dateLayout, strings.TrimSpace(b.Date))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date " + b.Date})
			return
		}
		obs = append(obs, signals.Observation{
			Date:        date,
			Open:        orNaN(b.Open),
			Close:       orNaN(b.Close),
			VWAP:        orNaN(b.VWAP),
			DeliveryQty: orNaN(b.DeliveryQty),
			OISum:       orNaN(b.OISum),
		})
	}
	symbol := normalizeSymbol(c.Param("symbol"))
	n, err := s.sim.Bars().UpsertBars(c.Request.Context(), symbol, obs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "upserted": n})
}

func (s *Server) handleExitProfiles(c *gin.Context) {
	if s.profiles == nil {
		c.JSON(http.StatusOK, gin.H{"profiles": gin.H{}})
		return
	}
	snap := s.profiles.Snapshot()
	c.JSON(http.StatusOK, gin.H{"version": snap.Version, "loaded_at": snap.LoadedAt, "profiles": snap.Profiles})
}

func normalizeSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, raw)
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.RequestURI(), c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
