// Package logger wraps a process-wide slog logger with printf helpers.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

type sink struct {
	w      io.Writer
	asJSON bool
}

var (
	level   slog.LevelVar
	mu      sync.Mutex
	current = sink{w: os.Stdout}
	active  atomic.Pointer[slog.Logger]
)

func init() {
	rebuild(current)
}

// rebuild swaps the active logger; callers hold mu except during init.
func rebuild(s sink) {
	if s.w == nil {
		s.w = os.Stdout
	}
	current = s
	opts := &slog.HandlerOptions{Level: &level}
	var h slog.Handler = slog.NewTextHandler(s.w, opts)
	if s.asJSON {
		h = slog.NewJSONHandler(s.w, opts)
	}
	active.Store(slog.New(h))
}

func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	rebuild(sink{w: w, asJSON: current.asJSON})
}

// SetFormat switches between "text" (default) and "json" records.
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()
	rebuild(sink{w: current.w, asJSON: strings.EqualFold(strings.TrimSpace(format), "json")})
}

// SetLevel accepts debug, info, warn or error; anything else means info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// With returns a logger carrying the given attributes, e.g. run_id or symbol.
func With(args ...any) *slog.Logger {
	return active.Load().With(args...)
}

func Debugf(format string, v ...any) { logf(slog.LevelDebug, format, v...) }
func Infof(format string, v ...any)  { logf(slog.LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { logf(slog.LevelWarn, format, v...) }
func Errorf(format string, v ...any) { logf(slog.LevelError, format, v...) }

func logf(lvl slog.Level, format string, v ...any) {
	l := active.Load()
	if !l.Enabled(context.Background(), lvl) {
		return
	}
	l.Log(context.Background(), lvl, fmt.Sprintf(format, v...))
}
