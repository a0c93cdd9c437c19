package backtest

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fnotrader/internal/signals"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// Manifest summarises one symbol's bar file.
type Manifest struct {
	Symbol     string `json:"symbol"`
	MinDate    string `json:"min_date"`
	MaxDate    string `json:"max_date"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
	Path       string `json:"path"`
}

// BarStore keeps daily observations in one sqlite file per symbol.
type BarStore struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewBarStore(root string) (*BarStore, error) {
	if root == "" {
		return nil, fmt.Errorf("bar store root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &BarStore{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (s *BarStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func (s *BarStore) db(symbol string) (*sql.DB, string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, "", fmt.Errorf("symbol is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.dbPath(symbol)
	if db, ok := s.dbs[symbol]; ok && db != nil {
		return db, path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureBarSchema(db, symbol); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	s.dbs[symbol] = db
	return db, path, nil
}

func (s *BarStore) dbPath(symbol string) string {
	return filepath.Join(s.root, symbol, "daily.db")
}

// UpsertBars writes observations; an existing date is overwritten.
func (s *BarStore) UpsertBars(ctx context.Context, symbol string, obs []signals.Observation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	db, _, err := s.db(symbol)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (date, open, close, vwap, delivery_qty, oi_sum)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
		    open=excluded.open,
		    close=excluded.close,
		    vwap=excluded.vwap,
		    delivery_qty=excluded.delivery_qty,
		    oi_sum=excluded.oi_sum`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, o := range obs {
		if o.Date.IsZero() {
			_ = tx.Rollback()
			return 0, fmt.Errorf("observation %d has no date", count)
		}
		if _, err := stmt.ExecContext(ctx, o.Date.Format(dateLayout), nullIfNaN(o.Open), nullIfNaN(o.Close),
			nullIfNaN(o.VWAP), nullIfNaN(o.DeliveryQty), nullIfNaN(o.OISum)); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if err := s.refreshManifest(ctx, db); err != nil {
		return count, err
	}
	return count, nil
}

// LoadBars returns observations in ascending date order. Zero from/to
// leave that side open. Stored NULLs come back as NaN.
func (s *BarStore) LoadBars(ctx context.Context, symbol string, from, to time.Time) ([]signals.Observation, error) {
	db, _, err := s.db(symbol)
	if err != nil {
		return nil, err
	}
	lo, hi := "0000-01-01", "9999-12-31"
	if !from.IsZero() {
		lo = from.Format(dateLayout)
	}
	if !to.IsZero() {
		hi = to.Format(dateLayout)
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	rows, err := db.QueryContext(ctx, `
		SELECT date, open, close, vwap, delivery_qty, oi_sum
		FROM bars WHERE date BETWEEN ? AND ?
		ORDER BY date ASC`, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []signals.Observation
	for rows.Next() {
		var date string
		var open, cls, vwap, delivery, oi sql.NullFloat64
		if err := rows.Scan(&date, &open, &cls, &vwap, &delivery, &oi); err != nil {
			return nil, err
		}
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("bad stored date %q: %w", date, err)
		}
		out = append(out, signals.Observation{
			Date:        d,
			Open:        floatOrNaN(open),
			Close:       floatOrNaN(cls),
			VWAP:        floatOrNaN(vwap),
			DeliveryQty: floatOrNaN(delivery),
			OISum:       floatOrNaN(oi),
		})
	}
	return out, rows.Err()
}

func (s *BarStore) Manifest(ctx context.Context, symbol string) (Manifest, error) {
	db, path, err := s.db(symbol)
	if err != nil {
		return Manifest{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT symbol, COALESCE(min_date,''), COALESCE(max_date,''), rows, COALESCE(last_sync_at,0) FROM manifest WHERE id=1`)
	var m Manifest
	if err := row.Scan(&m.Symbol, &m.MinDate, &m.MaxDate, &m.Rows, &m.LastSyncAt); err != nil {
		return Manifest{}, err
	}
	m.Path = path
	return m, nil
}

func (s *BarStore) refreshManifest(ctx context.Context, db *sql.DB) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		UPDATE manifest
		SET min_date = (SELECT MIN(date) FROM bars),
		    max_date = (SELECT MAX(date) FROM bars),
		    rows = (SELECT COUNT(1) FROM bars),
		    last_sync_at = ?
		WHERE id = 1`, now)
	return err
}

func ensureBarSchema(db *sql.DB, symbol string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			date         TEXT PRIMARY KEY,
			open         REAL,
			close        REAL,
			vwap         REAL,
			delivery_qty REAL,
			oi_sum       REAL,
			inserted_at  INTEGER NOT NULL DEFAULT (strftime('%s','now') * 1000)
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			id INTEGER PRIMARY KEY CHECK (id=1),
			symbol TEXT NOT NULL,
			min_date TEXT,
			max_date TEXT,
			rows INTEGER DEFAULT 0,
			last_sync_at INTEGER
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT INTO manifest (id, symbol) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET symbol=excluded.symbol;`, symbol)
	return err
}

func nullIfNaN(v float64) interface{} {
	if missing(v) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
