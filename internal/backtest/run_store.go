package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fnotrader/internal/types"

	_ "modernc.org/sqlite"
)

// ResultStore manages the backtest_runs, backtest_ledger and backtest_trades tables.
type ResultStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewResultStore(root string) (*ResultStore, error) {
	if root == "" {
		return nil, fmt.Errorf("result store root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "runs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureResultSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultStore{db: db, path: path}, nil
}

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureResultSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			status TEXT NOT NULL,
			total_pnl REAL NOT NULL DEFAULT 0,
			trades INTEGER NOT NULL DEFAULT 0,
			config_json TEXT NOT NULL,
			stats_json TEXT,
			open_json TEXT,
			message TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_ledger (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			date TEXT NOT NULL,
			open REAL,
			close REAL NOT NULL,
			vwap REAL,
			ema REAL,
			oi_sum REAL,
			longs_till_now REAL,
			shorts_till_now REAL,
			signal TEXT NOT NULL,
			exec_price REAL,
			quantity_traded INTEGER NOT NULL,
			position INTEGER NOT NULL,
			entry_price REAL,
			daily_pnl REAL NOT NULL,
			cumulative_pnl REAL NOT NULL,
			event TEXT,
			armed_vwap INTEGER NOT NULL DEFAULT 0,
			armed_ema INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			entry_date TEXT NOT NULL,
			exit_date TEXT NOT NULL,
			holding_days INTEGER NOT NULL,
			direction TEXT NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			qty INTEGER NOT NULL,
			pnl REAL NOT NULL,
			return_pct REAL NOT NULL,
			exit_reason TEXT,
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON backtest_trades(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON backtest_runs(symbol, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun writes a new run record.
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	cfgJSON, err := run.MarshalConfig()
	if err != nil {
		return err
	}
	statsJSON, err := run.MarshalStats()
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(id, symbol, status, total_pnl, trades, config_json, stats_json, message,
			 created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.Status, run.TotalPnL, run.Trades, string(cfgJSON), bytesOrNil(statsJSON),
		run.Message, now, now, nullableTime(run.CompletedAt))
	return err
}

func bytesOrNil(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func terminal(status string) bool {
	return status == RunStatusDone || status == RunStatusFailed || status == RunStatusCancelled
}

// UpdateRunStatus changes only status and message.
func (s *ResultStore) UpdateRunStatus(ctx context.Context, id, status, message string) error {
	now := time.Now().UnixMilli()
	var completed interface{}
	if terminal(status) {
		completed = now
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE backtest_runs
		SET status=?, message=?, updated_at=?, completed_at=CASE WHEN ? IS NULL THEN completed_at ELSE ? END
		WHERE id=?`, status, message, now, completed, completed, id)
	return err
}

// UpdateRunConfig replaces the stored config, e.g. once thresholds are known.
func (s *ResultStore) UpdateRunConfig(ctx context.Context, id string, cfg RunConfig) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE backtest_runs SET config_json=?, updated_at=? WHERE id=?`,
		string(cfgJSON), time.Now().UnixMilli(), id)
	return err
}

// SaveResult stores ledger, trades and summary of a run in one transaction.
func (s *ResultStore) SaveResult(ctx context.Context, id, status string, res Result, stats RunStats, message string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	var openJSON interface{}
	if res.Open != nil {
		raw, err := json.Marshal(res.Open)
		if err != nil {
			return err
		}
		openJSON = string(raw)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	rollback := func(err error) error {
		_ = tx.Rollback()
		return err
	}
	for _, q := range []string{`DELETE FROM backtest_ledger WHERE run_id=?`, `DELETE FROM backtest_trades WHERE run_id=?`} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return rollback(err)
		}
	}
	ledgerStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_ledger
			(run_id, seq, date, open, close, vwap, ema, oi_sum, longs_till_now, shorts_till_now,
			 signal, exec_price, quantity_traded, position, entry_price, daily_pnl, cumulative_pnl,
			 event, armed_vwap, armed_ema)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return rollback(err)
	}
	defer ledgerStmt.Close()
	for i, r := range res.Ledger {
		if _, err := ledgerStmt.ExecContext(ctx, id, i, r.Date.Format(dateLayout), nullIfZero(r.Open), r.Close,
			nullIfZero(r.VWAP), nullIfZero(r.EMA), r.OISum, r.LongsTillNow, r.ShortsTillNow,
			r.Signal.String(), nullIfZero(r.ExecPrice), r.QuantityTraded, r.Position, nullIfZero(r.EntryPrice),
			r.DailyPnL, r.CumulativePnL, r.Event, boolInt(r.ArmedVWAP), boolInt(r.ArmedEMA)); err != nil {
			return rollback(err)
		}
	}
	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades
			(run_id, entry_date, exit_date, holding_days, direction, entry_price, exit_price,
			 qty, pnl, return_pct, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return rollback(err)
	}
	defer tradeStmt.Close()
	for _, t := range res.Trades {
		if _, err := tradeStmt.ExecContext(ctx, id, t.EntryDate.Format(dateLayout), t.ExitDate.Format(dateLayout),
			t.HoldingDays, t.Direction, t.EntryPrice, t.ExitPrice, t.Qty, t.PnL, t.ReturnPct, t.ExitReason); err != nil {
			return rollback(err)
		}
	}
	now := time.Now().UnixMilli()
	var completed interface{}
	if terminal(status) {
		completed = now
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE backtest_runs
		SET status=?, total_pnl=?, trades=?, stats_json=?, open_json=?, message=?, updated_at=?,
		    completed_at=CASE WHEN ? IS NULL THEN completed_at ELSE ? END
		WHERE id=?`,
		status, stats.TotalPnL, stats.Trades, string(statsJSON), openJSON, message, now,
		completed, completed, id); err != nil {
		return rollback(err)
	}
	return tx.Commit()
}

func (s *ResultStore) ListRuns(ctx context.Context, symbol string, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `
		SELECT id, symbol, status, total_pnl, trades, config_json, stats_json, message,
		       created_at, updated_at, completed_at
		FROM backtest_runs`
	args := []interface{}{}
	if symbol != "" {
		query += ` WHERE symbol=?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, run)
	}
	return list, rows.Err()
}

func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, status, total_pnl, trades, config_json, stats_json, message,
		       created_at, updated_at, completed_at
		FROM backtest_runs WHERE id=?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	return run, err
}

// OpenPosition returns the leg left open at the end of a run, if any.
func (s *ResultStore) OpenPosition(ctx context.Context, id string) (*OpenPosition, error) {
	var raw sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT open_json FROM backtest_runs WHERE id=?`, id).Scan(&raw); err != nil {
		return nil, err
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var op OpenPosition
	if err := json.Unmarshal([]byte(raw.String), &op); err != nil {
		return nil, err
	}
	return &op, nil
}

func (s *ResultStore) ListLedger(ctx context.Context, runID string, offset, limit int) ([]LedgerRow, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, close, vwap, ema, oi_sum, longs_till_now, shorts_till_now, signal,
		       exec_price, quantity_traded, position, entry_price, daily_pnl, cumulative_pnl,
		       event, armed_vwap, armed_ema
		FROM backtest_ledger
		WHERE run_id=?
		ORDER BY seq ASC
		LIMIT ? OFFSET ?`, runID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerRow
	for rows.Next() {
		var r LedgerRow
		var date, signal string
		var open, vwap, ema, execPrice, entryPx sql.NullFloat64
		var event sql.NullString
		var armedVWAP, armedEMA int
		if err := rows.Scan(&date, &open, &r.Close, &vwap, &ema, &r.OISum, &r.LongsTillNow, &r.ShortsTillNow,
			&signal, &execPrice, &r.QuantityTraded, &r.Position, &entryPx, &r.DailyPnL, &r.CumulativePnL,
			&event, &armedVWAP, &armedEMA); err != nil {
			return nil, err
		}
		if r.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, err
		}
		r.Signal, _ = types.ParseSignal(signal)
		r.Open, r.VWAP, r.EMA = open.Float64, vwap.Float64, ema.Float64
		r.ExecPrice, r.EntryPrice = execPrice.Float64, entryPx.Float64
		r.Event = event.String
		r.ArmedVWAP, r.ArmedEMA = armedVWAP != 0, armedEMA != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ResultStore) ListTrades(ctx context.Context, runID string) ([]Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_date, exit_date, holding_days, direction, entry_price, exit_price,
		       qty, pnl, return_pct, exit_reason
		FROM backtest_trades
		WHERE run_id=?
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Trade
	for rows.Next() {
		var t Trade
		var entry, exitDate string
		var reason sql.NullString
		if err := rows.Scan(&entry, &exitDate, &t.HoldingDays, &t.Direction, &t.EntryPrice, &t.ExitPrice,
			&t.Qty, &t.PnL, &t.ReturnPct, &reason); err != nil {
			return nil, err
		}
		if t.EntryDate, err = time.Parse(dateLayout, entry); err != nil {
			return nil, err
		}
		if t.ExitDate, err = time.Parse(dateLayout, exitDate); err != nil {
			return nil, err
		}
		t.ExitReason = reason.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullIfZero(v float64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var cfgStr string
	var statsStr, message sql.NullString
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64
	if err := row.Scan(&run.ID, &run.Symbol, &run.Status, &run.TotalPnL, &run.Trades,
		&cfgStr, &statsStr, &message, &createdAt, &updatedAt, &completedAt); err != nil {
		return Run{}, err
	}
	run.Message = message.String
	run.CreatedAt = timeFromMillis(createdAt)
	run.UpdatedAt = timeFromMillis(updatedAt)
	if completedAt.Valid {
		run.CompletedAt = timeFromMillis(completedAt.Int64)
	}
	if err := json.Unmarshal([]byte(cfgStr), &run.Config); err != nil {
		return Run{}, err
	}
	if statsStr.Valid && statsStr.String != "" {
		if err := json.Unmarshal([]byte(statsStr.String), &run.Stats); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}

func timeFromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond))
}
