package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fnotrader/internal/signals"
	"fnotrader/internal/store"
	"fnotrader/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type SqliteStore struct {
	db *gorm.DB
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}

	return newSqliteStore(db)
}

func newSqliteStore(db *gorm.DB) (*SqliteStore, error) {
	models := []interface{}{
		&model.ThresholdModel{},
		&model.CalibrationLogModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormUnitOfWork{tx: tx}, nil
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveThresholds upserts the symbol's thresholds and appends a history entry.
func (s *SqliteStore) SaveThresholds(ctx context.Context, symbol string, th signals.Thresholds) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	row, err := toModel(symbol, th, time.Now())
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(th)
	if err != nil {
		return err
	}
	uow, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := uow.Thresholds().Save(ctx, row); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err := uow.Logs().InsertCalibration(ctx, &model.CalibrationLogModel{
		Symbol:     symbol,
		Thresholds: datatypes.JSON(snapshot),
		Timestamp:  row.UpdatedAtUnix,
	}); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

// LoadThresholds reports ok=false when nothing is stored for symbol.
func (s *SqliteStore) LoadThresholds(ctx context.Context, symbol string) (signals.Thresholds, bool, error) {
	row, err := NewThresholdRepo(s.db).FindBySymbol(ctx, normalizeSymbol(symbol))
	if err != nil || row == nil {
		return signals.Thresholds{}, false, err
	}
	th, err := fromModel(*row)
	if err != nil {
		return signals.Thresholds{}, false, err
	}
	return th, true, nil
}

func (s *SqliteStore) ListSymbols(ctx context.Context) ([]string, error) {
	return NewThresholdRepo(s.db).ListSymbols(ctx)
}

// History returns past calibrations, newest first.
func (s *SqliteStore) History(ctx context.Context, symbol string, limit int) ([]signals.Thresholds, error) {
	logs, err := NewLogRepo(s.db).ListCalibrations(ctx, normalizeSymbol(symbol), limit)
	if err != nil {
		return nil, err
	}
	out := make([]signals.Thresholds, 0, len(logs))
	for _, l := range logs {
		var th signals.Thresholds
		if err := json.Unmarshal(l.Thresholds, &th); err != nil {
			return nil, fmt.Errorf("calibration %d: %w", l.ID, err)
		}
		out = append(out, th)
	}
	return out, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func toModel(symbol string, th signals.Thresholds, now time.Time) (*model.ThresholdModel, error) {
	ref, err := json.Marshal(th.Reference())
	if err != nil {
		return nil, err
	}
	return &model.ThresholdModel{
		Symbol:        symbol,
		PriceLong:     th.PriceLong,
		PriceShort:    th.PriceShort,
		DelLong:       th.DelLong,
		DelShort:      th.DelShort,
		OILong:        th.OILong,
		OIShort:       th.OIShort,
		AbsOILong:     th.AbsOILong,
		AbsOIShort:    th.AbsOIShort,
		ReferenceJSON: datatypes.JSON(ref),
		CreatedAtUnix: now.UnixMilli(),
		UpdatedAtUnix: now.UnixMilli(),
	}, nil
}

func fromModel(m model.ThresholdModel) (signals.Thresholds, error) {
	th := signals.Thresholds{
		PriceLong:  m.PriceLong,
		PriceShort: m.PriceShort,
		DelLong:    m.DelLong,
		DelShort:   m.DelShort,
		OILong:     m.OILong,
		OIShort:    m.OIShort,
		AbsOILong:  m.AbsOILong,
		AbsOIShort: m.AbsOIShort,
	}
	if len(m.ReferenceJSON) > 0 {
		var ref map[string]float64
		if err := json.Unmarshal(m.ReferenceJSON, &ref); err != nil {
			return th, fmt.Errorf("reference thresholds for %s: %w", m.Symbol, err)
		}
		th.ApplyReference(ref)
	}
	return th, nil
}

type gormUnitOfWork struct {
	tx *gorm.DB
}

func (u *gormUnitOfWork) Thresholds() store.ThresholdRepository {
	return NewThresholdRepo(u.tx)
}

func (u *gormUnitOfWork) Logs() store.LogRepository {
	return NewLogRepo(u.tx)
}

func (u *gormUnitOfWork) Commit() error {
	return u.tx.Commit().Error
}

func (u *gormUnitOfWork) Rollback() error {
	return u.tx.Rollback().Error
}
