package store

import (
	"context"

	"fnotrader/internal/store/model"
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	// Commit commits the transaction.
	Commit() error
	// Rollback rolls back the transaction.
	Rollback() error

	// Thresholds returns the threshold repository within this transaction.
	Thresholds() ThresholdRepository
	// Logs returns the calibration log repository within this transaction.
	Logs() LogRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Close closes the store connection.
	Close() error
}

// ThresholdRepository handles per-symbol threshold persistence.
type ThresholdRepository interface {
	Save(ctx context.Context, th *model.ThresholdModel) error
	FindBySymbol(ctx context.Context, symbol string) (*model.ThresholdModel, error)
	ListSymbols(ctx context.Context) ([]string, error)
}

// LogRepository keeps the calibration history.
type LogRepository interface {
	InsertCalibration(ctx context.Context, log *model.CalibrationLogModel) error
	ListCalibrations(ctx context.Context, symbol string, limit int) ([]model.CalibrationLogModel, error)
}
