package sqlite

import (
	"context"

	"fnotrader/internal/store/model"

	"gorm.io/gorm"
)

type logRepo struct {
	db *gorm.DB
}

func NewLogRepo(db *gorm.DB) *logRepo {
	return &logRepo{db: db}
}

func (r *logRepo) ListCalibrations(ctx context.Context, symbol string, limit int) ([]model.CalibrationLogModel, error) {
	var logs []model.CalibrationLogModel
	q := r.db.WithContext(ctx).Where("symbol = ?", symbol).Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *logRepo) InsertCalibration(ctx context.Context, log *model.CalibrationLogModel) error {
	return r.db.WithContext(ctx).Create(log).Error
}
