package sqlite

import (
	"context"
	"errors"

	"fnotrader/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// thresholdRepository implements the ThresholdRepository interface.
type thresholdRepository struct {
	db *gorm.DB
}

func NewThresholdRepo(db *gorm.DB) *thresholdRepository {
	return &thresholdRepository{db: db}
}

// Save upserts on symbol.
func (r *thresholdRepository) Save(ctx context.Context, th *model.ThresholdModel) error {
	if th == nil {
		return errors.New("thresholds cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price_long", "price_short", "del_long", "del_short", "oi_long", "oi_short",
			"abs_oi_long", "abs_oi_short", "reference_json", "updated_at",
		}),
	}).Create(th).Error
}

// FindBySymbol returns nil without error when the symbol has no row.
func (r *thresholdRepository) FindBySymbol(ctx context.Context, symbol string) (*model.ThresholdModel, error) {
	var th model.ThresholdModel
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&th).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &th, nil
}

func (r *thresholdRepository) ListSymbols(ctx context.Context) ([]string, error) {
	var out []string
	if err := r.db.WithContext(ctx).Model(&model.ThresholdModel{}).
		Order("symbol ASC").
		Pluck("symbol", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
