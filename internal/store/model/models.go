package model

import (
	"time"

	"gorm.io/datatypes"
)

// ThresholdModel is the calibrated threshold set of one symbol.
type ThresholdModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Symbol        string         `gorm:"column:symbol;uniqueIndex"`
	PriceLong     float64        `gorm:"column:price_long"`
	PriceShort    float64        `gorm:"column:price_short"`
	DelLong       float64        `gorm:"column:del_long"`
	DelShort      float64        `gorm:"column:del_short"`
	OILong        float64        `gorm:"column:oi_long"`
	OIShort       float64        `gorm:"column:oi_short"`
	AbsOILong     float64        `gorm:"column:abs_oi_long"`
	AbsOIShort    float64        `gorm:"column:abs_oi_short"`
	ReferenceJSON datatypes.JSON `gorm:"column:reference_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`

	CreatedAt time.Time `gorm:"-"`
	UpdatedAt time.Time `gorm:"-"`
}

func (ThresholdModel) TableName() string { return "symbol_thresholds" }
