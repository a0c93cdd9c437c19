package model

import "gorm.io/datatypes"

// CalibrationLogModel maps to 'calibration_log': every threshold set ever saved.
type CalibrationLogModel struct {
	ID         int64          `gorm:"column:id;primaryKey"`
	Symbol     string         `gorm:"column:symbol;index"`
	Thresholds datatypes.JSON `gorm:"column:thresholds;type:TEXT"`
	Timestamp  int64          `gorm:"column:timestamp"`
}

func (CalibrationLogModel) TableName() string { return "calibration_log" }
