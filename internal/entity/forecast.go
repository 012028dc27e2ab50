package entity

import (
	"time"
)

// ForecastRun records one prediction
type ForecastRun struct {
	Id        int64  `gorm:"primaryKey"`
	Pair      string `gorm:"index"`
	Interval  int
	Horizon   int
	Model     string
	Trend     string
	Slope     float64
	// TrendSlope is the normalised slope of the predicted values
	TrendSlope string
	LastValue  float64
	Points     string // JSON encoded estimates
	Regressors string
	ChartPath  string
	CreatedAt  time.Time
}

const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)
