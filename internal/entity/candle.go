package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a stored OHLC row
type Candle struct {
	Id        int64     `gorm:"primaryKey"`
	Pair      string    `gorm:"uniqueIndex:candle_idx"`
	Interval  int       `gorm:"uniqueIndex:candle_idx"` // minutes
	OpenTime  time.Time `gorm:"uniqueIndex:candle_idx"`
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	VWAP      decimal.Decimal
	Volume    decimal.Decimal
	Count     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
