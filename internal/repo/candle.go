package repo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"krakenbot/internal/entity"
)

type CandleRepo interface {
	Upsert(ctx context.Context, candles []entity.Candle) error
	Range(ctx context.Context, pair string, interval int, from, to time.Time) ([]entity.Candle, error)
	Latest(ctx context.Context, pair string, interval int) (entity.Candle, error)
}

type candleRepo struct {
	db *gorm.DB
}

func NewCandleRepo(db *gorm.DB) CandleRepo {
	return &candleRepo{
		db: db,
	}
}

// Upsert stores candles, replacing values of rows already present. The last
// candle Kraken returns is still forming, so re-fetches update it in place.
func (repo *candleRepo) Upsert(ctx context.Context, candles []entity.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	rows := make([]entity.Candle, len(candles))
	for i, c := range candles {
		c.Id = 0
		c.OpenTime = c.OpenTime.UTC()
		rows[i] = c
	}

	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "pair"}, {Name: "interval"}, {Name: "open_time"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"open", "high", "low", "close", "vwap", "volume", "count", "updated_at",
			}),
		}).
		CreateInBatches(&rows, 500).Error
	return errors.Wrap(err, "upsert candles")
}

func (repo *candleRepo) Range(ctx context.Context, pair string, interval int, from, to time.Time) ([]entity.Candle, error) {
	var candles []entity.Candle
	q := repo.db.WithContext(ctx).Where("pair = ? AND interval = ?", pair, interval)
	if !from.IsZero() {
		q = q.Where("open_time >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("open_time <= ?", to.UTC())
	}
	if err := q.Order("open_time").Find(&candles).Error; err != nil {
		return nil, errors.Wrap(err, "query candles")
	}
	return candles, nil
}

func (repo *candleRepo) Latest(ctx context.Context, pair string, interval int) (entity.Candle, error) {
	var candle entity.Candle
	err := repo.db.WithContext(ctx).
		Where("pair = ? AND interval = ?", pair, interval).
		Order("open_time DESC").
		First(&candle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.Candle{}, ErrNotFound
	}
	if err != nil {
		return entity.Candle{}, errors.Wrap(err, "query latest candle")
	}
	return candle, nil
}
