package repo

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"krakenbot/internal/entity"
)

type ForecastRepo interface {
	Create(ctx context.Context, run *entity.ForecastRun) error
	Latest(ctx context.Context, pair string) (entity.ForecastRun, error)
	List(ctx context.Context, pair string, limit int) ([]entity.ForecastRun, error)
}

type forecastRepo struct {
	db *gorm.DB
}

func NewForecastRepo(db *gorm.DB) ForecastRepo {
	return &forecastRepo{
		db: db,
	}
}

func (repo *forecastRepo) Create(ctx context.Context, run *entity.ForecastRun) error {
	return errors.Wrap(repo.db.WithContext(ctx).Create(run).Error, "create forecast run")
}

func (repo *forecastRepo) Latest(ctx context.Context, pair string) (entity.ForecastRun, error) {
	var run entity.ForecastRun
	err := repo.db.WithContext(ctx).Where("pair = ?", pair).Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.ForecastRun{}, ErrNotFound
	}
	if err != nil {
		return entity.ForecastRun{}, errors.Wrap(err, "query latest forecast")
	}
	return run, nil
}

func (repo *forecastRepo) List(ctx context.Context, pair string, limit int) ([]entity.ForecastRun, error) {
	var runs []entity.ForecastRun
	q := repo.db.WithContext(ctx).Order("id DESC")
	if pair != "" {
		q = q.Where("pair = ?", pair)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, errors.Wrap(err, "list forecasts")
	}
	return runs, nil
}
