package repo

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"krakenbot/internal/entity"
)

// ErrNotFound is returned when a lookup matches nothing
var ErrNotFound = errors.New("record not found")

// Open connects to the sqlite database at path. ":memory:" keeps a single
// connection so every query sees the same database.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}

	if path == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "get sql handle")
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Close releases the database handle
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database is reachable
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql handle")
	}
	return errors.Wrap(sqlDB.PingContext(ctx), "ping database")
}

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(&entity.Candle{}, &entity.ForecastRun{})
}
