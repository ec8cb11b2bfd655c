package repository

import (
	"context"
	"fmt"
	"time"

	"auction-house/config"
	model "auction-house/internal/models"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// List entities to auto-migrate
	entities = []interface{}{
		model.Account{},
		model.Session{},
		model.Listing{},
		model.Bid{},
		model.Comment{},
		model.ListingView{},
		model.WatchlistEntry{},
	}
)

// Open connects to the SQL store described by cfg and migrates the schema.
func Open(ctx context.Context, cfg *config.StoreConfig) (*gorm.DB, error) {
	db, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("Open: Connect: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(entities...); err != nil {
		return nil, errors.Wrap(err, "Open: AutoMigrate")
	}

	return db, nil
}

func connect(cfg *config.StoreConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseURL)
	case config.DriverSQLite:
		dialector = sqlite.Open(sqliteDSN(cfg.SQLitePath))
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q", cfg.Driver)
	}

	gormConfig := gorm.Config{
		Logger: gormlogger.New(log.StandardLogger(), gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  getGormLogLevel(cfg),
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	db, err := gorm.Open(dialector, &gormConfig)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "connect: DB")
	}
	if cfg.Driver == config.DriverSQLite {
		// one writer at a time; readers wait on busy_timeout instead of failing
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, errors.Wrap(err, "connect: Ping")
	}

	return db, nil
}

func sqliteDSN(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}

func getGormLogLevel(cfg *config.StoreConfig) gormlogger.LogLevel {
	if cfg.LogQueries {
		return gormlogger.Info
	}

	return gormlogger.Warn
}
