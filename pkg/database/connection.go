// Package database opens the gorm connection the script/user store
// (persistence package) persists through, with pool sizing and a
// zap-backed gorm logger wired from the database config section.
package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/caolo/simcore/config"
)

// Open dials the configured Postgres database and returns a ready
// *gorm.DB with its connection pool sized from cfg. Migrations are the
// caller's responsibility (persistence.Migrate) so that a read-only
// replica connection can reuse Open without running DDL.
func Open(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(zapWriter{log}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	log.Info("database connection established",
		zap.String("host", cfg.Host), zap.Int("port", cfg.Port), zap.String("database", cfg.Database))
	return db, nil
}

// zapWriter adapts *zap.Logger to gorm's logger.Writer (a single
// Printf-style method), so gorm's slow-query and error logs flow
// through the same structured sink as everything else.
type zapWriter struct{ log *zap.Logger }

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.log.Sugar().Infof(format, args...)
}
