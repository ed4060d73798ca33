package db

import (
	"ticketing/src/config"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var db *gorm.DB

// GetDb lazily opens the shared connection pool.
func GetDb(cfg *config.Config, logger *logrus.Logger) *gorm.DB {
	if db != nil {
		return db
	}
	_db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.WithError(err).Fatal("Error connecting to database")
	}
	sqlDB, err := _db.DB()
	if err != nil {
		logger.WithError(err).Fatal("Error establishing connection to database")
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	db = _db
	return _db
}

// NewDB replaces the shared connection, e.g. with a mock in tests.
func NewDB(newdb *gorm.DB) {
	db = newdb
}
