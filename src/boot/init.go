package boot

import (
	"context"
	"io"
	"os"
	"path"
	"ticketing/src/config"
	"ticketing/src/db"
	"ticketing/src/inventory"
	"ticketing/src/lib"
	"ticketing/src/models"
	"ticketing/src/store"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InitLogger sends JSON logs to stdout and a rotated server.log, and gin's
// access log to api.log.
func InitLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if !cfg.IsProd() {
		logger.SetLevel(logrus.DebugLevel)
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		logger.WithError(err).Warn("log directory unavailable, logging to stdout only")
		return logger
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   path.Join(cfg.LogDir, "server.log"),
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}))
	gin.DefaultWriter = io.MultiWriter(&lumberjack.Logger{
		Filename:   path.Join(cfg.LogDir, "api.log"),
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}, os.Stdout)
	return logger
}

func InitDb(cfg *config.Config, logger *logrus.Logger) *gorm.DB {
	db := db.GetDb(cfg, logger)

	err := db.AutoMigrate(
		&models.Event{},
		&models.TicketType{},
		&models.DiscountCode{},
		&models.Order{},
		&models.OrderItem{},
		&models.Ticket{},
		&models.AuditLogEntry{},
	)
	if err != nil {
		logger.WithError(err).Fatal("error migration")
	}

	return db
}

// InitStore picks the persistence backend. The memory store keeps nothing
// across restarts and is meant for local runs.
func InitStore(cfg *config.Config, logger *logrus.Logger) store.Store {
	if cfg.StoreDriver == "memory" {
		logger.Warn("using in-memory store")
		return store.NewMemoryStore()
	}
	return store.NewGormStore(InitDb(cfg, logger), logger)
}

// InitInventoryCache returns a redis backed status cache, or nil when no
// redis is configured.
func InitInventoryCache(ctx context.Context, cfg *config.Config, logger *logrus.Logger) inventory.StatusCache {
	if cfg.RedisURL == "" {
		return nil
	}
	client, err := lib.GetRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, inventory status is not cached")
		return nil
	}
	return inventory.NewRedisStatusCache(client, cfg.InventoryTTL, logger)
}
