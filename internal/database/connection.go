package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/franciscosanchezn/gin-account-api/internal/store"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// retryDelays doubles as the attempt budget: one attempt per entry.
var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}

const slowQueryThreshold = 200 * time.Millisecond

// Setup opens the database and migrates the credential tables.
func Setup(cfg Config) (*gorm.DB, error) {
	db, err := InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate credential tables: %w", err)
	}
	log.Info("Credential tables migrated")
	return db, nil
}

// InitDatabase initializes the database connection based on the provided configuration
// It supports both PostgreSQL and SQLite drivers with automatic retry logic and connection pooling
func InitDatabase(cfg Config) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"db_driver": cfg.Driver,
		"db_target": cfg.String(),
	}).Info("Initializing database connection")

	dialector := dialectorFor(cfg)
	gormConfig := &gorm.Config{Logger: newGormLogger(cfg.LogLevel)}

	maxRetries := len(retryDelays)
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.WithFields(logrus.Fields{
			"attempt":     attempt,
			"max_retries": maxRetries,
		}).Info("Attempting database connection")

		var db *gorm.DB
		db, err = connect(dialector, gormConfig)
		if err == nil {
			log.WithFields(logrus.Fields{
				"db_driver": cfg.Driver,
				"attempt":   attempt,
			}).Info("Database initialized successfully")
			return db, nil
		}

		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("Database connection attempt failed")

		// Don't wait after the last attempt
		if attempt < maxRetries {
			delay := retryDelays[attempt-1]
			log.WithField("delay", delay).Info("Retrying database connection")
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}

// dialectorFor expects a validated config.
func dialectorFor(cfg Config) gorm.Dialector {
	if cfg.Driver == DriverPostgres {
		log.WithField("dsn_host", cfg.Postgres.Host).Debug("Using PostgreSQL")
		return postgres.Open(cfg.DSN())
	}
	log.WithField("db_path", cfg.SQLite.Path).Debug("Using SQLite")
	return sqlite.Open(cfg.DSN())
}

// newGormLogger routes gorm's output through the package logger. Misses
// are expected during id allocation and are not logged.
func newGormLogger(level logrus.Level) logger.Interface {
	return logger.New(log, logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormLogLevel(level),
		IgnoreRecordNotFoundError: true,
	})
}

// connect opens and pings; the pool is configured only once the ping succeeds.
func connect(dialector gorm.Dialector, gormConfig *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Error("Failed to get database instance")
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		log.WithError(err).Error("Failed to ping database")
		return nil, err
	}
	configureConnectionPool(sqlDB)
	return db, nil
}

// configureConnectionPool sets up connection pool parameters for optimal performance
func configureConnectionPool(sqlDB *sql.DB) {
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	log.WithFields(logrus.Fields{
		"max_open_conns":    25,
		"max_idle_conns":    5,
		"conn_max_lifetime": "5m",
	}).Debug("Connection pool configured")
}
