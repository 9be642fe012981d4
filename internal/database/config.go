package database

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"

	"github.com/franciscosanchezn/gin-account-api/internal/config"
)

// Driver names a supported SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// defaultBusyTimeout lets concurrent writers on one sqlite file queue
// instead of failing with SQLITE_BUSY.
const defaultBusyTimeout = 5 * time.Second

// ParseDriver normalizes a driver name. An empty name selects sqlite.
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s (supported: postgres, sqlite)", name)
	}
}

// PostgresConfig locates a PostgreSQL server. URL wins over the discrete
// fields when set.
type PostgresConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// SQLiteConfig locates a sqlite database file.
type SQLiteConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// Config selects a backend and how its queries are logged.
type Config struct {
	Driver   Driver
	Postgres PostgresConfig
	SQLite   SQLiteConfig

	// LogLevel is the application level; gorm logs one step quieter.
	LogLevel logrus.Level
}

// SQLite is a shorthand for a sqlite config at path.
func SQLite(path string) Config {
	return Config{Driver: DriverSQLite, SQLite: SQLiteConfig{Path: path}, LogLevel: logrus.InfoLevel}
}

// FromConfig extracts the database settings from the application config.
// An unparsable LOG_LEVEL falls back to info.
func FromConfig(cfg *config.Config) (Config, error) {
	driver, err := ParseDriver(cfg.DBDriver)
	if err != nil {
		return Config{}, err
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	return Config{
		Driver: driver,
		Postgres: PostgresConfig{
			URL:      cfg.DatabaseURL,
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Name:     cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		},
		SQLite:   SQLiteConfig{Path: cfg.DBPath},
		LogLevel: level,
	}, nil
}

// Validate reports settings the selected driver cannot connect with.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite requires a database path")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" && c.Postgres.Host == "" {
			return errors.New("postgres requires a database url or host")
		}
	default:
		_, err := ParseDriver(string(c.Driver))
		return err
	}
	return nil
}

// DSN renders the data source name for the selected driver.
func (c Config) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		return c.Postgres.dsn()
	case DriverSQLite:
		return c.SQLite.dsn()
	default:
		return ""
	}
}

func (p PostgresConfig) dsn() string {
	if p.URL != "" {
		return p.URL
	}
	pairs := []struct{ key, value string }{
		{"host", p.Host},
		{"port", p.Port},
		{"user", p.User},
		{"password", p.Password},
		{"dbname", p.Name},
		{"sslmode", p.SSLMode},
	}
	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		if kv.value != "" {
			parts = append(parts, kv.key+"="+quoteValue(kv.value))
		}
	}
	return strings.Join(parts, " ")
}

// quoteValue applies libpq keyword/value quoting.
func quoteValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}

func (s SQLiteConfig) dsn() string {
	timeout := s.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprint(timeout.Milliseconds()))
	return s.Path + "?" + params.Encode()
}

// String describes the target without credentials.
func (c Config) String() string {
	switch c.Driver {
	case DriverPostgres:
		target := fmt.Sprintf("%s@%s:%s/%s", c.Postgres.User, c.Postgres.Host, c.Postgres.Port, c.Postgres.Name)
		if c.Postgres.URL != "" {
			target = redactURL(c.Postgres.URL)
		}
		return fmt.Sprintf("postgres(%s)", target)
	case DriverSQLite:
		return fmt.Sprintf("sqlite(%s)", c.SQLite.Path)
	default:
		return fmt.Sprintf("unknown(%s)", c.Driver)
	}
}

func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "[REDACTED_INVALID_URL]"
	}
	return parsed.Redacted()
}

// gormLogLevel keeps SQL tracing out of the logs unless the application
// itself runs at debug or trace.
func gormLogLevel(level logrus.Level) logger.LogLevel {
	switch {
	case level >= logrus.DebugLevel:
		return logger.Info
	case level >= logrus.WarnLevel:
		return logger.Warn
	case level >= logrus.ErrorLevel:
		return logger.Error
	default:
		return logger.Silent
	}
}
