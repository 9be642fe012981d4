package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		// Default to info level for other environments
		log.SetLevel(logrus.InfoLevel)
	}
}

// Code store backends selectable with CODE_STORE.
const (
	CodeStoreGorm  = "gorm"
	CodeStoreRedis = "redis"
)

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Port        int    `json:"port"`
	Host        string `json:"host"`
	Environment string `json:"environment"`

	// Database configuration
	DatabaseURL string `json:"database_url"`
	DBDriver    string `json:"db_driver"`
	DBPath      string `json:"db_path"`
	DBHost      string `json:"db_host"`
	DBPort      string `json:"db_port"`
	DBName      string `json:"db_name"`
	DBUser      string `json:"db_user"`
	DBPassword  string `json:"db_password"`
	DBSSLMode   string `json:"db_sslmode"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Token configuration
	JWTSecret       string        `json:"jwt_secret"`
	JWTIssuer       string        `json:"jwt_issuer"`
	JWTAudience     string        `json:"jwt_audience"`
	JWTRealm        string        `json:"jwt_realm"`
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
	BcryptCost      int           `json:"bcrypt_cost"`
	CookieName      string        `json:"cookie_name"`

	// Authorization code storage
	CodeStore     string        `json:"code_store"`
	CodeTTL       time.Duration `json:"code_ttl"`
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"redis_password"`
	RedisDB       int           `json:"redis_db"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Host: %s, Environment: %s, DatabaseURL: %s, DBDriver: %s, DBPath: %s, DBHost: %s, DBName: %s, DBUser: %s, DBPassword: [REDACTED], LogLevel: %s, JWTSecret: [REDACTED], JWTIssuer: %s, JWTAudience: %s, AccessTokenTTL: %s, RefreshTokenTTL: %s, BcryptCost: %d, CodeStore: %s, CodeTTL: %s, RedisAddr: %s, RedisPassword: [REDACTED], RedisDB: %d}",
		c.Port, c.Host, c.Environment, maskDatabaseURL(c.DatabaseURL), c.DBDriver, c.DBPath, c.DBHost, c.DBName, c.DBUser,
		c.LogLevel, c.JWTIssuer, c.JWTAudience, c.AccessTokenTTL, c.RefreshTokenTTL, c.BcryptCost,
		c.CodeStore, c.CodeTTL, c.RedisAddr, c.RedisDB)
}

// maskDatabaseURL masks password in database URL
func maskDatabaseURL(dbURL string) string {
	if dbURL == "" {
		return ""
	}

	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "[REDACTED_INVALID_URL]"
	}

	if parsed.User != nil {
		// Replace password with [REDACTED]
		parsed.User = url.UserPassword(parsed.User.Username(), "[REDACTED]")
	}

	return parsed.String()
}

// LoadConfig read the proper configuration from environment variables and returns a Config struct
// It validates the database settings for the selected driver and the code store backend
// Returns an error if any required environment variable is missing or invalid
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(GetEnvWithDefault("DB_DRIVER", "sqlite"))
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL != "" {
		if _, err := url.ParseRequestURI(dbURL); err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL format: %w", err)
		}
	}
	switch driver {
	case "sqlite":
	case "postgres", "postgresql":
		if dbURL == "" && os.Getenv("DB_HOST") == "" {
			return nil, errors.New("DATABASE_URL or DB_HOST environment variable is required for postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", driver)
	}

	codeStore := strings.ToLower(GetEnvWithDefault("CODE_STORE", CodeStoreGorm))
	if codeStore != CodeStoreGorm && codeStore != CodeStoreRedis {
		return nil, fmt.Errorf("unsupported CODE_STORE: %s", codeStore)
	}

	config := &Config{
		Port:        port,
		Host:        GetEnvWithDefault("APP_HOST", "localhost"),
		Environment: GetEnvWithDefault("APP_ENV", "development"),

		DatabaseURL: dbURL,
		DBDriver:    driver,
		DBPath:      GetEnvWithDefault("DB_PATH", "account.sqlite"),
		DBHost:      GetEnvWithDefault("DB_HOST", "localhost"),
		DBPort:      GetEnvWithDefault("DB_PORT", "5432"),
		DBName:      GetEnvWithDefault("DB_NAME", "accounts"),
		DBUser:      GetEnvWithDefault("DB_USER", "user"),
		DBPassword:  GetEnvWithDefault("DB_PASSWORD", "password"),
		DBSSLMode:   GetEnvWithDefault("DB_SSLMODE", "disable"),

		LogLevel: GetEnvWithDefault("LOG_LEVEL", "info"),

		JWTSecret:       GetEnvWithDefault("JWT_SECRET", "secret"),
		JWTIssuer:       GetEnvWithDefault("JWT_ISSUER", "http://localhost:8080"),
		JWTAudience:     GetEnvWithDefault("JWT_AUDIENCE", "http://localhost:8080/api/v1"),
		JWTRealm:        GetEnvWithDefault("JWT_REALM", "Account Token"),
		AccessTokenTTL:  GetEnvAsType("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: GetEnvAsType("REFRESH_TOKEN_TTL", 720*time.Hour),
		BcryptCost:      GetEnvAsType("BCRYPT_COST", 12),
		CookieName:      GetEnvWithDefault("COOKIE_NAME", "as-login"),

		CodeStore:     codeStore,
		CodeTTL:       GetEnvAsType("CODE_TTL", 10*time.Minute),
		RedisAddr:     GetEnvWithDefault("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       GetEnvAsType("REDIS_DB", 0),
	}
	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Warnf("Environment variable %s not set, using default value: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	case time.Duration:
		durationValue, err := time.ParseDuration(value)
		if err != nil {
			log.WithField("key", key).Warn("Invalid duration, using default")
			return defaultValue
		}
		return any(durationValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}
