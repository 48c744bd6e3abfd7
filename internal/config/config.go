// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/conventions/internal/logger"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Scheduler SchedulerConfig
	Auth      AuthConfig
	Log       logger.LogConfig
}

// AuthConfig holds the operator session settings.
type AuthConfig struct {
	SessionSecret string
	SessionTTL    time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds the connection settings. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver     string
	RawDSN     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
	LogLevel   string // silent, error, warn, info
}

// Migration modes.
const (
	MigrationsAuto = "auto"
	MigrationsSQL  = "sql"
	MigrationsOff  = "off"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev                bool
	Migrations         string
	TimeZone           string
	ExpiringWindowDays int
	DefaultTaxRate     string
}

// SchedulerConfig holds the cron specs of the reconciliation sweeps.
type SchedulerConfig struct {
	Enabled         bool
	DateTransitions string
	Completions     string
	OverdueInvoices string
	Comprehensive   string
	JobTimeout      time.Duration
	SweepOnStart    bool
}

// DSN returns the PostgreSQL connection string in key=value format, or DB_DSN when set.
func (d DatabaseConfig) DSN() string {
	if d.RawDSN != "" {
		return d.RawDSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	if strings.HasPrefix(d.RawDSN, "postgres://") || strings.HasPrefix(d.RawDSN, "postgresql://") {
		return d.RawDSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Location loads the business time zone used to decide what "today" is.
func (a AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.TimeZone)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			RawDSN:     getEnv("DB_DSN", ""),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "conventions"),
			Password:   getEnv("DB_PASSWORD", "conventions"),
			DBName:     getEnv("DB_NAME", "conventions"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "conventions.db"),
			LogLevel:   strings.ToLower(getEnv("DB_LOG_LEVEL", "warn")),
		},
		App: AppConfig{
			Dev:                getEnvBool("DEV", true),
			Migrations:         strings.ToLower(getEnv("MIGRATIONS", MigrationsAuto)),
			TimeZone:           getEnv("APP_TIMEZONE", "UTC"),
			ExpiringWindowDays: getEnvInt("EXPIRING_WINDOW_DAYS", 30),
			DefaultTaxRate:     getEnv("DEFAULT_TAX_RATE", "19"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getEnvBool("SCHEDULER_ENABLED", true),
			DateTransitions: getEnv("SWEEP_DATE_TRANSITIONS", "0 6 * * *"),
			Completions:     getEnv("SWEEP_COMPLETIONS", "@every 5m"),
			OverdueInvoices: getEnv("SWEEP_OVERDUE_INVOICES", "@every 10m"),
			Comprehensive:   getEnv("SWEEP_COMPREHENSIVE", "0 3 * * *"),
			JobTimeout:      getEnvDuration("SWEEP_TIMEOUT", 5*time.Minute),
			SweepOnStart:    getEnvBool("SWEEP_ON_START", false),
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", "devsessionsecret"),
			SessionTTL:    getEnvDuration("SESSION_TTL", 14*24*time.Hour),
		},
		Log: logger.LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "console"),
			TimeFormat: getEnv("LOG_TIME_FORMAT", time.RFC3339),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
		},
	}
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.App.Migrations {
	case MigrationsAuto, MigrationsSQL, MigrationsOff:
	default:
		return fmt.Errorf("config: unsupported MIGRATIONS %q", c.App.Migrations)
	}
	if c.App.Migrations == MigrationsSQL && c.Database.Driver != "postgres" {
		return fmt.Errorf("config: MIGRATIONS=sql requires DB_DRIVER=postgres")
	}
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("config: APP_TIMEZONE: %w", err)
	}
	if !c.App.Dev && c.Auth.SessionSecret == "devsessionsecret" {
		return fmt.Errorf("config: SESSION_SECRET must be set when DEV is off")
	}
	if c.Scheduler.JobTimeout <= 0 {
		return fmt.Errorf("config: SWEEP_TIMEOUT must be positive")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration parses values such as "90s" or "5m".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
