// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// Tracking settings
	SessionTTLSeconds       int `mapstructure:"sessionttlseconds"`
	ActiveWindowMinutes     int `mapstructure:"activewindowminutes"`
	GeoLookupTimeoutSeconds int `mapstructure:"geolookuptimeoutseconds"`

	// External collaborators
	GeoLookupURL    string `mapstructure:"geolookupurl"`
	DiscordBotToken string `mapstructure:"discordbottoken"`

	// File paths
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings
	GeoDBPath    string `mapstructure:"geodbpath"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Data retention settings
	EventsRetentionDays int `mapstructure:"eventsretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "analyzr")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("sessionttlseconds", 600)
		v.SetDefault("activewindowminutes", 10)
		v.SetDefault("geolookuptimeoutseconds", 5)
		v.SetDefault("geolookupurl", "https://ipapi.co")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("jobintervalseconds", 3600)
		v.SetDefault("eventsretentiondays", 0) // 0 keeps everything

		// Bind environment variables
		v.BindEnv("appname", "ANALYZR_APP_NAME")
		v.BindEnv("appport", "ANALYZR_APP_PORT")
		v.BindEnv("environment", "ANALYZR_ENV")
		v.BindEnv("loglevel", "ANALYZR_LOG_LEVEL")
		v.BindEnv("sessionttlseconds", "ANALYZR_SESSION_TTL_SECONDS")
		v.BindEnv("activewindowminutes", "ANALYZR_ACTIVE_WINDOW_MINUTES")
		v.BindEnv("geolookuptimeoutseconds", "ANALYZR_GEO_LOOKUP_TIMEOUT_SECONDS")
		v.BindEnv("geolookupurl", "ANALYZR_GEO_LOOKUP_URL")
		v.BindEnv("discordbottoken", "DISCORD_BOT_TOKEN")
		v.BindEnv("storagepath", "ANALYZR_STORAGE_PATH")
		v.BindEnv("geodbpath", "ANALYZR_GEO_DB_PATH")
		v.BindEnv("logsdir", "ANALYZR_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "ANALYZR_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "ANALYZR_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "ANALYZR_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "ANALYZR_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "ANALYZR_DB_MAX_IDLE_CONNS")
		v.BindEnv("jobintervalseconds", "ANALYZR_JOB_INTERVAL_SECONDS")
		v.BindEnv("eventsretentiondays", "ANALYZR_EVENTS_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Validate
		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("invalid session ttl: %d", c.SessionTTLSeconds)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetSessionTTL returns the visitor session expiry window.
// Repeated tracked actions inside this window reuse the same session id.
func (c *Config) GetSessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// GetActiveWindow returns the trailing window used for the active-user count.
func (c *Config) GetActiveWindow() time.Duration {
	return time.Duration(c.ActiveWindowMinutes) * time.Minute
}

// GetGeoLookupTimeout returns the timeout applied to IP geolocation lookups.
func (c *Config) GetGeoLookupTimeout() time.Duration {
	return time.Duration(c.GeoLookupTimeoutSeconds) * time.Second
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1 (required for test stability with shared in-memory databases)
// - Development/Production: 10 (allows concurrent reads for parallel dashboard queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
