// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultShutdownTimeout           = 10 * time.Second
	defaultDatabasePath              = "./data/cadence.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultDatabaseEnableWAL         = true
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultQueueMaxBufferAhead       = 100
	defaultQueueProjectionLimit      = time.Duration(0)
	defaultQueueTickInterval         = 250 * time.Millisecond
	defaultQueueUpdateBuffer         = 16
	defaultManifestPollInterval      = 2 * time.Second
	defaultLiveEdgeOffset            = 12 * time.Second
	envPrefix                        = "CADENCE"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Queue    QueueConfig
	Source   SourceConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// QueueConfig holds media period queue configuration
type QueueConfig struct {
	// MaxBufferAhead is the maximum number of media periods a session keeps queued
	MaxBufferAhead int

	// ProjectionLimit caps how far a live window's default position is projected
	// forward by buffered media. Zero means unbounded.
	ProjectionLimit time.Duration

	// TickInterval is how often an idle session retries resolving the next period
	TickInterval time.Duration

	// UpdateBuffer is the number of queue updates buffered per session
	UpdateBuffer int
}

// SourceConfig holds timeline source configuration
type SourceConfig struct {
	// ManifestPollInterval is how often live HLS manifests are re-read
	ManifestPollInterval time.Duration

	// LiveEdgeOffset is the distance behind the live edge used as default position
	LiveEdgeOffset time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cadence")

	// Environment variable settings
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)
	v.SetDefault("server.shutdowntimeout", defaultShutdownTimeout)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	// Queue defaults
	v.SetDefault("queue.maxbufferahead", defaultQueueMaxBufferAhead)
	v.SetDefault("queue.projectionlimit", defaultQueueProjectionLimit)
	v.SetDefault("queue.tickinterval", defaultQueueTickInterval)
	v.SetDefault("queue.updatebuffer", defaultQueueUpdateBuffer)

	// Source defaults
	v.SetDefault("source.manifestpollinterval", defaultManifestPollInterval)
	v.SetDefault("source.liveedgeoffset", defaultLiveEdgeOffset)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	// Validate timeout durations
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %v (must be > 0)", c.Server.ShutdownTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	// Queue
	if c.Queue.MaxBufferAhead < 1 {
		return fmt.Errorf("invalid queue max buffer ahead: %d (must be >= 1)", c.Queue.MaxBufferAhead)
	}
	if c.Queue.ProjectionLimit < 0 {
		return fmt.Errorf("invalid queue projection limit: %v (must be >= 0)", c.Queue.ProjectionLimit)
	}
	if c.Queue.TickInterval <= 0 {
		return fmt.Errorf("invalid queue tick interval: %v (must be > 0)", c.Queue.TickInterval)
	}
	if c.Queue.UpdateBuffer < 1 {
		return fmt.Errorf("invalid queue update buffer: %d (must be >= 1)", c.Queue.UpdateBuffer)
	}

	// Source
	if c.Source.ManifestPollInterval <= 0 {
		return fmt.Errorf("invalid manifest poll interval: %v (must be > 0)", c.Source.ManifestPollInterval)
	}
	if c.Source.LiveEdgeOffset < 0 {
		return fmt.Errorf("invalid live edge offset: %v (must be >= 0)", c.Source.LiveEdgeOffset)
	}

	return nil
}
