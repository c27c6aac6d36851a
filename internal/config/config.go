// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 7734
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/livetv.db"
	defaultDatabaseMigrationsPath    = "file://./migrations"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultLogMaxSizeMB              = 50
	defaultLogMaxBackups             = 3
	defaultLogMaxAgeDays             = 14
	defaultDVRDevice                 = "ANY"
	defaultDVRRequestTimeout         = 30 * time.Second
	defaultDVREPGDurationSeconds     = 14400
	defaultGuideLookahead            = 8 * time.Hour
	defaultGuideDisplayInterval      = 30 * time.Second
	defaultGuideRefreshInterval      = 15 * time.Minute
	defaultGuideRefreshCooldown      = 5 * time.Minute
	defaultPlayerAPIBaseURL          = "http://localhost:7734"
	defaultPlayerStateDir            = "./data/player"
	defaultPlayerLocation            = "Local"
	defaultPlayerRequestTimeout      = 15 * time.Second
	envPrefix                        = "LIVETV"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	DVR      DVRConfig
	Guide    GuideConfig
	Player   PlayerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	MigrationsPath    string
	ConnectionTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DVRConfig points at the upstream DVR that serves the M3U channel list and XMLTV guide
type DVRConfig struct {
	BaseURL            string
	Device             string
	RequestTimeout     time.Duration
	EPGDurationSeconds int
}

// GuideConfig holds the guide refresh policy
type GuideConfig struct {
	Lookahead       time.Duration
	DisplayInterval time.Duration
	RefreshInterval time.Duration
	RefreshCooldown time.Duration
}

// PlayerConfig holds settings for the headless player session
type PlayerConfig struct {
	APIBaseURL     string
	StateDir       string
	Location       string
	RequestTimeout time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/livetv")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

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

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.migrationspath", defaultDatabaseMigrationsPath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.maxsizemb", defaultLogMaxSizeMB)
	v.SetDefault("logging.maxbackups", defaultLogMaxBackups)
	v.SetDefault("logging.maxagedays", defaultLogMaxAgeDays)

	// DVR defaults
	v.SetDefault("dvr.baseurl", "")
	v.SetDefault("dvr.device", defaultDVRDevice)
	v.SetDefault("dvr.requesttimeout", defaultDVRRequestTimeout)
	v.SetDefault("dvr.epgdurationseconds", defaultDVREPGDurationSeconds)

	// Guide defaults
	v.SetDefault("guide.lookahead", defaultGuideLookahead)
	v.SetDefault("guide.displayinterval", defaultGuideDisplayInterval)
	v.SetDefault("guide.refreshinterval", defaultGuideRefreshInterval)
	v.SetDefault("guide.refreshcooldown", defaultGuideRefreshCooldown)

	// Player defaults
	v.SetDefault("player.apibaseurl", defaultPlayerAPIBaseURL)
	v.SetDefault("player.statedir", defaultPlayerStateDir)
	v.SetDefault("player.location", defaultPlayerLocation)
	v.SetDefault("player.requesttimeout", defaultPlayerRequestTimeout)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.DVR.RequestTimeout <= 0 {
		return fmt.Errorf("invalid dvr request timeout: %v (must be > 0)", c.DVR.RequestTimeout)
	}
	if c.DVR.EPGDurationSeconds <= 0 {
		return fmt.Errorf("invalid dvr epg duration: %d (must be > 0)", c.DVR.EPGDurationSeconds)
	}

	if err := c.Guide.Validate(); err != nil {
		return err
	}

	if c.Player.RequestTimeout <= 0 {
		return fmt.Errorf("invalid player request timeout: %v (must be > 0)", c.Player.RequestTimeout)
	}

	// DVR base URL is optional; sync and guide endpoints report it as missing when unset

	return nil
}

// Validate checks the guide refresh intervals
func (g GuideConfig) Validate() error {
	if g.Lookahead <= 0 {
		return fmt.Errorf("invalid guide lookahead: %v (must be > 0)", g.Lookahead)
	}
	if g.DisplayInterval <= 0 {
		return fmt.Errorf("invalid guide display interval: %v (must be > 0)", g.DisplayInterval)
	}
	if g.RefreshInterval <= 0 {
		return fmt.Errorf("invalid guide refresh interval: %v (must be > 0)", g.RefreshInterval)
	}
	if g.RefreshCooldown <= 0 || g.RefreshCooldown >= g.RefreshInterval {
		return fmt.Errorf("invalid guide refresh cooldown: %v (must be > 0 and < refresh interval %v)", g.RefreshCooldown, g.RefreshInterval)
	}
	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
