// Package config loads and validates the canopy server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (CANOPY_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store Configuration Pattern:
// Each content backend defines its own configuration shape. The Config
// struct carries one map per backend and only the section matching the
// selected type is decoded, via the factory in factories.go.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete canopy server configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains HTTP server settings
	Server ServerConfig `mapstructure:"server"`

	// Content specifies the content store type and type-specific
	// configuration
	Content ContentConfig `mapstructure:"content"`

	// Repository contains node repository settings
	Repository RepositoryConfig `mapstructure:"repository"`

	// Renditions contains the rendition worker pool settings
	Renditions RenditionConfig `mapstructure:"renditions"`

	// GC contains content garbage collection settings
	GC GCConfig `mapstructure:"gc"`

	// RateLimit throttles inbound HTTP requests
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddr is the address the REST API binds to (e.g., ":8080")
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// ContentConfig specifies content store configuration.
//
// The Type field determines which backend is used. Only the matching
// type-specific section is decoded.
type ContentConfig struct {
	// Type selects the content store backend.
	// Valid values: memory, badger, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory badger s3"`

	// MaxSizeBytes is the per-upload size ceiling shared by all
	// backends. Zero means unlimited.
	MaxSizeBytes int64 `mapstructure:"max_size_bytes" validate:"gte=0"`

	// Memory contains memory-specific configuration.
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration.
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// S3 contains S3-specific configuration.
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// RepositoryConfig contains node repository settings.
type RepositoryConfig struct {
	// Tenants lists the tenant trees to bootstrap at startup. Each entry
	// gets its own root hierarchy.
	Tenants []TenantConfig `mapstructure:"tenants" validate:"required,min=1,dive"`

	// EphemeralLockTTLSeconds caps EPHEMERAL lock lifetimes.
	EphemeralLockTTLSeconds int `mapstructure:"ephemeral_lock_ttl_seconds" validate:"gt=0"`
}

// TenantConfig describes one tenant to bootstrap.
type TenantConfig struct {
	// Name is the tenant identifier (e.g., "default")
	Name string `mapstructure:"name" validate:"required"`

	// Users get a home folder each under "User Homes"
	Users []string `mapstructure:"users"`
}

// RenditionConfig contains the rendition worker pool settings.
type RenditionConfig struct {
	// Workers is the rendering worker pool size
	Workers int `mapstructure:"workers" validate:"gt=0"`

	// QueueSize bounds the pending job queue
	QueueSize int `mapstructure:"queue_size" validate:"gt=0"`
}

// GCConfig contains content garbage collection settings.
type GCConfig struct {
	// Enabled controls whether orphaned snapshots are swept
	Enabled bool `mapstructure:"enabled"`

	// Interval is the time between sweeps
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`

	// DryRun logs orphans without deleting them
	DryRun bool `mapstructure:"dry_run"`
}

// RateLimitConfig throttles inbound HTTP requests.
type RateLimitConfig struct {
	// Enabled turns request throttling on
	Enabled bool `mapstructure:"enabled"`

	// RequestsPerSecond is the sustained request rate
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`

	// Burst is the short-term burst allowance
	Burst int `mapstructure:"burst" validate:"gt=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath uses the default location
// ($XDG_CONFIG_HOME/canopy/config.yaml); a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable and config file handling.
func setupViper(v *viper.Viper, configPath string) {
	// Example: CANOPY_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("CANOPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, falling back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "canopy")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "canopy")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
