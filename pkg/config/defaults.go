package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by the backends themselves
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyContentDefaults(&cfg.Content)
	applyRepositoryDefaults(&cfg.Repository)
	applyRenditionDefaults(&cfg.Renditions)
	applyGCDefaults(&cfg.GC)
	applyRateLimitDefaults(&cfg.RateLimit)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize to uppercase for consistent internal representation.
	cfg.Level = strings.ToUpper(cfg.Level)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	// Initialize maps if nil
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = "/var/lib/canopy/content"
	}
}

func applyRepositoryDefaults(cfg *RepositoryConfig) {
	if len(cfg.Tenants) == 0 {
		cfg.Tenants = []TenantConfig{{Name: "default"}}
	}
	if cfg.EphemeralLockTTLSeconds == 0 {
		cfg.EphemeralLockTTLSeconds = 3600
	}
}

func applyRenditionDefaults(cfg *RenditionConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 64
	}
}

func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}
}

func applyRateLimitDefaults(cfg *RateLimitConfig) {
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 100
	}
	if cfg.Burst == 0 {
		cfg.Burst = 200
	}
}
