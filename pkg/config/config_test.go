package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	// A missing config file loads pure defaults.
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err) // explicit path that does not exist is an error

	cfg = &config.Config{}
	config.ApplyDefaults(cfg)
	require.NoError(t, config.Validate(cfg))

	require.Equal(t, "INFO", cfg.Logging.Level)
	require.Equal(t, ":8080", cfg.Server.ListenAddr)
	require.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, "memory", cfg.Content.Type)
	require.Equal(t, 24*time.Hour, cfg.GC.Interval)
	require.Equal(t, 2, cfg.Renditions.Workers)
	require.Len(t, cfg.Repository.Tenants, 1)
	require.Equal(t, "default", cfg.Repository.Tenants[0].Name)
	require.Equal(t, 3600, cfg.Repository.EphemeralLockTTLSeconds)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
server:
  listen_addr: ":9090"
content:
  type: badger
  max_size_bytes: 1048576
  badger:
    path: /tmp/canopy-test
repository:
  tenants:
    - name: acme
      users: [alice, bob]
    - name: globex
gc:
  enabled: true
  interval: 1h
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	// Log level is normalized to uppercase.
	require.Equal(t, "DEBUG", cfg.Logging.Level)
	require.Equal(t, ":9090", cfg.Server.ListenAddr)
	require.Equal(t, "badger", cfg.Content.Type)
	require.Equal(t, int64(1048576), cfg.Content.MaxSizeBytes)
	require.True(t, cfg.GC.Enabled)
	require.Equal(t, time.Hour, cfg.GC.Interval)

	seeds := cfg.Repository.TenantSeeds()
	require.Len(t, seeds, 2)
	require.Equal(t, "acme", seeds[0].Name)
	require.Equal(t, []string{"alice", "bob"}, seeds[0].Users)
}

func TestEnvironmentOverride(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")
	t.Setenv("CANOPY_LOGGING_LEVEL", "ERROR")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestValidateRejectsBadLevel(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Logging.Level = "LOUD"

	require.Error(t, config.Validate(cfg))
}

func TestValidateRejectsBadContentType(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Content.Type = "floppy"

	require.Error(t, config.Validate(cfg))
}

func TestValidateRejectsDuplicateTenants(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Repository.Tenants = []config.TenantConfig{
		{Name: "acme"},
		{Name: "acme"},
	}

	err := config.Validate(cfg)
	require.ErrorContains(t, err, "duplicate tenant name")
}

func TestValidateRejectsBadgerWithoutPath(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Content.Type = "badger"
	cfg.Content.Badger["path"] = ""

	err := config.Validate(cfg)
	require.ErrorContains(t, err, "path is required")
}

func TestCreateContentStoreMemory(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	store, err := config.CreateContentStore(context.Background(), &cfg.Content)
	require.NoError(t, err)
	require.NotNil(t, store)
}

func TestCreateContentStoreBadgerInMemory(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Content.Type = "badger"
	cfg.Content.Badger = map[string]any{"in_memory": true}

	store, err := config.CreateContentStore(context.Background(), &cfg.Content)
	require.NoError(t, err)
	require.NotNil(t, store)
}

func TestCreateContentStoreUnknownType(t *testing.T) {
	_, err := config.CreateContentStore(context.Background(), &config.ContentConfig{Type: "floppy"})
	require.ErrorContains(t, err, "unknown content store type")
}

func TestCreateContentStoreS3RequiresBucket(t *testing.T) {
	_, err := config.CreateContentStore(context.Background(), &config.ContentConfig{
		Type: "s3",
		S3:   map[string]any{},
	})
	require.ErrorContains(t, err, "bucket is required")
}
