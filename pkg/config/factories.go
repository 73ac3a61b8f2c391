package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/treelinehq/canopy/pkg/content"
	contentBadger "github.com/treelinehq/canopy/pkg/content/badger"
	contentMemory "github.com/treelinehq/canopy/pkg/content/memory"
	contentS3 "github.com/treelinehq/canopy/pkg/content/s3"
	repoMemory "github.com/treelinehq/canopy/pkg/repo/memory"
)

// CreateContentStore creates a content store based on configuration.
//
// The Type field selects the backend; the matching type-specific map is
// decoded into that backend's option struct and handed to its
// constructor. The shared size ceiling applies to every backend.
func CreateContentStore(ctx context.Context, cfg *ContentConfig) (content.Store, error) {
	switch cfg.Type {
	case "memory":
		return contentMemory.NewMemoryContentStore(contentMemory.Options{
			MaxBytes: cfg.MaxSizeBytes,
		}), nil
	case "badger":
		return createBadgerContentStore(ctx, cfg)
	case "s3":
		return createS3ContentStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

func createBadgerContentStore(ctx context.Context, cfg *ContentConfig) (content.Store, error) {
	type BadgerContentStoreConfig struct {
		Path     string `mapstructure:"path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var storeCfg BadgerContentStoreConfig
	if err := mapstructure.Decode(cfg.Badger, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger content store config: %w", err)
	}

	if storeCfg.Path == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger content store: path is required")
	}

	store, err := contentBadger.NewBadgerContentStore(ctx, contentBadger.Options{
		Path:     storeCfg.Path,
		InMemory: storeCfg.InMemory,
		MaxBytes: cfg.MaxSizeBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger content store: %w", err)
	}
	return store, nil
}

func createS3ContentStore(ctx context.Context, cfg *ContentConfig) (content.Store, error) {
	type S3ContentStoreConfig struct {
		Bucket          string `mapstructure:"bucket"`
		Region          string `mapstructure:"region"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		UsePathStyle    bool   `mapstructure:"use_path_style"`
	}

	var storeCfg S3ContentStoreConfig
	if err := mapstructure.Decode(cfg.S3, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 content store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}

	store, err := contentS3.NewS3ContentStore(ctx, contentS3.Options{
		Bucket:          storeCfg.Bucket,
		Region:          storeCfg.Region,
		Endpoint:        storeCfg.Endpoint,
		AccessKeyID:     storeCfg.AccessKeyID,
		SecretAccessKey: storeCfg.SecretAccessKey,
		KeyPrefix:       storeCfg.KeyPrefix,
		UsePathStyle:    storeCfg.UsePathStyle,
		MaxBytes:        cfg.MaxSizeBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}
	return store, nil
}

// TenantSeeds converts the configured tenants into repository bootstrap
// seeds.
func (cfg *RepositoryConfig) TenantSeeds() []repoMemory.TenantSeed {
	seeds := make([]repoMemory.TenantSeed, 0, len(cfg.Tenants))
	for _, tenant := range cfg.Tenants {
		seeds = append(seeds, repoMemory.TenantSeed{
			Name:  tenant.Name,
			Users: tenant.Users,
		})
	}
	return seeds
}
