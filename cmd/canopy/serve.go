package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/treelinehq/canopy/internal/httpapi"
	"github.com/treelinehq/canopy/internal/logger"
	"github.com/treelinehq/canopy/internal/ratelimiter"
	"github.com/treelinehq/canopy/pkg/config"
	"github.com/treelinehq/canopy/pkg/content/gc"
	"github.com/treelinehq/canopy/pkg/identity"
	"github.com/treelinehq/canopy/pkg/rendition"
	repoMemory "github.com/treelinehq/canopy/pkg/repo/memory"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the repository server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "config file (default: $XDG_CONFIG_HOME/canopy/config.yaml)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetLevel(cfg.Logging.Level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// ========================================================================
	// Step 1: Build the stores
	// ========================================================================

	contents, err := config.CreateContentStore(ctx, &cfg.Content)
	if err != nil {
		return fmt.Errorf("failed to create content store: %w", err)
	}
	if closer, ok := contents.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// Seed the identity directory from the configured tenant users so ACL
	// grants can reference them.
	directory := identity.NewMemoryDirectory()
	directory.AddUser("admin")
	for _, tenant := range cfg.Repository.Tenants {
		for _, user := range tenant.Users {
			directory.AddUser(user)
		}
	}

	store := repoMemory.NewMemoryStore(repoMemory.Options{
		Directory:        directory,
		Tenants:          cfg.Repository.TenantSeeds(),
		EphemeralLockTTL: time.Duration(cfg.Repository.EphemeralLockTTLSeconds) * time.Second,
	})
	logger.Info("Repository bootstrapped: tenants=%d", len(cfg.Repository.Tenants))

	// ========================================================================
	// Step 2: Background services
	// ========================================================================

	collector := gc.NewCollector(store, contents, gc.Config{
		Enabled:  cfg.GC.Enabled,
		Interval: cfg.GC.Interval,
		DryRun:   cfg.GC.DryRun,
	})
	collector.Start()

	renditions := rendition.NewManager(rendition.PassThrough(), rendition.Config{
		Workers:   cfg.Renditions.Workers,
		QueueSize: cfg.Renditions.QueueSize,
	})
	renditions.Start()

	// ========================================================================
	// Step 3: HTTP server
	// ========================================================================

	var limiter *ratelimiter.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimiter.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	api := httpapi.New(store, contents, renditions, limiter)
	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving REST API on %s", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// ========================================================================
	// Step 4: Wait for shutdown
	// ========================================================================

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal %s, shutting down", sig)
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown did not finish cleanly: %v", err)
	}
	if err := renditions.Stop(shutdownCtx); err != nil {
		logger.Warn("Rendition manager did not stop cleanly: %v", err)
	}
	if err := collector.Stop(shutdownCtx); err != nil {
		logger.Warn("Garbage collector did not stop cleanly: %v", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
