// Package gc provides garbage collection for orphaned content snapshots.
//
// A snapshot becomes orphaned when the last node or version record
// referencing it is purged: the repository drops references eagerly but
// never deletes bytes inline, so crashes can never leave a node pointing
// at missing content. The collector periodically closes the gap from the
// other side, sweeping snapshots no reference reaches anymore.
package gc

import (
	"context"
	"time"

	"github.com/treelinehq/canopy/internal/logger"
	"github.com/treelinehq/canopy/pkg/content"
)

// ReferenceSource yields the set of content references the repository
// still considers live: current node content plus every version-frozen
// snapshot, across all tenants, the archive included.
type ReferenceSource interface {
	ReferencedContentRefs() map[string]bool
}

// Config contains garbage collector configuration.
type Config struct {
	// Enabled controls whether collection runs at all (default: true in
	// the server config).
	Enabled bool

	// Interval is how often to sweep (default: 24h).
	Interval time.Duration

	// DryRun logs what would be deleted without deleting.
	DryRun bool
}

// Collector periodically sweeps a content store for orphaned snapshots.
//
// Thread Safety: safe for concurrent use; Start and Stop may be called
// from different goroutines.
type Collector struct {
	refs   ReferenceSource
	store  content.Store
	config Config
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCollector creates a collector. Call Start to begin sweeping.
func NewCollector(refs ReferenceSource, store content.Store, config Config) *Collector {
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	return &Collector{
		refs:   refs,
		store:  store,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins background collection at the configured interval.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Content garbage collection disabled")
		close(c.doneCh)
		return
	}

	logger.Info("Starting content garbage collector: interval=%s dry_run=%v",
		c.config.Interval, c.config.DryRun)
	go c.worker()
}

// Stop signals the worker and waits for any in-progress sweep, bounded by
// the context.
func (c *Collector) Stop(ctx context.Context) error {
	close(c.stopCh)
	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := c.Collect(context.Background()); err != nil {
				logger.Error("Content garbage collection failed: %v", err)
			}
		case <-c.stopCh:
			return
		}
	}
}

// Collect performs one sweep and returns the number of snapshots removed
// (or, in dry-run mode, the number that would have been).
//
// The store is listed BEFORE the reference set is taken: an upload that
// finishes after the listing is invisible to this sweep, so only uploads
// landing in the narrow gap between the two reads can race a sweep.
func (c *Collector) Collect(ctx context.Context) (int, error) {
	started := time.Now()

	ids, err := c.store.List(ctx)
	if err != nil {
		return 0, err
	}
	referenced := c.refs.ReferencedContentRefs()

	removed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if referenced[string(id)] {
			continue
		}
		if c.config.DryRun {
			logger.Info("GC dry run: would delete orphaned content %s", id)
			removed++
			continue
		}
		if err := c.store.Delete(ctx, id); err != nil {
			logger.Warn("GC failed to delete orphaned content %s: %v", id, err)
			continue
		}
		removed++
	}

	logger.Debug("Content GC sweep finished: scanned=%d removed=%d elapsed=%s",
		len(ids), removed, time.Since(started))
	return removed, nil
}
