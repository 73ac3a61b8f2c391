// Package rendition manages asynchronous rendition jobs.
//
// A rendition is a derived representation of a node's content (a "pdf"
// preview, a "doclib" thumbnail), keyed by (tenant, node, version, name).
// Clients request a rendition, poll its status until it settles on
// CREATED or FAILED, and may delete it independently of the source node.
// The rendering itself is pluggable; this package owns only the job
// lifecycle.
package rendition

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/treelinehq/canopy/internal/logger"
	"github.com/treelinehq/canopy/pkg/repo"
)

// Status is the lifecycle state of a rendition.
type Status string

const (
	// StatusNotCreated means no job was ever requested for this key, or
	// the rendition has been deleted.
	StatusNotCreated Status = "NOT_CREATED"

	// StatusPending means a job is queued or rendering.
	StatusPending Status = "PENDING"

	// StatusCreated means the rendition is available.
	StatusCreated Status = "CREATED"

	// StatusFailed means the renderer returned an error. A new Request
	// for the same key retries.
	StatusFailed Status = "FAILED"
)

// Key identifies one rendition. VersionLabel may be empty to target the
// node's current content.
type Key struct {
	Tenant       string
	NodeID       repo.NodeID
	VersionLabel string
	Name         string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s@%s/%s", k.Tenant, k.NodeID, k.VersionLabel, k.Name)
}

// Request carries everything a renderer needs: the key plus the content
// reference of the source snapshot.
type Request struct {
	Key
	SourceRef string
}

// Renderer produces the derived representation and returns a content
// reference for it.
//
// Implementations run on the manager's worker pool and must be safe for
// concurrent use.
type Renderer interface {
	Render(ctx context.Context, req Request) (resultRef string, err error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, req Request) (string, error)

func (f RendererFunc) Render(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// PassThrough returns the source reference unchanged. Used in tests and
// as a placeholder until a real pipeline is plugged in.
func PassThrough() Renderer {
	return RendererFunc(func(_ context.Context, req Request) (string, error) {
		return req.SourceRef, nil
	})
}

// JobID identifies one rendition job handle.
type JobID string

// Job is the pollable view of a rendition job.
type Job struct {
	ID        JobID
	Key       Key
	Status    Status
	ResultRef string

	// FailureMessage is set when Status is FAILED.
	FailureMessage string
}

// Config configures a Manager.
type Config struct {
	// Workers is the worker pool size (default: 2).
	Workers int

	// QueueSize bounds the pending job queue (default: 64). A full queue
	// rejects new requests with a Conflict rather than blocking callers.
	QueueSize int
}

// record is the internal per-key state. One key has at most one record;
// re-requesting a settled key reuses or replaces it.
type record struct {
	job Job
	req Request
}

// Manager owns the rendition job registry and the worker pool that
// drains it.
//
// Thread Safety: safe for concurrent use by multiple goroutines.
type Manager struct {
	renderer Renderer
	workers  int

	mu      sync.RWMutex
	records map[Key]*record
	byJob   map[JobID]Key
	stopped bool

	jobs   chan Key
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// NewManager creates a manager. Call Start to launch the worker pool.
func NewManager(renderer Renderer, config Config) *Manager {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	return &Manager{
		renderer: renderer,
		workers:  config.Workers,
		records:  make(map[Key]*record),
		byJob:    make(map[JobID]Key),
		jobs:     make(chan Key, config.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the worker pool.
func (m *Manager) Start() {
	logger.Info("Starting rendition manager: workers=%d", m.workers)
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
}

// Stop drains the pool: no new jobs are accepted, queued jobs are
// abandoned as FAILED, and in-flight renders finish. Bounded by ctx.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	close(m.stopCh)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case key := <-m.jobs:
			m.render(key)
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) render(key Key) {
	m.mu.RLock()
	rec, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		// Deleted while queued.
		return
	}

	ref, err := m.renderer.Render(context.Background(), rec.req)

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok = m.records[key]
	if !ok {
		return
	}
	if err != nil {
		logger.Warn("Rendition failed: key=%s error=%v", key, err)
		rec.job.Status = StatusFailed
		rec.job.FailureMessage = err.Error()
		return
	}
	rec.job.Status = StatusCreated
	rec.job.ResultRef = ref
}

// RequestRendition enqueues a job for the given request and returns its
// handle.
//
// Idempotency: a key that is already PENDING or CREATED returns the
// existing handle without queuing new work. A FAILED key is retried with
// a fresh handle.
func (m *Manager) RequestRendition(ctx context.Context, req Request) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	if req.Name == "" {
		return Job{}, repo.NewError(repo.KindInvalidArgument, "rendition name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return Job{}, repo.NewError(repo.KindConflict, "rendition manager is shutting down")
	}

	if rec, ok := m.records[req.Key]; ok && rec.job.Status != StatusFailed {
		return rec.job, nil
	}

	job := Job{
		ID:     JobID(uuid.NewString()),
		Key:    req.Key,
		Status: StatusPending,
	}
	rec := &record{job: job, req: req}

	select {
	case m.jobs <- req.Key:
	default:
		return Job{}, repo.NewError(repo.KindConflict, "rendition queue is full")
	}

	m.records[req.Key] = rec
	m.byJob[job.ID] = req.Key
	return job, nil
}

// StatusOf returns the lifecycle state for a key. Unknown keys report
// NOT_CREATED rather than an error, matching the poll contract.
func (m *Manager) StatusOf(ctx context.Context, key Key) (Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return StatusNotCreated, nil
	}
	return rec.job.Status, nil
}

// JobByID returns the job handle for polling by id.
func (m *Manager) JobByID(ctx context.Context, id JobID) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.byJob[id]
	if !ok {
		return Job{}, repo.NewErrorAt(repo.KindNotFound, "rendition job not found", string(id))
	}
	return m.records[key].job, nil
}

// Get returns the job record for a key. Unlike StatusOf, an unknown key
// is NotFound; use this when the caller needs the result reference.
func (m *Manager) Get(ctx context.Context, key Key) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return Job{}, repo.NewErrorAt(repo.KindNotFound, "rendition not found", key.String())
	}
	return rec.job, nil
}

// Delete removes a rendition record, independent of the source node and
// version. Queued jobs for the key are dropped when a worker picks them
// up. Deleting an unknown key is NotFound.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return repo.NewErrorAt(repo.KindNotFound, "rendition not found", key.String())
	}
	delete(m.records, key)
	delete(m.byJob, rec.job.ID)
	return nil
}

// DeleteForNode drops every rendition of a node, across all versions.
// Called by purge paths so archived sources do not leave dangling
// renditions.
func (m *Manager) DeleteForNode(tenant string, nodeID repo.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, rec := range m.records {
		if key.Tenant == tenant && key.NodeID == nodeID {
			delete(m.records, key)
			delete(m.byJob, rec.job.ID)
		}
	}
}
