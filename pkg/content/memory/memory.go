// Package memory implements content.Store with in-memory storage.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/treelinehq/canopy/pkg/content"
)

// MemoryContentStore implements content.Store using an in-memory map.
//
// Suitable for tests, development and ephemeral deployments. All data is
// lost when the process exits.
//
// Thread Safety:
// Protected by a RWMutex. Data is copied on write and served through
// bytes.Reader on read, so callers can never alias store memory.
type MemoryContentStore struct {
	mu       sync.RWMutex
	data     map[content.ID][]byte
	maxBytes int64
}

// Options configures a MemoryContentStore.
type Options struct {
	// MaxBytes is the per-snapshot size ceiling. Zero means unlimited.
	MaxBytes int64
}

// NewMemoryContentStore creates an empty in-memory content store.
func NewMemoryContentStore(opts Options) *MemoryContentStore {
	return &MemoryContentStore{
		data:     make(map[content.ID][]byte),
		maxBytes: opts.MaxBytes,
	}
}

// Put implements content.Store.
func (s *MemoryContentStore) Put(ctx context.Context, r io.Reader) (content.ID, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	data, err := content.ReadCapped(r, s.maxBytes)
	if err != nil {
		return "", 0, err
	}

	id := content.ID(uuid.NewString())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = data

	return id, int64(len(data)), nil
}

// Read implements content.Store.
func (s *MemoryContentStore) Read(ctx context.Context, id content.ID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[id]
	if !exists {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Size implements content.Store.
func (s *MemoryContentStore) Size(ctx context.Context, id content.ID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[id]
	if !exists {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrNotFound)
	}
	return int64(len(data)), nil
}

// Exists implements content.Store.
func (s *MemoryContentStore) Exists(ctx context.Context, id content.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[id]
	return exists, nil
}

// Delete implements content.Store.
func (s *MemoryContentStore) Delete(ctx context.Context, id content.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id)
	return nil
}

// List implements content.Store.
func (s *MemoryContentStore) List(ctx context.Context) ([]content.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]content.ID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
