// Package badger implements content.Store using BadgerDB for persistence.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/treelinehq/canopy/internal/logger"
	"github.com/treelinehq/canopy/pkg/content"
)

// Key schema. Snapshot bytes live under one namespaced prefix so future
// data types can share the database without colliding:
//
//	c:<id> -> snapshot bytes
const contentKeyPrefix = "c:"

// BadgerContentStore implements content.Store backed by BadgerDB, a fast
// embedded key-value store with WAL-based crash recovery.
//
// Suitable for single-node deployments where snapshots must survive
// restarts without an external object store.
//
// Thread Safety:
// BadgerDB transactions provide isolation; no additional locking is
// needed because snapshots are immutable once written.
type BadgerContentStore struct {
	db       *badger.DB
	maxBytes int64
}

// Options configures a BadgerContentStore.
type Options struct {
	// Path is the database directory, created if missing.
	Path string

	// MaxBytes is the per-snapshot size ceiling. Zero means unlimited.
	MaxBytes int64

	// InMemory runs the database without a directory (tests).
	InMemory bool
}

// NewBadgerContentStore opens (or creates) the database at the configured
// path. The caller owns the returned store and must Close it.
func NewBadgerContentStore(ctx context.Context, opts Options) (*BadgerContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Path == "" && !opts.InMemory {
		return nil, fmt.Errorf("badger content store requires a path")
	}

	badgerOpts := badger.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug("Opened badger content store: path=%s", opts.Path)
	return &BadgerContentStore{db: db, maxBytes: opts.MaxBytes}, nil
}

// Close flushes and closes the database.
func (s *BadgerContentStore) Close() error {
	return s.db.Close()
}

func contentKey(id content.ID) []byte {
	return []byte(contentKeyPrefix + string(id))
}

// Put implements content.Store.
func (s *BadgerContentStore) Put(ctx context.Context, r io.Reader) (content.ID, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	data, err := content.ReadCapped(r, s.maxBytes)
	if err != nil {
		return "", 0, err
	}

	id := content.ID(uuid.NewString())
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(contentKey(id), data)
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to store content: %w", err)
	}
	return id, int64(len(data)), nil
}

// Read implements content.Store.
func (s *BadgerContentStore) Read(ctx context.Context, id content.ID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(contentKey(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read content %s: %w", id, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Size implements content.Store.
func (s *BadgerContentStore) Size(ctx context.Context, id content.ID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var size int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(contentKey(id))
		if err != nil {
			return err
		}
		size = item.ValueSize()
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat content %s: %w", id, err)
	}
	return size, nil
}

// Exists implements content.Store.
func (s *BadgerContentStore) Exists(ctx context.Context, id content.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(contentKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat content %s: %w", id, err)
	}
	return true, nil
}

// Delete implements content.Store.
func (s *BadgerContentStore) Delete(ctx context.Context, id content.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(contentKey(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete content %s: %w", id, err)
	}
	return nil
}

// List implements content.Store.
func (s *BadgerContentStore) List(ctx context.Context) ([]content.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []content.ID
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = []byte(contentKeyPrefix)

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, content.ID(key[len(contentKeyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	return ids, nil
}
