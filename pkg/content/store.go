// Package content defines the immutable content snapshot store.
//
// The node repository stores only references to content; the bytes live
// here. Snapshots are write-once: every upload mints a fresh ID and
// existing snapshots are never modified, so version records can freeze a
// reference forever. Deletion happens solely through the garbage
// collector once no node or version record references a snapshot.
package content

import (
	"context"
	"fmt"
	"io"
)

// ID identifies one immutable content snapshot.
//
// The format is implementation-specific (UUIDs for the built-in backends,
// object keys for S3) and opaque to callers.
type ID string

// Store provides storage-agnostic access to content snapshots.
//
// Separation of Concerns:
// The content store manages raw bytes only. Metadata, hierarchy, access
// control and version ledgers belong to the node repository; the store
// trusts every ID handed to it.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Since snapshots are immutable after Put returns, readers never observe
// partial writes.
type Store interface {
	// Put stores a new snapshot and returns its freshly minted ID along
	// with the number of bytes stored. Enforces the store's size ceiling:
	// oversized uploads fail with ErrTooLarge and leave nothing behind.
	Put(ctx context.Context, r io.Reader) (ID, int64, error)

	// Read returns a reader over a snapshot. The caller must close it.
	// Fails with ErrNotFound for unknown IDs.
	Read(ctx context.Context, id ID) (io.ReadCloser, error)

	// Size returns a snapshot's size in bytes.
	Size(ctx context.Context, id ID) (int64, error)

	// Exists reports whether a snapshot is present.
	Exists(ctx context.Context, id ID) (bool, error)

	// Delete removes a snapshot. Deleting an absent snapshot is not an
	// error; the garbage collector retries sweeps.
	Delete(ctx context.Context, id ID) error

	// List returns the IDs of every stored snapshot. Used by the garbage
	// collector to find orphans.
	List(ctx context.Context) ([]ID, error)
}

// ReadCapped drains r into memory, enforcing the size ceiling shared by
// the buffering backends. A ceiling of zero means unlimited.
func ReadCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	// Read one byte past the ceiling to distinguish "exactly at the
	// limit" from "over it".
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("content exceeds %d byte ceiling: %w", maxBytes, ErrTooLarge)
	}
	return data, nil
}
