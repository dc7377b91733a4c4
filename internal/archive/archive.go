// Package archive stores finished snapshot files in object storage so
// experiments can be shared between machines. Snapshots are immutable,
// so the surface is a simple put/fetch pair plus housekeeping.
package archive

import (
	"context"
	"errors"
)

// Common errors for archive operations.
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrPutFailed        = errors.New("archive put failed")
	ErrFetchFailed      = errors.New("archive fetch failed")
	ErrRemoveFailed     = errors.New("archive remove failed")
)

// Archive abstracts snapshot object storage. Implementations include
// S3 and the local filesystem.
type Archive interface {
	// Put uploads the snapshot file at localPath under key.
	Put(ctx context.Context, localPath, key string) error

	// Fetch downloads the snapshot stored under key to localPath.
	Fetch(ctx context.Context, key, localPath string) error

	// Exists reports whether a snapshot is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all snapshot keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Remove deletes the snapshot stored under key. Removing a missing
	// key is not an error.
	Remove(ctx context.Context, key string) error
}
