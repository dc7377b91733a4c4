package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LocalArchive keeps snapshots in a directory tree. Useful for tests
// and single-machine setups.
type LocalArchive struct {
	baseDir string
	mu      sync.RWMutex
}

// NewLocalArchive creates a filesystem-backed archive rooted at baseDir.
func NewLocalArchive(baseDir string) (*LocalArchive, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &LocalArchive{baseDir: baseDir}, nil
}

func (a *LocalArchive) Put(ctx context.Context, localPath, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrPutFailed, localPath, err)
	}
	defer src.Close()

	dstPath := a.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrPutFailed, err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPutFailed, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("%w: %v", ErrPutFailed, err)
	}
	return nil
}

func (a *LocalArchive) Fetch(ctx context.Context, key, localPath string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(a.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
		}
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return nil
}

func (a *LocalArchive) Exists(ctx context.Context, key string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(a.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *LocalArchive) List(ctx context.Context, prefix string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := filepath.Walk(a.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	return keys, nil
}

func (a *LocalArchive) Remove(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(a.keyPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrRemoveFailed, err)
	}
	return nil
}

func (a *LocalArchive) keyPath(key string) string {
	return filepath.Join(a.baseDir, filepath.FromSlash(key))
}
