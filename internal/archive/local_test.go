package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.db")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLocalArchivePutFetch(t *testing.T) {
	ctx := context.Background()
	arch, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	src := writeTempSnapshot(t, "snapshot-bytes")
	require.NoError(t, arch.Put(ctx, src, "runs/2026/exp1.db"))

	ok, err := arch.Exists(ctx, "runs/2026/exp1.db")
	require.NoError(t, err)
	assert.True(t, ok)

	dst := filepath.Join(t.TempDir(), "fetched.db")
	require.NoError(t, arch.Fetch(ctx, "runs/2026/exp1.db", dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "snapshot-bytes", string(data))
}

func TestLocalArchiveFetchMissing(t *testing.T) {
	ctx := context.Background()
	arch, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "fetched.db")
	err = arch.Fetch(ctx, "runs/missing.db", dst)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestLocalArchiveList(t *testing.T) {
	ctx := context.Background()
	arch, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	src := writeTempSnapshot(t, "x")
	require.NoError(t, arch.Put(ctx, src, "runs/a.db"))
	require.NoError(t, arch.Put(ctx, src, "runs/b.db"))
	require.NoError(t, arch.Put(ctx, src, "other/c.db"))

	keys, err := arch.List(ctx, "runs/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"runs/a.db", "runs/b.db"}, keys)

	all, err := arch.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLocalArchiveRemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	arch, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	src := writeTempSnapshot(t, "x")
	require.NoError(t, arch.Put(ctx, src, "runs/a.db"))
	require.NoError(t, arch.Remove(ctx, "runs/a.db"))

	ok, err := arch.Exists(ctx, "runs/a.db")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing again is not an error.
	require.NoError(t, arch.Remove(ctx, "runs/a.db"))
}

func TestLocalArchiveOverwrite(t *testing.T) {
	ctx := context.Background()
	arch, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	first := writeTempSnapshot(t, "v1")
	second := writeTempSnapshot(t, "v2")
	require.NoError(t, arch.Put(ctx, first, "runs/a.db"))
	require.NoError(t, arch.Put(ctx, second, "runs/a.db"))

	dst := filepath.Join(t.TempDir(), "fetched.db")
	require.NoError(t, arch.Fetch(ctx, "runs/a.db", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}
