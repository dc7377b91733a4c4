package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "local", cfg.Archive.Type)
	assert.Equal(t, filepath.Join("data/icetab", "snapshots"), filepath.Clean(cfg.Snapshot.Dir))
	assert.Equal(t, filepath.Join("data/icetab", "exports"), filepath.Clean(cfg.Export.Dir))
	assert.True(t, cfg.Export.Denormalized)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()

	cfg.Archive.Type = "ftp"
	assert.Error(t, cfg.Validate())

	cfg.Archive.Type = "s3"
	assert.Error(t, cfg.Validate(), "s3 without bucket should fail")

	cfg.Archive.S3.Bucket = "snapshots"
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /var/lib/icetab
export:
  flat: true
archive:
  type: s3
  s3:
    bucket: icetab-snapshots
    region: eu-west-1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	cfg.Resolve()

	assert.Equal(t, "/var/lib/icetab", cfg.DataDir)
	assert.True(t, cfg.Export.Flat)
	assert.Equal(t, "s3", cfg.Archive.Type)
	assert.Equal(t, "icetab-snapshots", cfg.Archive.S3.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Archive.S3.Region)
	assert.Equal(t, filepath.Join("/var/lib/icetab", "snapshots"), cfg.Snapshot.Dir)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ICETAB_DATA_DIR", "/tmp/icetab-test")
	t.Setenv("ICETAB_ARCHIVE_TYPE", "s3")
	t.Setenv("ICETAB_S3_BUCKET", "env-bucket")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	cfg.Resolve()

	assert.Equal(t, "/tmp/icetab-test", cfg.DataDir)
	assert.Equal(t, "s3", cfg.Archive.Type)
	assert.Equal(t, "env-bucket", cfg.Archive.S3.Bucket)
	require.NoError(t, cfg.Validate())
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Snapshot.Dir = ""
	cfg.Export.Dir = ""
	cfg.Archive.Path = ""
	cfg.Resolve()

	require.NoError(t, cfg.EnsureDirectories())
	for _, dir := range []string{cfg.Snapshot.Dir, cfg.Export.Dir, cfg.Archive.Path} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
