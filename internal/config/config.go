// Package config provides configuration for the icetab tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the export tool.
type Config struct {
	// DataDir is the base directory for snapshots and exports
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Snapshot configuration
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`

	// Export configuration
	Export ExportConfig `json:"export" yaml:"export"`

	// Archive configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
}

// SnapshotConfig holds snapshot file settings.
type SnapshotConfig struct {
	// Dir is the directory for snapshot files
	Dir string `json:"dir" yaml:"dir"`
}

// ExportConfig holds CSV export settings.
type ExportConfig struct {
	// Dir is the directory for exported CSV files
	Dir string `json:"dir" yaml:"dir"`

	// Flat controls whether exported column names are unprefixed
	Flat bool `json:"flat" yaml:"flat"`

	// Denormalized exports one flat row per recording instead of a
	// hierarchical frame
	Denormalized bool `json:"denormalized" yaml:"denormalized"`
}

// ArchiveConfig holds snapshot archive settings.
type ArchiveConfig struct {
	// Type is the archive backend: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local archive path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 archive configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/icetab",
		Export: ExportConfig{
			Denormalized: true,
		},
		Archive: ArchiveConfig{
			Type: "local",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/icetab"
	}

	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = filepath.Join(c.DataDir, "snapshots")
	}

	if c.Export.Dir == "" {
		c.Export.Dir = filepath.Join(c.DataDir, "exports")
	}

	if c.Archive.Type == "local" && c.Archive.Path == "" {
		c.Archive.Path = filepath.Join(c.DataDir, "archive")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Archive.Type != "local" && c.Archive.Type != "s3" {
		return fmt.Errorf("invalid archive type: %s (must be local or s3)", c.Archive.Type)
	}

	if c.Archive.Type == "s3" && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when archive type is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ICETAB_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("ICETAB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ICETAB_SNAPSHOT_DIR"); v != "" {
		cfg.Snapshot.Dir = v
	}
	if v := os.Getenv("ICETAB_EXPORT_DIR"); v != "" {
		cfg.Export.Dir = v
	}
	if v := os.Getenv("ICETAB_ARCHIVE_TYPE"); v != "" {
		cfg.Archive.Type = v
	}
	if v := os.Getenv("ICETAB_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}
	if v := os.Getenv("ICETAB_S3_BUCKET"); v != "" {
		cfg.Archive.S3.Bucket = v
	}
	if v := os.Getenv("ICETAB_S3_REGION"); v != "" {
		cfg.Archive.S3.Region = v
	}
	if v := os.Getenv("ICETAB_S3_ENDPOINT"); v != "" {
		cfg.Archive.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Snapshot.Dir,
		c.Export.Dir,
	}
	if c.Archive.Type == "local" {
		dirs = append(dirs, c.Archive.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
