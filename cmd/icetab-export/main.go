// Package main implements the icetab-export tool.
// It reads an experiment snapshot, writes the experiment hierarchy as
// CSV, and optionally uploads the snapshot to an archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/icetab/icetab/internal/archive"
	"github.com/icetab/icetab/internal/config"
	"github.com/icetab/icetab/internal/frame"
	"github.com/icetab/icetab/internal/icephys"
	"github.com/icetab/icetab/internal/store"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML or JSON config file")
		snapshotPath = flag.String("snapshot", "", "Path to the snapshot file to export (required)")
		outPath      = flag.String("out", "", "Output CSV path (default: <export dir>/<snapshot name>.csv)")
		flat         = flag.Bool("flat", false, "Use unprefixed column names in the output")
		hierarchical = flag.Bool("hierarchical", false, "Export the hierarchical frame instead of the denormalized one")
		archiveKey   = flag.String("archive-key", "", "If set, upload the snapshot to the archive under this key")
	)
	flag.Parse()

	if *snapshotPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	ctx := context.Background()

	log.Printf("Reading snapshot %s", *snapshotPath)
	exp, err := store.Read(ctx, *snapshotPath)
	if err != nil {
		log.Fatalf("Failed to read snapshot: %v", err)
	}
	log.Printf("Loaded experiment: %d recordings, %d conditions",
		exp.Recordings().Len(), exp.ExperimentalConditions().Len())

	f, err := exportFrame(exp, *hierarchical || !cfg.Export.Denormalized, *flat || cfg.Export.Flat)
	if err != nil {
		log.Fatalf("Failed to flatten experiment: %v", err)
	}

	out := *outPath
	if out == "" {
		name := strings.TrimSuffix(filepath.Base(*snapshotPath), filepath.Ext(*snapshotPath))
		out = filepath.Join(cfg.Export.Dir, name+".csv")
	}
	if err := writeCSV(f, out); err != nil {
		log.Fatalf("Failed to write CSV: %v", err)
	}
	log.Printf("Wrote %d rows to %s", f.NumRows(), out)

	if *archiveKey != "" {
		arch, err := openArchive(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to open archive: %v", err)
		}
		if err := arch.Put(ctx, *snapshotPath, *archiveKey); err != nil {
			log.Fatalf("Failed to archive snapshot: %v", err)
		}
		log.Printf("Archived snapshot as %s", *archiveKey)
	}
}

func exportFrame(exp *icephys.Experiment, hierarchical, flat bool) (*frame.Frame, error) {
	conditions := exp.ExperimentalConditions()
	if hierarchical {
		return conditions.ToHierarchicalFrame(flat)
	}
	return conditions.ToDenormalizedFrame(flat)
}

func writeCSV(f *frame.Frame, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return f.WriteCSV(out)
}

func openArchive(ctx context.Context, cfg *config.Config) (archive.Archive, error) {
	switch cfg.Archive.Type {
	case "local":
		return archive.NewLocalArchive(cfg.Archive.Path)
	case "s3":
		return archive.NewS3Archive(ctx, cfg.Archive.S3.Bucket, archive.S3Config{
			Region:       cfg.Archive.S3.Region,
			Endpoint:     cfg.Archive.S3.Endpoint,
			UsePathStyle: cfg.Archive.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Archive.Type)
	}
}
