// Package local implements a local filesystem content store for
// development. Object metadata is written to a sidecar file so scrape
// provenance survives locally too.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
)

// Config captures the parameters for the local filesystem content store.
type Config struct {
	// BaseDir is the root directory where images will be stored.
	BaseDir string `mapstructure:"base_dir"`
}

// ContentStore writes card images to the local filesystem.
type ContentStore struct {
	baseDir string
}

// New creates a new local filesystem-backed content store.
func New(cfg Config) (*ContentStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &ContentStore{baseDir: cfg.BaseDir}, nil
}

// Exists reports whether the prefix directory holds any files.
func (s *ContentStore) Exists(_ context.Context, prefix string) (bool, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, filepath.FromSlash(prefix)))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read prefix directory: %w", err)
	}
	return len(entries) > 0, nil
}

// Put writes the image bytes plus a metadata sidecar.
func (s *ContentStore) Put(
	_ context.Context,
	key string,
	_ string,
	data []byte,
	meta batch.ObjectMetadata,
) error {
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write object: %w", err)
	}

	sidecar, err := json.Marshal(map[string]string{
		"scraper_app_version": meta.ScraperVersion,
		"datetime":            meta.FetchedAt.Format(time.RFC3339),
		"original_img_uri":    meta.SourceURI,
	})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta.json", sidecar, 0o644); err != nil {
		return fmt.Errorf("write metadata sidecar: %w", err)
	}
	return nil
}
