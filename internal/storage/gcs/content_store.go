// Package gcs provides a ContentStore backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// ContentStore writes card images to a configured GCS bucket.
type ContentStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed content store.
func New(client *storage.Client, cfg Config) (*ContentStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &ContentStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Exists reports whether any object is stored under the prefix.
func (s *ContentStore) Exists(ctx context.Context, prefix string) (bool, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("list objects under %q: %w", prefix, err)
	}
	return true, nil
}

// Put uploads data to the bucket tagged with the scrape metadata.
func (s *ContentStore) Put(
	ctx context.Context,
	key string,
	contentType string,
	data []byte,
	meta batch.ObjectMetadata,
) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	writer.Metadata = map[string]string{
		"scraper_app_version": meta.ScraperVersion,
		"datetime":            meta.FetchedAt.Format(time.RFC3339),
		"original_img_uri":    meta.SourceURI,
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
