// Package memory stores card images in-memory for development and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
)

// ContentStore keeps objects and their metadata in maps.
type ContentStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	meta map[string]batch.ObjectMetadata
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		data: make(map[string][]byte),
		meta: make(map[string]batch.ObjectMetadata),
	}
}

// Exists reports whether any stored key starts with the prefix.
func (s *ContentStore) Exists(_ context.Context, prefix string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// Put stores the object bytes and metadata.
func (s *ContentStore) Put(
	_ context.Context,
	key string,
	_ string,
	data []byte,
	meta batch.ObjectMetadata,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	s.meta[key] = meta
	return nil
}

// Object returns the stored bytes for a key, if present.
func (s *ContentStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	return data, ok
}

// Metadata returns the stored metadata for a key, if present.
func (s *ContentStore) Metadata(key string) (batch.ObjectMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.meta[key]
	return meta, ok
}
