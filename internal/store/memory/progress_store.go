// Package memory provides an in-memory progress store for development
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
	"github.com/JakeFAU/cardimg-scraper/internal/store"
)

// ProgressStore keeps progress documents in a map. It applies the same
// SUCCESS-is-terminal rule as the Postgres store.
type ProgressStore struct {
	mu      sync.RWMutex
	batches map[string]batch.Batch
	clock   batch.Clock
}

// NewProgressStore constructs an empty store.
func NewProgressStore(clock batch.Clock) *ProgressStore {
	return &ProgressStore{
		batches: make(map[string]batch.Batch),
		clock:   clock,
	}
}

// CreateBatch stores a new document with every key PENDING.
func (s *ProgressStore) CreateBatch(
	_ context.Context,
	batchID string,
	itemKeys []string,
	expiresAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := make(batch.ProgressDocument, len(itemKeys))
	for _, key := range itemKeys {
		doc[key] = batch.StatusPending
	}
	s.batches[batchID] = batch.Batch{ID: batchID, Progress: doc, ExpiresAt: expiresAt}
	return nil
}

// SetItemStatus point-updates one entry; unknown batches are a no-op and
// SUCCESS never regresses.
func (s *ProgressStore) SetItemStatus(
	_ context.Context,
	batchID string,
	itemKey string,
	status batch.ItemStatus,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil
	}
	if b.Progress[itemKey] == batch.StatusSuccess {
		return nil
	}
	b.Progress[itemKey] = status
	return nil
}

// GetBatch returns a copy of the batch or store.ErrNotFound.
func (s *ProgressStore) GetBatch(_ context.Context, batchID string) (batch.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[batchID]
	if !ok || !b.ExpiresAt.After(s.clock.Now()) {
		return batch.Batch{}, store.ErrNotFound
	}
	out := b
	out.Progress = b.Progress.Clone()
	return out, nil
}

// DeleteExpired drops batches past their expiration.
func (s *ProgressStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	var dropped int64
	for id, b := range s.batches {
		if !b.ExpiresAt.After(now) {
			delete(s.batches, id)
			dropped++
		}
	}
	return dropped, nil
}
