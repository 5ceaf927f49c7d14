// Package store declares interfaces for persisting batch progress.
// Implementations live in other packages; this package must not import
// database drivers or concrete clients.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
)

// ErrNotFound signals that the requested batch does not exist (or expired).
var ErrNotFound = errors.New("batch not found")

// ErrUnavailable signals a transport fault talking to the durable store.
var ErrUnavailable = errors.New("progress store unavailable")

// ProgressStore persists per-batch progress documents.
type ProgressStore interface {
	// CreateBatch writes a new document with every item key set to
	// PENDING and the given expiration. The caller guarantees a fresh
	// batch ID; CreateBatch is never called twice for the same one.
	CreateBatch(ctx context.Context, batchID string, itemKeys []string, expiresAt time.Time) error

	// SetItemStatus point-updates a single entry of the progress
	// document. SUCCESS is terminal: a FAILURE write for a key already
	// at SUCCESS is dropped. Updates against unknown batch IDs are
	// best-effort no-ops.
	SetItemStatus(ctx context.Context, batchID string, itemKey string, status batch.ItemStatus) error

	// GetBatch loads one batch or returns ErrNotFound.
	GetBatch(ctx context.Context, batchID string) (batch.Batch, error)

	// DeleteExpired removes batches past their expiration and reports
	// how many were dropped.
	DeleteExpired(ctx context.Context) (int64, error)
}
