// Package postgres provides the Postgres-backed progress store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
	"github.com/JakeFAU/cardimg-scraper/internal/store"
)

// PgxIface is the subset of pgxpool.Pool the store needs. It lets tests
// substitute pgxmock without a live database.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ProgressStore implements store.ProgressStore on Postgres. The progress
// document lives in a jsonb column so item statuses can be point-updated
// without rewriting the document.
//
// Expected schema:
//
//	CREATE TABLE batches (
//	    batch_id   UUID PRIMARY KEY,
//	    progress   JSONB NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL,
//	    created_at TIMESTAMPTZ DEFAULT NOW()
//	);
type ProgressStore struct {
	db PgxIface
}

// NewProgressStore connects a pool and pings it to fail fast on bad DSNs.
func NewProgressStore(ctx context.Context, dsn string) (*ProgressStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &ProgressStore{db: pool}, nil
}

// NewProgressStoreWithDB wraps an existing connection; used by tests.
func NewProgressStoreWithDB(db PgxIface) *ProgressStore {
	return &ProgressStore{db: db}
}

// Close releases the underlying pool.
func (s *ProgressStore) Close() {
	s.db.Close()
}

// CreateBatch inserts a fresh document with every key set to PENDING.
func (s *ProgressStore) CreateBatch(
	ctx context.Context,
	batchID string,
	itemKeys []string,
	expiresAt time.Time,
) error {
	doc := make(batch.ProgressDocument, len(itemKeys))
	for _, key := range itemKeys {
		doc[key] = batch.StatusPending
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal progress document: %w", err)
	}

	query := `
		INSERT INTO batches (batch_id, progress, expires_at)
		VALUES ($1, $2, $3);
	`
	if _, err := s.db.Exec(ctx, query, batchID, raw, expiresAt); err != nil {
		return fmt.Errorf("%w: insert batch: %v", store.ErrUnavailable, err)
	}
	return nil
}

// SetItemStatus point-updates one entry via jsonb_set. The guard keeps
// SUCCESS terminal so a delayed FAILURE from an aborted earlier delivery
// cannot clobber a later success. Unknown batch IDs update zero rows,
// which is not an error.
func (s *ProgressStore) SetItemStatus(
	ctx context.Context,
	batchID string,
	itemKey string,
	status batch.ItemStatus,
) error {
	query := `
		UPDATE batches
		SET progress = jsonb_set(progress, ARRAY[$2], to_jsonb($3::text))
		WHERE batch_id = $1
		  AND progress->>$2 IS DISTINCT FROM 'SUCCESS';
	`
	if _, err := s.db.Exec(ctx, query, batchID, itemKey, string(status)); err != nil {
		return fmt.Errorf("%w: update item status: %v", store.ErrUnavailable, err)
	}
	return nil
}

// GetBatch loads one batch. Rows past their expiration read as not found,
// matching the passive-expiry contract.
func (s *ProgressStore) GetBatch(ctx context.Context, batchID string) (batch.Batch, error) {
	query := `
		SELECT batch_id, progress, expires_at
		FROM batches
		WHERE batch_id = $1 AND expires_at > NOW();
	`
	var (
		b   batch.Batch
		raw []byte
	)
	err := s.db.QueryRow(ctx, query, batchID).Scan(&b.ID, &raw, &b.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return batch.Batch{}, store.ErrNotFound
		}
		return batch.Batch{}, fmt.Errorf("%w: get batch: %v", store.ErrUnavailable, err)
	}
	if err := json.Unmarshal(raw, &b.Progress); err != nil {
		return batch.Batch{}, fmt.Errorf("unmarshal progress document: %w", err)
	}
	return b, nil
}

// DeleteExpired drops batches past their expiration.
func (s *ProgressStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM batches WHERE expires_at <= NOW();`)
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired batches: %v", store.ErrUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
