// Package ingest implements batch ingestion: validate the submitted
// rows, create the progress document, then enqueue the work items.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
	"github.com/JakeFAU/cardimg-scraper/internal/store"
	"github.com/JakeFAU/cardimg-scraper/internal/validate"
)

// Service wires the ingestion dependencies.
type Service struct {
	validator *validate.Validator
	progress  store.ProgressStore
	queue     batch.WorkQueue
	idGen     batch.IDGenerator
	clock     batch.Clock
	ttl       time.Duration
	logger    *zap.Logger
}

// New constructs a Service. ttl bounds how long a batch's progress
// document stays readable.
func New(
	validator *validate.Validator,
	progress store.ProgressStore,
	queue batch.WorkQueue,
	idGen batch.IDGenerator,
	clock batch.Clock,
	ttl time.Duration,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		validator: validator,
		progress:  progress,
		queue:     queue,
		idGen:     idGen,
		clock:     clock,
		ttl:       ttl,
		logger:    logger,
	}
}

// Ingest validates the raw CSV body and, when it passes, creates the
// batch and enqueues one work item per accepted row. A non-empty report
// means the batch was rejected with no side effects. The progress
// document is always created before anything is enqueued, so a worker
// can never race ahead of the document it needs to update.
func (s *Service) Ingest(ctx context.Context, rawBody string) (string, validate.Report, error) {
	rows, report := s.validator.Validate(rawBody)
	if !report.Empty() {
		return "", report, nil
	}

	batchID, err := s.idGen.NewID()
	if err != nil {
		return "", validate.Report{}, fmt.Errorf("generate batch id: %w", err)
	}

	itemKeys := make([]string, 0, len(rows))
	for _, row := range rows {
		itemKeys = append(itemKeys, row.PageURI())
	}
	expiresAt := s.clock.Now().Add(s.ttl)
	if err := s.progress.CreateBatch(ctx, batchID, itemKeys, expiresAt); err != nil {
		return "", validate.Report{}, fmt.Errorf("create batch: %w", err)
	}

	for _, row := range rows {
		item := batch.WorkItem{BatchID: batchID, Item: row}
		if err := s.queue.Publish(ctx, item); err != nil {
			return "", validate.Report{}, fmt.Errorf("enqueue work item: %w", err)
		}
	}

	s.logger.Info("batch accepted",
		zap.String("batch_id", batchID),
		zap.Int("items", len(rows)),
		zap.Time("expires_at", expiresAt),
	)
	return batchID, validate.Report{}, nil
}
