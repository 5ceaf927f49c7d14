// Package scrape implements the worker that resolves queued card page
// URIs to cached images and reconciles batch progress.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
	"github.com/JakeFAU/cardimg-scraper/internal/metrics"
	"github.com/JakeFAU/cardimg-scraper/internal/store"
)

// SelectorRule configures scraping for one approved domain.
type SelectorRule struct {
	// Selector is the img class identifying the card image on the page.
	Selector string `mapstructure:"selector"`
	// Headless allows one headless refetch when the static HTML yields
	// zero selector matches.
	Headless bool `mapstructure:"headless"`
}

// Config controls Worker behavior.
type Config struct {
	// ScraperVersion is stamped into stored object metadata.
	ScraperVersion string
	// Delay is the considerate-crawling pause before each network call.
	Delay time.Duration
	// Selectors maps normalized domain to its scraping rule.
	Selectors map[string]SelectorRule
}

// Worker consumes work-item deliveries and executes the scrape pipeline.
// Processing is idempotent: content already cached at the derived
// location is never re-fetched.
type Worker struct {
	queue    batch.WorkQueue
	progress store.ProgressStore
	content  batch.ContentStore
	fetcher  batch.Fetcher
	headless batch.Fetcher
	clock    batch.Clock
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker. headless may be nil when no domain needs it.
func New(
	queue batch.WorkQueue,
	progress store.ProgressStore,
	content batch.ContentStore,
	fetcher batch.Fetcher,
	headless batch.Fetcher,
	clock batch.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Delay == 0 {
		cfg.Delay = 100 * time.Millisecond
	}
	return &Worker{
		queue:    queue,
		progress: progress,
		content:  content,
		fetcher:  fetcher,
		headless: headless,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, consuming queue deliveries until the context finishes.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.queue.Receive(ctx, w.ProcessDelivery); err != nil && ctx.Err() == nil {
		return fmt.Errorf("receive work items: %w", err)
	}
	return nil
}

// ProcessDelivery handles one delivered batch of work items, in order.
// The first item fault aborts the remainder of the delivery, but every
// item that has not reached SUCCESS is first written as FAILURE so
// nothing is left permanently PENDING. The returned error nacks the
// delivery; redelivery re-runs the same idempotent pipeline.
func (w *Worker) ProcessDelivery(ctx context.Context, items []batch.WorkItem) error {
	w.logger.Info("handling delivery", zap.Int("items", len(items)))

	// Statuses start as FAILURE and flip to SUCCESS one item at a time,
	// so the abort sweep knows exactly what still needs a write.
	statuses := make(map[string]map[string]batch.ItemStatus)
	for _, item := range items {
		uri := item.Item.PageURI()
		if statuses[item.BatchID] == nil {
			statuses[item.BatchID] = make(map[string]batch.ItemStatus)
		}
		statuses[item.BatchID][uri] = batch.StatusFailure
	}

	for _, item := range items {
		uri := item.Item.PageURI()
		if err := w.processItem(ctx, item); err != nil {
			w.logger.Error("item processing failed",
				zap.String("batch_id", item.BatchID),
				zap.String("uri", uri),
				zap.Error(err),
			)
			metrics.ObserveItem(string(batch.StatusFailure))
			w.sweepFailures(ctx, statuses)
			return fmt.Errorf("process item %q: %w", uri, err)
		}
		if err := w.progress.SetItemStatus(ctx, item.BatchID, uri, batch.StatusSuccess); err != nil {
			w.logger.Error("success status write failed",
				zap.String("batch_id", item.BatchID),
				zap.String("uri", uri),
				zap.Error(err),
			)
			w.sweepFailures(ctx, statuses)
			return fmt.Errorf("record success for %q: %w", uri, err)
		}
		statuses[item.BatchID][uri] = batch.StatusSuccess
		metrics.ObserveItem(string(batch.StatusSuccess))
	}
	return nil
}

// processItem runs the scrape pipeline for one work item.
func (w *Worker) processItem(ctx context.Context, item batch.WorkItem) error {
	start := w.clock.Now()
	page, err := batch.ParsePageURL(item.Item.PageURI())
	if err != nil {
		return err
	}
	rule, ok := w.cfg.Selectors[page.Host]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSelector, page.Host)
	}

	exists, err := w.content.Exists(ctx, page.StoragePrefix())
	if err != nil {
		return fmt.Errorf("check content store: %w", err)
	}
	if exists {
		w.logger.Info("object already cached",
			zap.String("batch_id", item.BatchID),
			zap.String("prefix", page.StoragePrefix()),
		)
		metrics.ObserveCacheHit()
		return nil
	}

	imgURL, err := w.locateImage(ctx, page, rule)
	if err != nil {
		return err
	}
	ext, err := imageExtension(imgURL)
	if err != nil {
		return err
	}

	w.pause(ctx)
	imgResp, err := w.fetch(ctx, batch.FetchRequest{URL: imgURL})
	if err != nil {
		return fmt.Errorf("fetch image: %w", err)
	}

	meta := batch.ObjectMetadata{
		ScraperVersion: w.cfg.ScraperVersion,
		FetchedAt:      w.clock.Now(),
		SourceURI:      imgURL,
	}
	key := page.ImageKey(ext)
	if err := w.content.Put(ctx, key, contentTypeForExtension(ext), imgResp.Body, meta); err != nil {
		return fmt.Errorf("store image: %w", err)
	}

	metrics.ObserveScrape(page.Host, w.clock.Now().Sub(start))
	metrics.AddImageBytes(len(imgResp.Body))
	w.logger.Info("image cached",
		zap.String("batch_id", item.BatchID),
		zap.String("key", key),
		zap.Int("bytes", len(imgResp.Body)),
	)
	return nil
}

// locateImage fetches the page and extracts the card image URL. When the
// static HTML yields zero matches and the domain allows it, the page is
// refetched once with the headless browser before giving up.
func (w *Worker) locateImage(ctx context.Context, page batch.PageURL, rule SelectorRule) (string, error) {
	w.pause(ctx)
	resp, err := w.fetch(ctx, batch.FetchRequest{URL: page.Raw})
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}

	src, err := extractImageSrc(resp.Body, rule.Selector)
	if errors.Is(err, ErrExtractionFailed) && rule.Headless && w.headless != nil {
		w.logger.Info("retrying with headless fetch", zap.String("host", page.Host))
		w.pause(ctx)
		resp, err = w.headless.Fetch(ctx, batch.FetchRequest{URL: page.Raw, Headless: true})
		if err != nil {
			return "", fmt.Errorf("%w: headless fetch: %v", ErrFetchFailed, err)
		}
		src, err = extractImageSrc(resp.Body, rule.Selector)
	}
	if err != nil {
		return "", err
	}

	cleaned, err := cleanImageURI(src)
	if err != nil {
		return "", err
	}
	return resolveImageURL(page.Raw, cleaned)
}

func (w *Worker) fetch(ctx context.Context, req batch.FetchRequest) (batch.FetchResponse, error) {
	resp, err := w.fetcher.Fetch(ctx, req)
	if err != nil {
		return batch.FetchResponse{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return batch.FetchResponse{}, fmt.Errorf("%w: status code was %d", ErrFetchFailed, resp.StatusCode)
	}
	return resp, nil
}

// sweepFailures writes FAILURE for every item of the delivery that has
// not reached SUCCESS. Best-effort: a failed write is logged and skipped,
// redelivery covers it.
func (w *Worker) sweepFailures(ctx context.Context, statuses map[string]map[string]batch.ItemStatus) {
	for batchID, byURI := range statuses {
		for uri, status := range byURI {
			if status == batch.StatusSuccess {
				continue
			}
			if err := w.progress.SetItemStatus(ctx, batchID, uri, batch.StatusFailure); err != nil {
				w.logger.Warn("failure status write failed",
					zap.String("batch_id", batchID),
					zap.String("uri", uri),
					zap.Error(err),
				)
			}
		}
	}
}

func (w *Worker) pause(ctx context.Context) {
	if w.cfg.Delay <= 0 {
		return
	}
	t := time.NewTimer(w.cfg.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
