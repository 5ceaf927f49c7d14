// Package main wires together the card image scraper service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/cardimg-scraper/internal/api"
	"github.com/JakeFAU/cardimg-scraper/internal/batch"
	"github.com/JakeFAU/cardimg-scraper/internal/clock/system"
	"github.com/JakeFAU/cardimg-scraper/internal/config"
	collyfetcher "github.com/JakeFAU/cardimg-scraper/internal/fetch/colly"
	headlessfetcher "github.com/JakeFAU/cardimg-scraper/internal/fetch/headless"
	"github.com/JakeFAU/cardimg-scraper/internal/id/uuid"
	"github.com/JakeFAU/cardimg-scraper/internal/ingest"
	"github.com/JakeFAU/cardimg-scraper/internal/logging"
	"github.com/JakeFAU/cardimg-scraper/internal/metrics"
	queueMemory "github.com/JakeFAU/cardimg-scraper/internal/queue/memory"
	queuePubsub "github.com/JakeFAU/cardimg-scraper/internal/queue/pubsub"
	"github.com/JakeFAU/cardimg-scraper/internal/scrape"
	"github.com/JakeFAU/cardimg-scraper/internal/storage/gcs"
	"github.com/JakeFAU/cardimg-scraper/internal/storage/local"
	storageMemory "github.com/JakeFAU/cardimg-scraper/internal/storage/memory"
	"github.com/JakeFAU/cardimg-scraper/internal/store"
	storeMemory "github.com/JakeFAU/cardimg-scraper/internal/store/memory"
	"github.com/JakeFAU/cardimg-scraper/internal/store/postgres"
	"github.com/JakeFAU/cardimg-scraper/internal/validate"
)

const janitorInterval = time.Hour

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.New()

	progress, closeProgress, err := buildProgressStore(ctx, cfg, clock)
	if err != nil {
		logger.Fatal("progress store init failed", zap.Error(err))
	}
	defer closeProgress()

	content, err := buildContentStore(ctx, cfg)
	if err != nil {
		logger.Fatal("content store init failed", zap.Error(err))
	}

	queue, closeQueue, err := buildQueue(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("work queue init failed", zap.Error(err))
	}
	defer closeQueue()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Scraper.UserAgent,
		RespectRobots: cfg.Scraper.RespectRobots,
		Timeout:       cfg.FetchTimeout(),
	})
	var headless batch.Fetcher
	if cfg.Headless.Enabled {
		headlessFetcher, err := headlessfetcher.New(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Scraper.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			headless = headlessFetcher
			defer headlessFetcher.Close()
		}
	}

	// Selector lookups happen against normalized hosts, so the config
	// keys are normalized once here.
	selectors := make(map[string]scrape.SelectorRule, len(cfg.Domains))
	for domain, rule := range cfg.Domains {
		selectors[batch.NormalizeHost(domain)] = rule
	}

	workerCfg := scrape.Config{
		ScraperVersion: cfg.Scraper.Version,
		Delay:          cfg.Delay(),
		Selectors:      selectors,
	}
	for i := 0; i < cfg.Scraper.Concurrency; i++ {
		w := scrape.New(
			queue,
			progress,
			content,
			fetcher,
			headless,
			clock,
			workerCfg,
			logging.Component(logger, "worker").With(zap.Int("index", i)),
		)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("worker stopped", zap.Error(err))
			}
		}()
	}

	go runJanitor(ctx, progress, logging.Component(logger, "janitor"))

	validator := validate.New(cfg.ApprovedDomains())
	ingester := ingest.New(validator, progress, queue, idGen, clock, cfg.TTL(), logging.Component(logger, "ingest"))
	apiServer := api.NewServer(ingester, progress, cfg, logging.Component(logger, "api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}

func buildProgressStore(ctx context.Context, cfg config.Config, clock batch.Clock) (store.ProgressStore, func(), error) {
	if cfg.DB.DSN == "" {
		return storeMemory.NewProgressStore(clock), func() {}, nil
	}
	pg, err := postgres.NewProgressStore(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pg, pg.Close, nil
}

func buildContentStore(ctx context.Context, cfg config.Config) (batch.ContentStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
	case "local":
		return local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
	default:
		return storageMemory.NewContentStore(), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config, logger *zap.Logger) (batch.WorkQueue, func(), error) {
	if cfg.Queue.Provider == "pubsub" {
		q, err := queuePubsub.New(ctx, queuePubsub.Config{
			ProjectID:      cfg.Queue.ProjectID,
			TopicID:        cfg.Queue.TopicID,
			SubscriptionID: cfg.Queue.SubscriptionID,
		}, logging.Component(logger, "pubsub"))
		if err != nil {
			return nil, nil, err
		}
		return q, func() {
			if err := q.Close(); err != nil {
				logger.Warn("pubsub close failed", zap.Error(err))
			}
		}, nil
	}
	q := queueMemory.NewQueue(cfg.Queue.Depth, cfg.Queue.MaxDelivery)
	return q, q.Close, nil
}

// runJanitor periodically deletes expired batch rows. Reads already
// filter expired batches; this just keeps the table from growing.
func runJanitor(ctx context.Context, progress store.ProgressStore, logger *zap.Logger) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := progress.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("expired batch cleanup failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				logger.Info("expired batches deleted", zap.Int64("count", deleted))
			}
		}
	}
}
