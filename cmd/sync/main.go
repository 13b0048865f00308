// Package main provides the course sync CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/garyellow/tis-sync-go/internal/config"
	"github.com/garyellow/tis-sync-go/internal/course"
	"github.com/garyellow/tis-sync-go/internal/delta"
	"github.com/garyellow/tis-sync-go/internal/genai"
	"github.com/garyellow/tis-sync-go/internal/logger"
	"github.com/garyellow/tis-sync-go/internal/metrics"
	"github.com/garyellow/tis-sync-go/internal/r2client"
	"github.com/garyellow/tis-sync-go/internal/scraper"
	"github.com/garyellow/tis-sync-go/internal/scraper/tis"
	"github.com/garyellow/tis-sync-go/internal/sentry"
	"github.com/garyellow/tis-sync-go/internal/storage"
	"github.com/garyellow/tis-sync-go/internal/supabase"
	"github.com/garyellow/tis-sync-go/internal/sync"
)

func main() {
	offlineDir := flag.String("offline-dir", "", "Parse saved listing pages from this directory instead of fetching")
	offlineCampus := flag.String("offline-campus", config.CampusUnspecified, "Campus label for offline pages (inferred when unspecified)")
	dryRun := flag.Bool("dry-run", false, "Extract and fingerprint without writing to any store")
	replay := flag.Bool("replay", false, "Apply pending delta log entries into the store instead of syncing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Starting TIS course sync")

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
	}); err != nil {
		log.WithError(err).Warn("Failed to initialize error tracking")
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	if *replay {
		if err := runReplay(ctx, cfg, log, m); err != nil {
			sentry.CaptureException(err)
			log.WithError(err).Error("Replay failed")
			sentry.Flush(2 * time.Second)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, log, m, *offlineDir, *offlineCampus, *dryRun); err != nil {
		sentry.CaptureException(err)
		log.WithError(err).Error("Sync failed")
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics, offlineDir, offlineCampus string, dryRun bool) error {
	records, mode, err := collect(ctx, cfg, log, m, offlineDir, offlineCampus)
	if err != nil {
		return err
	}
	log.WithField("count", len(records)).WithField("mode", mode).Info("Courses extracted")

	store, cleanup, err := selectStore(cfg, log, m, dryRun)
	if err != nil {
		return err
	}
	defer cleanup()
	if dryRun {
		mode = sync.ModeDryRun
	}

	var embedder sync.Embedder
	embeddingClient := genai.NewEmbeddingClient(cfg.GeminiAPIKey)
	if embeddingClient.IsConfigured() {
		embedder = embeddingClient
	} else {
		log.Info("Gemini API key not configured, syncing without embeddings")
	}

	runner := sync.NewRunner(store, embedder, log).
		WithMode(mode).
		WithMetrics(m)

	if cfg.R2Enabled && !dryRun {
		recorder, err := newDeltaRecorder(ctx, cfg)
		if err != nil {
			log.WithError(err).Warn("Failed to set up delta log, continuing without it")
		} else {
			runner = runner.WithDelta(recorder)
		}
	}

	summary, err := runner.Run(ctx, records)
	if err != nil {
		return err
	}

	log.WithFields(map[string]any{
		"processed":      summary.Processed,
		"changed":        summary.Changed,
		"embed_failures": summary.EmbedFailures,
	}).Info("Sync finished")
	return nil
}

// collect gathers course records either from saved pages or from the live
// TIS listing pages.
func collect(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics, offlineDir, offlineCampus string) ([]course.Record, string, error) {
	if offlineDir != "" {
		records, err := tis.LoadDir(offlineDir, offlineCampus, log)
		if err != nil {
			return nil, "", fmt.Errorf("load offline pages: %w", err)
		}
		return records, sync.ModeOffline, nil
	}

	client := scraper.NewClient(cfg.ScraperTimeout, cfg.ScraperRatePerMin, cfg.ScraperMaxRetries)
	s := tis.NewScraper(client, cfg.TISPages, log).WithMetrics(m)
	records, err := s.ScrapeAll(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("scrape listing pages: %w", err)
	}
	return records, sync.ModeOnline, nil
}

// selectStore picks the sync target: nil for dry runs, the hosted row store
// when credentials exist, otherwise the local SQLite file.
func selectStore(cfg *config.Config, log *logger.Logger, m *metrics.Metrics, dryRun bool) (sync.Store, func(), error) {
	noop := func() {}

	if dryRun {
		log.Info("Dry run, nothing will be written")
		return nil, noop, nil
	}

	if cfg.HasStore() {
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return nil, noop, fmt.Errorf("create row store client: %w", err)
		}
		log.Info("Syncing to hosted row store")
		return client.WithMetrics(m), noop, nil
	}

	db, err := storage.New(cfg.SQLitePath())
	if err != nil {
		return nil, noop, fmt.Errorf("open local store: %w", err)
	}
	log.WithField("path", db.Path()).Info("No store credentials, syncing to local SQLite")
	return storage.NewStore(db), func() { _ = db.Close() }, nil
}

// runReplay folds pending delta log entries into the store. Useful after
// a store outage when sync runs kept recording to R2.
func runReplay(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) error {
	if !cfg.R2Enabled {
		return fmt.Errorf("delta log is not configured")
	}

	store, cleanup, err := selectStore(cfg, log, m, false)
	if err != nil {
		return err
	}
	defer cleanup()

	deltaLog, err := newDeltaRecorder(ctx, cfg)
	if err != nil {
		return err
	}

	stats, err := deltaLog.Replay(ctx, store)
	if err != nil {
		return err
	}
	log.WithFields(map[string]any{
		"objects_processed": stats.ObjectsProcessed,
		"objects_applied":   stats.ObjectsApplied,
		"objects_skipped":   stats.ObjectsSkipped,
		"courses_applied":   stats.CoursesApplied,
	}).Info("Delta replay finished")
	return nil
}

func newDeltaRecorder(ctx context.Context, cfg *config.Config) (*delta.R2Log, error) {
	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    cfg.R2Endpoint,
		AccessKeyID: cfg.R2AccessKeyID,
		SecretKey:   cfg.R2SecretAccessKey,
		BucketName:  cfg.R2BucketName,
	})
	if err != nil {
		return nil, err
	}

	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	return delta.NewR2Log(client, cfg.R2DeltaPrefix, instanceID)
}
