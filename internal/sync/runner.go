package sync

import (
	"context"
	"time"

	"github.com/garyellow/tis-sync-go/internal/course"
	"github.com/garyellow/tis-sync-go/internal/logger"
	"github.com/garyellow/tis-sync-go/internal/metrics"
)

// Run modes reported to metrics and the sync log.
const (
	ModeOnline  = "online"
	ModeOffline = "offline"
	ModeDryRun  = "dry_run"
)

// Embedder produces a fixed-length L2-normalized vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DeltaRecorder receives the changed records of a run for archival.
type DeltaRecorder interface {
	Record(ctx context.Context, changed []course.Record, entry SyncLogEntry) error
}

// Summary reports what one sync run did.
type Summary struct {
	Processed     int
	Changed       int
	EmbedFailures int
}

// Runner processes a batch of extracted records: it embeds each record,
// feeds it through the upsert decision engine and writes one sync log row
// per run. A nil store means dry-run: embed and fingerprint, write nothing.
type Runner struct {
	store    Store
	engine   *Engine
	embedder Embedder
	delta    DeltaRecorder
	metrics  *metrics.Metrics
	log      *logger.Logger
	mode     string
}

// NewRunner creates a batch runner. store may be nil for dry-run mode and
// embedder may be nil when no embedding provider is configured.
func NewRunner(store Store, embedder Embedder, log *logger.Logger) *Runner {
	r := &Runner{
		store:    store,
		embedder: embedder,
		log:      log.WithModule("sync"),
		mode:     ModeOnline,
	}
	if store != nil {
		r.engine = NewEngine(store)
	}
	return r
}

// WithMode sets the run mode label used in metrics and logs.
func (r *Runner) WithMode(mode string) *Runner {
	r.mode = mode
	return r
}

// WithMetrics attaches run metrics.
func (r *Runner) WithMetrics(m *metrics.Metrics) *Runner {
	r.metrics = m
	return r
}

// WithDelta attaches a recorder for the changed records of each run.
func (r *Runner) WithDelta(d DeltaRecorder) *Runner {
	r.delta = d
	return r
}

// WithClock overrides the engine's time source. Intended for tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	if r.engine != nil {
		r.engine.WithClock(now)
	}
	return r
}

// Run processes records in document order. Embedding failures are tolerated
// per record; a store failure aborts the run so counts are never silently
// under-reported.
func (r *Runner) Run(ctx context.Context, records []course.Record) (Summary, error) {
	start := time.Now()
	summary := Summary{}

	if len(records) == 0 {
		r.log.Info("No courses to sync")
		if r.store != nil {
			if err := r.store.InsertSyncLog(ctx, SyncLogEntry{Status: "ok", Message: "no courses scraped"}); err != nil {
				return summary, err
			}
		}
		r.observe(summary, start, "ok")
		return summary, nil
	}

	var changed []course.Record
	for i := range records {
		rec := &records[i]
		r.embed(ctx, rec, &summary)

		if r.engine != nil {
			id, isChanged, err := r.engine.Upsert(ctx, rec)
			if err != nil {
				r.observe(summary, start, "error")
				return summary, err
			}
			if isChanged {
				summary.Changed++
				changed = append(changed, *rec)
			}
			rec.ID = id
		}
		summary.Processed++
	}

	entry := SyncLogEntry{Status: "ok", CoursesUpserted: summary.Changed}
	if r.store != nil {
		if err := r.store.InsertSyncLog(ctx, entry); err != nil {
			r.observe(summary, start, "error")
			return summary, err
		}
	}

	if r.delta != nil && len(changed) > 0 {
		if err := r.delta.Record(ctx, changed, entry); err != nil {
			// Archival is best effort, the store already holds the truth.
			r.log.Warn("Failed to record sync delta", "error", err)
		}
	}

	r.log.Info("Sync run complete",
		"mode", r.mode,
		"processed", summary.Processed,
		"changed", summary.Changed,
		"embed_failures", summary.EmbedFailures)
	r.observe(summary, start, "ok")
	return summary, nil
}

// embed attaches the record's embedding vector, tolerating per-record
// failures: the record proceeds to the upsert step with a null vector.
func (r *Runner) embed(ctx context.Context, rec *course.Record, summary *Summary) {
	if r.embedder == nil {
		return
	}

	embedStart := time.Now()
	vec, err := r.embedder.Embed(ctx, rec.EmbeddingText())
	if err != nil {
		summary.EmbedFailures++
		r.log.Warn("Embedding failed, syncing without vector",
			"class_code", rec.ClassCode, "error", err)
		if r.metrics != nil {
			r.metrics.RecordEmbeddingRequest("error", time.Since(embedStart).Seconds())
		}
		return
	}

	rec.Embedding = vec
	rec.EmbeddingDim = len(vec)
	if r.metrics != nil {
		r.metrics.RecordEmbeddingRequest("success", time.Since(embedStart).Seconds())
	}
}

func (r *Runner) observe(summary Summary, start time.Time, status string) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordSyncRun(r.mode, status, summary.Processed, summary.Changed, time.Since(start).Seconds())
}
