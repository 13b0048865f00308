package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}

	// Verify all metric fields are initialized
	if m.ScraperRequestsTotal == nil {
		t.Error("ScraperRequestsTotal is nil")
	}
	if m.ScraperDurationSeconds == nil {
		t.Error("ScraperDurationSeconds is nil")
	}
	if m.SyncRunsTotal == nil {
		t.Error("SyncRunsTotal is nil")
	}
	if m.SyncCoursesProcessed == nil {
		t.Error("SyncCoursesProcessed is nil")
	}
	if m.SyncCoursesChanged == nil {
		t.Error("SyncCoursesChanged is nil")
	}
	if m.SyncDurationSeconds == nil {
		t.Error("SyncDurationSeconds is nil")
	}
	if m.EmbeddingRequestsTotal == nil {
		t.Error("EmbeddingRequestsTotal is nil")
	}
	if m.EmbeddingDurationSeconds == nil {
		t.Error("EmbeddingDurationSeconds is nil")
	}
	if m.StoreRequestsTotal == nil {
		t.Error("StoreRequestsTotal is nil")
	}
	if m.QueryRequestsTotal == nil {
		t.Error("QueryRequestsTotal is nil")
	}
	if m.QueryDurationSeconds == nil {
		t.Error("QueryDurationSeconds is nil")
	}
	if m.HTTPErrorsTotal == nil {
		t.Error("HTTPErrorsTotal is nil")
	}
}

func TestRecordHelpers(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordScraperRequest("院本部", "success", 1.5)
	m.RecordScraperRequest("台中所", "error", 30.0)
	m.RecordSyncRun("online", "ok", 42, 3, 12.5)
	m.RecordSyncRun("dry_run", "ok", 10, 0, 2.0)
	m.RecordEmbeddingRequest("success", 0.4)
	m.RecordEmbeddingRequest("error", 5.0)
	m.RecordStoreRequest("upsert", "success")
	m.RecordStoreRequest("match", "error")
	m.RecordQueryRequest("similarity", "success", 0.2)
	m.RecordHTTPError("validation", "similarity")

	// Registry must gather without duplicate registration errors
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Error("Gather() returned no metric families")
	}
}
