package delta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/garyellow/tis-sync-go/internal/course"
	apperrors "github.com/garyellow/tis-sync-go/internal/errors"
	"github.com/garyellow/tis-sync-go/internal/r2client"
	"github.com/garyellow/tis-sync-go/internal/sync"
)

// fakeBucket serves the minimal path-style S3 surface the delta log uses.
type fakeBucket struct {
	mu      gosync.Mutex
	objects map[string][]byte
}

func (b *fakeBucket) snapshotKeys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *fakeBucket) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		key := strings.TrimPrefix(r.URL.Path, "/test-bucket/")
		switch {
		case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
			prefix := r.URL.Query().Get("prefix")
			var keys []string
			for k := range b.objects {
				if strings.HasPrefix(k, prefix) {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			var sb strings.Builder
			sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
			sb.WriteString("<Name>test-bucket</Name><IsTruncated>false</IsTruncated>")
			for _, k := range keys {
				fmt.Fprintf(&sb, "<Contents><Key>%s</Key></Contents>", k)
			}
			sb.WriteString("</ListBucketResult>")
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(sb.String()))

		case r.Method == http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			b.objects[key] = body
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodGet:
			data, ok := b.objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code></Error>`))
				return
			}
			_, _ = w.Write(data)

		case r.Method == http.MethodDelete:
			delete(b.objects, key)
			w.WriteHeader(http.StatusNoContent)
		}
	})
}

func newTestLog(t *testing.T) (*R2Log, *fakeBucket) {
	t.Helper()

	bucket := &fakeBucket{objects: make(map[string][]byte)}
	server := httptest.NewServer(bucket.handler())
	t.Cleanup(server.Close)

	client, err := r2client.New(context.Background(), r2client.Config{
		Endpoint:    server.URL,
		AccessKeyID: "k",
		SecretKey:   "s",
		BucketName:  "test-bucket",
	})
	if err != nil {
		t.Fatalf("r2client.New() error = %v", err)
	}

	log, err := NewR2Log(client, "delta/courses", "instance-a")
	if err != nil {
		t.Fatalf("NewR2Log() error = %v", err)
	}
	return log, bucket
}

// fakeStore collects upserted records.
type fakeStore struct {
	upserts []course.Record
}

func (s *fakeStore) FindCourse(_ context.Context, _, _ string) (*course.Record, error) {
	return nil, apperrors.ErrNotFound
}

func (s *fakeStore) GetCourse(_ context.Context, _ string) (*course.Record, error) {
	return nil, apperrors.ErrNotFound
}

func (s *fakeStore) UpsertCourse(_ context.Context, rec *course.Record) error {
	s.upserts = append(s.upserts, *rec)
	return nil
}

func (s *fakeStore) InsertSyncLog(_ context.Context, _ sync.SyncLogEntry) error {
	return nil
}

func TestNewR2LogValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewR2Log(nil, "delta", "x"); err == nil {
		t.Error("NewR2Log(nil client) should error")
	}

	log, _ := newTestLog(t)
	if _, err := NewR2Log(log.client, "  / ", "x"); err == nil {
		t.Error("NewR2Log(blank prefix) should error")
	}
}

func TestRecordUploadsCompressedEntry(t *testing.T) {
	t.Parallel()

	log, bucket := newTestLog(t)
	log.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	changed := []course.Record{
		{ID: "tis:A101", Source: course.SourceTIS, Title: "禪修入門", ContentHash: "h1"},
	}
	entry := sync.SyncLogEntry{Status: "success", Message: "synced 1 courses", CoursesUpserted: 1}

	if err := log.Record(context.Background(), changed, entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	keys := bucket.snapshotKeys()
	if len(keys) != 1 {
		t.Fatalf("object count = %d, want 1", len(keys))
	}
	if !strings.HasPrefix(keys[0], "delta/courses/instance-a/") || !strings.HasSuffix(keys[0], ".json.zst") {
		t.Errorf("object key = %q", keys[0])
	}

	bucket.mu.Lock()
	raw := bucket.objects[keys[0]]
	bucket.mu.Unlock()

	data, err := decompress(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decompress stored object: %v", err)
	}
	var stored Entry
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("decode stored entry: %v", err)
	}
	if stored.InstanceID != "instance-a" || len(stored.Courses) != 1 || stored.Courses[0].ID != "tis:A101" {
		t.Errorf("stored entry = %+v", stored)
	}
	if stored.SyncLog.CoursesUpserted != 1 {
		t.Errorf("stored sync log = %+v", stored.SyncLog)
	}
}

func TestRecordSkipsEmptyBatch(t *testing.T) {
	t.Parallel()

	log, bucket := newTestLog(t)
	if err := log.Record(context.Background(), nil, sync.SyncLogEntry{Status: "success"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if keys := bucket.snapshotKeys(); len(keys) != 0 {
		t.Errorf("objects = %v, want none", keys)
	}
}

func TestReplayAppliesAndDeletes(t *testing.T) {
	t.Parallel()

	log, bucket := newTestLog(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"tis:first", "tis:second"} {
		log.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		err := log.Record(ctx, []course.Record{{ID: id, Source: course.SourceTIS, Title: id}},
			sync.SyncLogEntry{Status: "success", CoursesUpserted: 1})
		if err != nil {
			t.Fatalf("Record(%s) error = %v", id, err)
		}
	}
	// an undecodable object stays behind
	bucket.mu.Lock()
	bucket.objects["delta/courses/instance-a/0-garbage.json.zst"] = []byte("not zstd")
	bucket.mu.Unlock()

	store := &fakeStore{}
	stats, err := log.Replay(ctx, store)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}

	if stats.ObjectsProcessed != 3 || stats.ObjectsApplied != 2 || stats.ObjectsSkipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.CoursesApplied != 2 {
		t.Errorf("courses applied = %d, want 2", stats.CoursesApplied)
	}
	if len(store.upserts) != 2 || store.upserts[0].ID != "tis:first" || store.upserts[1].ID != "tis:second" {
		t.Errorf("upserts = %+v", store.upserts)
	}

	keys := bucket.snapshotKeys()
	if len(keys) != 1 || !strings.Contains(keys[0], "garbage") {
		t.Errorf("remaining objects = %v", keys)
	}
}

func TestParseKeyTimestamp(t *testing.T) {
	t.Parallel()

	ts, ok := parseKeyTimestamp("delta/courses/a/1712000000000-abc.json.zst")
	if !ok || ts != 1712000000000 {
		t.Errorf("parseKeyTimestamp() = (%d, %v)", ts, ok)
	}
	if _, ok := parseKeyTimestamp("delta/courses/a/garbage.json"); ok {
		t.Error("parseKeyTimestamp(garbage) should fail")
	}
}
