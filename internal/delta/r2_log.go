// Package delta provides an R2-backed append-only log of changed course
// records. Each sync run that changed anything uploads one zstd-compressed
// entry; Replay applies pending entries into a local store and removes them.
package delta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/garyellow/tis-sync-go/internal/course"
	"github.com/garyellow/tis-sync-go/internal/r2client"
	"github.com/garyellow/tis-sync-go/internal/sync"
)

// Entry is one delta log object: the changed records of a single run plus
// the run's audit row.
type Entry struct {
	InstanceID string            `json:"instance_id"`
	CreatedAt  int64             `json:"created_at"`
	SyncLog    sync.SyncLogEntry `json:"sync_log"`
	Courses    []course.Record   `json:"courses"`
}

// ReplayStats summarizes a Replay pass.
type ReplayStats struct {
	ObjectsProcessed int
	ObjectsApplied   int
	ObjectsSkipped   int
	CoursesApplied   int
}

// R2Log writes and replays delta entries stored in R2.
type R2Log struct {
	client     *r2client.Client
	prefix     string
	instanceID string
	now        func() time.Time
}

var _ sync.DeltaRecorder = (*R2Log)(nil)

// NewR2Log creates a delta log under prefix. instanceID distinguishes
// concurrent writers and becomes part of every object key.
func NewR2Log(client *r2client.Client, prefix, instanceID string) (*R2Log, error) {
	if client == nil {
		return nil, errors.New("delta: r2 client is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("delta: prefix must not be empty")
	}
	if instanceID == "" {
		instanceID = "unknown"
	}
	return &R2Log{
		client:     client,
		prefix:     prefix,
		instanceID: instanceID,
		now:        time.Now,
	}, nil
}

// Record uploads the changed records of one run. Runs without changes are
// skipped so the log only grows when the catalog moved.
func (l *R2Log) Record(ctx context.Context, changed []course.Record, entry sync.SyncLogEntry) error {
	if len(changed) == 0 {
		return nil
	}

	payload := Entry{
		InstanceID: l.instanceID,
		CreatedAt:  l.now().UTC().Unix(),
		SyncLog:    entry,
		Courses:    changed,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("delta: marshal entry: %w", err)
	}

	compressed, err := compress(data)
	if err != nil {
		return fmt.Errorf("delta: compress entry: %w", err)
	}

	key := l.objectKey()
	if _, err := l.client.Upload(ctx, key, bytes.NewReader(compressed), "application/zstd"); err != nil {
		return fmt.Errorf("delta: upload entry: %w", err)
	}
	return nil
}

// Replay applies all pending delta entries into store in timestamp order
// and deletes each object after a successful apply. Undecodable or failing
// objects are skipped and left in place.
func (l *R2Log) Replay(ctx context.Context, store sync.Store) (ReplayStats, error) {
	keys, err := l.client.ListObjects(ctx, l.prefix+"/")
	if err != nil {
		return ReplayStats{}, fmt.Errorf("delta: list objects: %w", err)
	}

	sort.Slice(keys, func(i, j int) bool {
		ti, okI := parseKeyTimestamp(keys[i])
		tj, okJ := parseKeyTimestamp(keys[j])
		if okI && okJ && ti != tj {
			return ti < tj
		}
		return keys[i] < keys[j]
	})

	stats := ReplayStats{}
	for _, key := range keys {
		stats.ObjectsProcessed++
		applied, err := l.replayObject(ctx, store, key)
		if err != nil {
			stats.ObjectsSkipped++
			continue
		}
		stats.ObjectsApplied++
		stats.CoursesApplied += applied
	}
	return stats, nil
}

func (l *R2Log) replayObject(ctx context.Context, store sync.Store, key string) (int, error) {
	body, err := l.client.Download(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", key, err)
	}
	defer func() { _ = body.Close() }()

	data, err := decompress(body)
	if err != nil {
		return 0, fmt.Errorf("decompress %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}

	for i := range entry.Courses {
		if err := store.UpsertCourse(ctx, &entry.Courses[i]); err != nil {
			return 0, fmt.Errorf("apply %s: %w", key, err)
		}
	}

	if err := l.client.DeleteObject(ctx, key); err != nil {
		return 0, fmt.Errorf("delete %s: %w", key, err)
	}
	return len(entry.Courses), nil
}

func (l *R2Log) objectKey() string {
	return fmt.Sprintf("%s/%s/%d-%s.json.zst", l.prefix, l.instanceID, l.now().UnixNano(), uuid.NewString())
}

// parseKeyTimestamp extracts the nanosecond timestamp prefix of an object
// basename, e.g. "1712000000000-uuid.json.zst".
func parseKeyTimestamp(key string) (int64, bool) {
	base := path.Base(key)
	idx := strings.IndexByte(base, '-')
	if idx <= 0 {
		return 0, false
	}
	ts, err := strconv.ParseInt(base[:idx], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	encoder, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, err
	}
	if _, err := encoder.Write(data); err != nil {
		_ = encoder.Close()
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(r io.Reader) ([]byte, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return io.ReadAll(decoder)
}
