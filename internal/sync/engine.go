// Package sync implements the idempotent course synchronization pipeline:
// stable identity assignment, fingerprint-gated upsert decisions and the
// batch runner that ties extraction, embedding and the row store together.
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/garyellow/tis-sync-go/internal/course"
	apperrors "github.com/garyellow/tis-sync-go/internal/errors"
)

// timestampFormat is the ISO 8601 UTC layout persisted on records.
const timestampFormat = "2006-01-02T15:04:05"

// SyncLogEntry is one row of the sync audit log, written once per run.
type SyncLogEntry struct {
	Status          string `json:"status"`
	Message         string `json:"message,omitempty"`
	CoursesUpserted int    `json:"courses_upserted"`
}

// Store is the row store consumed by the sync pipeline. Lookups return
// apperrors.ErrNotFound (possibly wrapped) when no row matches.
type Store interface {
	// FindCourse looks up a scraped course by its (source, class_code) pair.
	FindCourse(ctx context.Context, source, classCode string) (*course.Record, error)
	// GetCourse looks up a course by id.
	GetCourse(ctx context.Context, id string) (*course.Record, error)
	// UpsertCourse writes the full record, keyed on id.
	UpsertCourse(ctx context.Context, rec *course.Record) error
	// InsertSyncLog appends one audit row.
	InsertSyncLog(ctx context.Context, entry SyncLogEntry) error
}

// Engine assigns identities and decides create / update / no-op per record.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates an upsert decision engine over store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// WithClock overrides the engine's time source. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Upsert decides and performs the write for one record. It returns the
// resolved id and whether a write happened. An unchanged fingerprint is the
// no-op path: no write is issued and changed is false. On a changing write
// the stored created_at is carried forward and updated_at is set to now.
func (e *Engine) Upsert(ctx context.Context, rec *course.Record) (string, bool, error) {
	if rec.ID == "" {
		if rec.Source == course.SourceTIS && rec.ClassCode != "" {
			rec.ID = course.DeriveID(rec.Source, rec.ClassCode)
		} else {
			rec.ID = course.NewManualID()
		}
	}

	hash, err := rec.Fingerprint()
	if err != nil {
		return "", false, err
	}
	rec.ContentHash = hash

	existing, err := e.lookup(ctx, rec)
	if err != nil {
		return "", false, err
	}

	if existing != nil && existing.ContentHash == rec.ContentHash {
		return existing.ID, false, nil
	}

	now := e.now().UTC().Format(timestampFormat)
	if existing != nil {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	if err := e.store.UpsertCourse(ctx, rec); err != nil {
		return "", false, err
	}
	return rec.ID, true, nil
}

// lookup fetches the stored counterpart of rec: scraped records resolve by
// (source, class_code), everything else by id. Absence is not an error.
func (e *Engine) lookup(ctx context.Context, rec *course.Record) (*course.Record, error) {
	var existing *course.Record
	var err error

	if rec.Source == course.SourceTIS && rec.ClassCode != "" {
		existing, err = e.store.FindCourse(ctx, rec.Source, rec.ClassCode)
	} else {
		existing, err = e.store.GetCourse(ctx, rec.ID)
	}

	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return existing, nil
}
