package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/garyellow/tis-sync-go/internal/course"
	apperrors "github.com/garyellow/tis-sync-go/internal/errors"
	"github.com/garyellow/tis-sync-go/internal/sync"
)

// Store implements the course row store on SQLite. It satisfies both the
// sync pipeline's store interface and the similarity matcher, so offline
// deployments run the full pipeline against a single local file.
type Store struct {
	db *DB
}

var _ sync.Store = (*Store)(nil)

// NewStore creates a course store over db.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

const courseColumns = `id, source, status, campus, system, category, class_code, title,
	start_date, days, description, audience, level, instructor, url,
	content_hash, embedding, embedding_dim, created_at, updated_at`

// FindCourse looks up a scraped course by its (source, class_code) pair.
func (s *Store) FindCourse(ctx context.Context, source, classCode string) (*course.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE source = ? AND class_code = ?`, courseColumns)
	return s.scanOne(s.db.conn.QueryRowContext(ctx, query, source, classCode))
}

// GetCourse looks up a course by id.
func (s *Store) GetCourse(ctx context.Context, id string) (*course.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = ?`, courseColumns)
	return s.scanOne(s.db.conn.QueryRowContext(ctx, query, id))
}

// UpsertCourse writes the full record, resolving conflicts on id.
func (s *Store) UpsertCourse(ctx context.Context, rec *course.Record) error {
	var embedding any
	var embeddingDim any
	if rec.Embedding != nil {
		encoded, err := json.Marshal(rec.Embedding)
		if err != nil {
			return apperrors.NewStoreError("upsert", 0, fmt.Errorf("encode embedding: %w", err))
		}
		embedding = string(encoded)
		embeddingDim = rec.EmbeddingDim
	}

	query := `
	INSERT INTO courses (` + courseColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		source = excluded.source,
		status = excluded.status,
		campus = excluded.campus,
		system = excluded.system,
		category = excluded.category,
		class_code = excluded.class_code,
		title = excluded.title,
		start_date = excluded.start_date,
		days = excluded.days,
		description = excluded.description,
		audience = excluded.audience,
		level = excluded.level,
		instructor = excluded.instructor,
		url = excluded.url,
		content_hash = excluded.content_hash,
		embedding = excluded.embedding,
		embedding_dim = excluded.embedding_dim,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at`

	_, err := s.db.conn.ExecContext(ctx, query,
		rec.ID, rec.Source, rec.Status,
		nullString(rec.Campus), nullString(rec.System), nullString(rec.Category),
		nullString(rec.ClassCode), rec.Title, nullString(rec.StartDate),
		nullString(rec.Days), nullString(rec.Description), nullString(rec.Audience),
		nullString(rec.Level), nullString(rec.Instructor), nullString(rec.URL),
		rec.ContentHash, embedding, embeddingDim, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return apperrors.NewStoreError("upsert", 0, err)
	}
	return nil
}

// InsertSyncLog appends one audit row for a sync run.
func (s *Store) InsertSyncLog(ctx context.Context, entry sync.SyncLogEntry) error {
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO sync_log (status, message, courses_upserted) VALUES (?, ?, ?)`,
		entry.Status, nullString(entry.Message), entry.CoursesUpserted)
	if err != nil {
		return apperrors.NewStoreError("log", 0, err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.conn.PingContext(ctx)
}

// CoursesInWindow returns courses whose start_date falls inside
// [startFrom, startTo], ordered by start_date.
func (s *Store) CoursesInWindow(ctx context.Context, startFrom, startTo string) ([]course.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses
		WHERE start_date IS NOT NULL AND start_date >= ? AND start_date <= ?
		ORDER BY start_date`, courseColumns)

	rows, err := s.db.conn.QueryContext(ctx, query, startFrom, startTo)
	if err != nil {
		return nil, apperrors.NewStoreError("select", 0, err)
	}
	defer func() { _ = rows.Close() }()

	var records []course.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("select", 0, err)
	}
	return records, nil
}

// MatchCourses performs a brute-force cosine search over stored embeddings
// inside the date window. Vectors are stored L2-normalized, so the dot
// product is the cosine similarity. Rows without an embedding are skipped.
func (s *Store) MatchCourses(ctx context.Context, queryEmbedding []float32, startFrom, startTo string, matchCount int) ([]course.Match, error) {
	records, err := s.CoursesInWindow(ctx, startFrom, startTo)
	if err != nil {
		return nil, err
	}

	matches := make([]course.Match, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) == 0 || len(rec.Embedding) != len(queryEmbedding) {
			continue
		}
		var dot float64
		for i, v := range rec.Embedding {
			dot += float64(v) * float64(queryEmbedding[i])
		}
		matches = append(matches, course.Match{Record: rec, Similarity: dot})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > matchCount {
		matches = matches[:matchCount]
	}
	return matches, nil
}

func (s *Store) scanOne(row *sql.Row) (*course.Record, error) {
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*course.Record, error) {
	var rec course.Record
	var campus, system, category, classCode, startDate, days sql.NullString
	var description, audience, level, instructor, url, embedding sql.NullString
	var embeddingDim sql.NullInt64

	err := row.Scan(&rec.ID, &rec.Source, &rec.Status, &campus, &system, &category,
		&classCode, &rec.Title, &startDate, &days, &description, &audience,
		&level, &instructor, &url, &rec.ContentHash, &embedding, &embeddingDim,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, apperrors.NewStoreError("scan", 0, err)
	}

	rec.Campus = campus.String
	rec.System = system.String
	rec.Category = category.String
	rec.ClassCode = classCode.String
	rec.StartDate = startDate.String
	rec.Days = days.String
	rec.Description = description.String
	rec.Audience = audience.String
	rec.Level = level.String
	rec.Instructor = instructor.String
	rec.URL = url.String
	rec.EmbeddingDim = int(embeddingDim.Int64)

	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &rec.Embedding); err != nil {
			return nil, apperrors.NewStoreError("scan", 0, fmt.Errorf("decode embedding: %w", err))
		}
	}
	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
