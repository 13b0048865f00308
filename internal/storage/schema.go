package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
// Note: WAL mode is configured in db.go before the schema runs.
func InitSchema(db *sql.DB) error {
	if err := createCoursesTable(db); err != nil {
		return err
	}
	return createSyncLogTable(db)
}

func createCoursesTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		campus TEXT,
		system TEXT,
		category TEXT,
		class_code TEXT,
		title TEXT NOT NULL,
		start_date TEXT,
		days TEXT,
		description TEXT,
		audience TEXT,
		level TEXT,
		instructor TEXT,
		url TEXT,
		content_hash TEXT NOT NULL,
		embedding TEXT,
		embedding_dim INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_courses_source_class_code ON courses(source, class_code);
	CREATE INDEX IF NOT EXISTS idx_courses_start_date ON courses(start_date);
	CREATE INDEX IF NOT EXISTS idx_courses_status ON courses(status);
	`

	if _, err := db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("failed to create courses table: %w", err)
	}

	return nil
}

func createSyncLogTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS sync_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		status TEXT NOT NULL,
		message TEXT,
		courses_upserted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%S', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_sync_log_created_at ON sync_log(created_at);
	`

	if _, err := db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("failed to create sync_log table: %w", err)
	}

	return nil
}
