// Package course defines the canonical course record and its content
// fingerprint. The fingerprint decides whether an incoming record represents
// a real change, so repeated sync runs over unchanged pages stay write-free.
package course

import (
	"strings"

	"github.com/google/uuid"
)

// Record sources.
const (
	SourceTIS    = "tis"
	SourceManual = "manual"
)

// Record statuses.
const (
	StatusScheduled = "scheduled"
	StatusPlanning  = "planning"
	StatusCompleted = "completed"
)

// Record is a canonical course record. Optional fields use the empty string
// for "absent"; store adapters map those to NULL where the column is
// nullable. Timestamps are ISO 8601 UTC strings without a zone suffix.
type Record struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	Campus       string    `json:"campus"`
	System       string    `json:"system,omitempty"`
	Category     string    `json:"category,omitempty"`
	ClassCode    string    `json:"class_code"`
	Title        string    `json:"title"`
	StartDate    string    `json:"start_date,omitempty"`
	Days         string    `json:"days,omitempty"`
	Description  string    `json:"description,omitempty"`
	Audience     string    `json:"audience,omitempty"`
	Level        string    `json:"level,omitempty"`
	Instructor   string    `json:"instructor,omitempty"`
	URL          string    `json:"url"`
	ContentHash  string    `json:"content_hash,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	EmbeddingDim int       `json:"embedding_dim,omitempty"`
	CreatedAt    string    `json:"created_at,omitempty"`
	UpdatedAt    string    `json:"updated_at,omitempty"`
}

// DeriveID returns the deterministic identity for a scraped record.
// Repeated scrapes of the same catalog code always resolve to the same id.
func DeriveID(source, classCode string) string {
	return source + ":" + classCode
}

// NewManualID synthesizes an opaque identity for a manually entered record.
// It is generated once at creation time and never recomputed.
func NewManualID() string {
	return SourceManual + ":" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// EmbeddingText returns the text fed to the embedding model: title and
// description joined by a space, falling back to the id when both are empty.
func (r *Record) EmbeddingText() string {
	text := strings.TrimSpace(r.Title + " " + r.Description)
	if text == "" {
		return r.ID
	}
	return text
}
