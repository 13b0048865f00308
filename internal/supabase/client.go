// Package supabase implements the row store and vector search collaborators
// on top of the Supabase PostgREST API, using the service role credential.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/garyellow/tis-sync-go/internal/course"
	apperrors "github.com/garyellow/tis-sync-go/internal/errors"
	"github.com/garyellow/tis-sync-go/internal/metrics"
	"github.com/garyellow/tis-sync-go/internal/sync"
)

const requestTimeout = 30 * time.Second

// Client talks to the Supabase REST API. It implements sync.Store and the
// match_courses RPC used by the similarity query path.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// compile-time check
var _ sync.Store = (*Client)(nil)

// NewClient creates a Supabase client from the project URL and service role
// key. Both are required.
func NewClient(baseURL, serviceKey string) (*Client, error) {
	if baseURL == "" || serviceKey == "" {
		return nil, apperrors.ErrMissingCredentials
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

// WithMetrics attaches request metrics.
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	return c
}

// FindCourse looks up a scraped course by its (source, class_code) pair.
// Only the fields the upsert decision needs are selected.
func (c *Client) FindCourse(ctx context.Context, source, classCode string) (*course.Record, error) {
	query := url.Values{}
	query.Set("select", "id,content_hash,created_at")
	query.Set("source", "eq."+source)
	query.Set("class_code", "eq."+classCode)
	return c.selectOne(ctx, "find", query)
}

// GetCourse looks up a course by id.
func (c *Client) GetCourse(ctx context.Context, id string) (*course.Record, error) {
	query := url.Values{}
	query.Set("select", "id,content_hash,created_at")
	query.Set("id", "eq."+id)
	return c.selectOne(ctx, "get", query)
}

func (c *Client) selectOne(ctx context.Context, op string, query url.Values) (*course.Record, error) {
	body, err := c.do(ctx, op, http.MethodGet, "/rest/v1/courses?"+query.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}

	var rows []course.Record
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, apperrors.NewStoreError(op, 0, fmt.Errorf("decode response: %w", err))
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return &rows[0], nil
}

// UpsertCourse writes the full record, resolving conflicts on id.
func (c *Client) UpsertCourse(ctx context.Context, rec *course.Record) error {
	payload, err := json.Marshal([]map[string]any{courseRow(rec)})
	if err != nil {
		return apperrors.NewStoreError("upsert", 0, fmt.Errorf("marshal row: %w", err))
	}

	headers := map[string]string{
		"Prefer": "resolution=merge-duplicates,return=minimal",
	}
	_, err = c.do(ctx, "upsert", http.MethodPost, "/rest/v1/courses?on_conflict=id", payload, headers)
	return err
}

// InsertSyncLog appends one audit row for a sync run.
func (c *Client) InsertSyncLog(ctx context.Context, entry sync.SyncLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return apperrors.NewStoreError("log", 0, fmt.Errorf("marshal entry: %w", err))
	}

	headers := map[string]string{"Prefer": "return=minimal"}
	_, err = c.do(ctx, "log", http.MethodPost, "/rest/v1/sync_log", payload, headers)
	return err
}

// MatchCourses calls the match_courses RPC: vector search over courses with
// a non-null start_date inside [startFrom, startTo], returning up to
// matchCount rows pre-sorted by descending similarity.
func (c *Client) MatchCourses(ctx context.Context, queryEmbedding []float32, startFrom, startTo string, matchCount int) ([]course.Match, error) {
	payload, err := json.Marshal(map[string]any{
		"query_embedding": queryEmbedding,
		"start_from":      startFrom,
		"start_to":        startTo,
		"match_count":     matchCount,
	})
	if err != nil {
		return nil, apperrors.NewStoreError("match", 0, fmt.Errorf("marshal rpc args: %w", err))
	}

	body, err := c.do(ctx, "match", http.MethodPost, "/rest/v1/rpc/match_courses", payload, nil)
	if err != nil {
		return nil, err
	}

	var rows []course.Match
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, apperrors.NewStoreError("match", 0, fmt.Errorf("decode response: %w", err))
	}
	return rows, nil
}

// CoursesInWindow returns courses whose start_date falls inside
// [startFrom, startTo], ordered by start_date. The keyword fallback ranker
// feeds on this when no embedding provider is configured.
func (c *Client) CoursesInWindow(ctx context.Context, startFrom, startTo string) ([]course.Record, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("start_date", "gte."+startFrom)
	query.Set("order", "start_date.asc")
	// PostgREST needs the second range bound as a separate condition
	path := "/rest/v1/courses?" + query.Encode() + "&start_date=lte." + url.QueryEscape(startTo)

	body, err := c.do(ctx, "window", http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var rows []course.Record
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, apperrors.NewStoreError("window", 0, fmt.Errorf("decode response: %w", err))
	}
	return rows, nil
}

// Ping issues a minimal select to verify connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "ping", http.MethodGet, "/rest/v1/courses?select=id&limit=1", nil, nil)
	return err
}

// do performs one REST request and returns the response body. Non-2xx
// statuses become StoreErrors carrying the response text.
func (c *Client) do(ctx context.Context, op, method, path string, payload []byte, headers map[string]string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, apperrors.NewStoreError(op, 0, err)
	}

	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, "error")
		return nil, apperrors.NewStoreError(op, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(op, "error")
		return nil, apperrors.NewStoreError(op, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.observe(op, "error")
		return nil, apperrors.NewStoreError(op, resp.StatusCode,
			errors.New(strings.TrimSpace(string(body))))
	}

	c.observe(op, "success")
	return body, nil
}

func (c *Client) observe(op, status string) {
	if c.metrics != nil {
		c.metrics.RecordStoreRequest(op, status)
	}
}

// courseRow maps a record to the courses table shape. Optional fields map
// to explicit nulls so a changing upsert clears stale values.
func courseRow(rec *course.Record) map[string]any {
	row := map[string]any{
		"id":           rec.ID,
		"source":       rec.Source,
		"status":       rec.Status,
		"campus":       nullable(rec.Campus),
		"system":       nullable(rec.System),
		"category":     nullable(rec.Category),
		"class_code":   nullable(rec.ClassCode),
		"title":        rec.Title,
		"start_date":   nullable(rec.StartDate),
		"days":         nullable(rec.Days),
		"description":  nullable(rec.Description),
		"audience":     nullable(rec.Audience),
		"level":        nullable(rec.Level),
		"instructor":   nullable(rec.Instructor),
		"url":          nullable(rec.URL),
		"content_hash": rec.ContentHash,
		"created_at":   rec.CreatedAt,
		"updated_at":   rec.UpdatedAt,
	}

	if rec.Embedding != nil {
		row["embedding"] = rec.Embedding
		row["embedding_dim"] = rec.EmbeddingDim
	} else {
		row["embedding"] = nil
		row["embedding_dim"] = nil
	}
	return row
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
