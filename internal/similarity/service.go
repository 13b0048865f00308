package similarity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyellow/tis-sync-go/internal/course"
	apperrors "github.com/garyellow/tis-sync-go/internal/errors"
)

// Query defaults.
const (
	DefaultDaysBack    = 100
	DefaultDaysForward = 100
	DefaultTopK        = 10
)

const dateFormat = "2006-01-02"

// Matcher is the vector search collaborator: it returns candidate rows
// pre-sorted by descending similarity.
type Matcher interface {
	MatchCourses(ctx context.Context, queryEmbedding []float32, startFrom, startTo string, matchCount int) ([]course.Match, error)
}

// Embedder turns the query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Request is a similarity query. Nil window and top_k values take defaults.
type Request struct {
	Query         string  `json:"query"`
	Level         string  `json:"level,omitempty"`
	NDaysBack     *int    `json:"n_days_back,omitempty"`
	NDaysForward  *int    `json:"n_days_forward,omitempty"`
	TopK          *int    `json:"top_k,omitempty"`
	MinSimilarity float64 `json:"min_similarity,omitempty"`
}

// Response carries the filtered result list. Message explains an empty
// result for blank queries.
type Response struct {
	Results []course.Match `json:"results"`
	Message string         `json:"message,omitempty"`
}

// Service answers similarity queries: it validates the request, computes
// the date window, embeds the query text, over-fetches candidates from the
// matcher and applies the result filter.
type Service struct {
	matcher  Matcher
	embedder Embedder
	now      func() time.Time
}

// NewService creates a query service.
func NewService(matcher Matcher, embedder Embedder) *Service {
	return &Service{
		matcher:  matcher,
		embedder: embedder,
		now:      time.Now,
	}
}

// WithClock overrides the service time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Query runs one similarity query. A blank query returns an empty result
// with a message before any external call.
func (s *Service) Query(ctx context.Context, req Request) (*Response, error) {
	back, forward, topK, err := resolveRequest(req)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(req.Query)
	if text == "" {
		return &Response{Results: []course.Match{}, Message: "查詢為空"}, nil
	}

	today := s.now().UTC()
	startFrom := today.AddDate(0, 0, -back).Format(dateFormat)
	startTo := today.AddDate(0, 0, forward).Format(dateFormat)

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.matcher.MatchCourses(ctx, embedding, startFrom, startTo, overfetchCount(topK))
	if err != nil {
		return nil, fmt.Errorf("match courses: %w", err)
	}

	return &Response{
		Results: FilterResults(candidates, req.MinSimilarity, req.Level, topK),
	}, nil
}

// resolveRequest applies window and top_k defaults and validates the result.
func resolveRequest(req Request) (back, forward, topK int, err error) {
	back = DefaultDaysBack
	if req.NDaysBack != nil {
		back = *req.NDaysBack
	}
	forward = DefaultDaysForward
	if req.NDaysForward != nil {
		forward = *req.NDaysForward
	}
	topK = DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	if back < 0 {
		return 0, 0, 0, apperrors.NewValidationError("n_days_back", "must not be negative")
	}
	if forward < 0 {
		return 0, 0, 0, apperrors.NewValidationError("n_days_forward", "must not be negative")
	}
	if topK <= 0 {
		return 0, 0, 0, apperrors.NewValidationError("top_k", "must be positive")
	}
	return back, forward, topK, nil
}
