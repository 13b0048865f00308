package similarity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyellow/tis-sync-go/internal/course"
	"github.com/garyellow/tis-sync-go/internal/logger"
	"github.com/garyellow/tis-sync-go/internal/rag"
)

// Lister provides course rows inside a start-date window.
type Lister interface {
	CoursesInWindow(ctx context.Context, startFrom, startTo string) ([]course.Record, error)
}

// LexicalService answers similarity queries by BM25 keyword ranking. It is
// the degraded-mode backend when no embedding provider is configured: same
// request shape and filters, but similarity values are rank confidences.
type LexicalService struct {
	lister Lister
	log    *logger.Logger
	now    func() time.Time
}

// NewLexicalService creates a keyword-ranking query service over lister.
func NewLexicalService(lister Lister, log *logger.Logger) *LexicalService {
	return &LexicalService{
		lister: lister,
		log:    log.WithModule("similarity"),
		now:    time.Now,
	}
}

// WithClock overrides the service time source. Intended for tests.
func (s *LexicalService) WithClock(now func() time.Time) *LexicalService {
	s.now = now
	return s
}

// Query ranks the courses inside the date window against the query text.
// The index is rebuilt per query; catalogs are small enough that this is
// cheaper than keeping an index consistent with the store.
func (s *LexicalService) Query(ctx context.Context, req Request) (*Response, error) {
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

	records, err := s.lister.CoursesInWindow(ctx, startFrom, startTo)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	index := rag.NewIndex(s.log)
	if err := index.Rebuild(records); err != nil {
		return nil, fmt.Errorf("build keyword index: %w", err)
	}

	candidates, err := index.Rank(text, overfetchCount(topK))
	if err != nil {
		return nil, fmt.Errorf("rank courses: %w", err)
	}

	return &Response{
		Results: FilterResults(candidates, req.MinSimilarity, req.Level, topK),
	}, nil
}
