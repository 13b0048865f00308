// Package rag provides BM25 keyword ranking over course records. It serves
// as the lexical fallback for the similarity API when no embedding provider
// is configured.
package rag

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/crawlab-team/bm25"

	"github.com/garyellow/tis-sync-go/internal/course"
	"github.com/garyellow/tis-sync-go/internal/logger"
)

// Index ranks course records by BM25 keyword relevance.
// Scores are converted to rank-based confidence values so results are
// comparable in shape to cosine similarities, not in scale.
type Index struct {
	okapi       *bm25.BM25Okapi
	records     []course.Record
	logger      *logger.Logger
	mu          sync.RWMutex
	initialized bool
}

// NewIndex creates an empty BM25 index.
func NewIndex(log *logger.Logger) *Index {
	return &Index{logger: log}
}

// Rebuild replaces the index contents with the given records.
// BM25 IDF depends on the whole corpus, so updates always rebuild.
func (idx *Index) Rebuild(records []course.Record) error {
	if idx == nil {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	var corpus []string
	var kept []course.Record
	for _, rec := range records {
		text := rec.EmbeddingText()
		if strings.TrimSpace(text) == "" {
			continue
		}
		corpus = append(corpus, text)
		kept = append(kept, rec)
	}

	if len(corpus) == 0 {
		idx.okapi = nil
		idx.records = nil
		idx.initialized = true
		return nil
	}

	// k1=1.5, b=0.75 are standard BM25 parameters
	okapi, err := bm25.NewBM25Okapi(corpus, tokenizeChinese, 1.5, 0.75, nil)
	if err != nil {
		return fmt.Errorf("failed to build BM25 index: %w", err)
	}

	idx.okapi = okapi
	idx.records = kept
	idx.initialized = true
	idx.logger.WithField("docs", len(corpus)).Info("BM25 index built")
	return nil
}

// Rank scores all indexed records against query and returns the topN as
// matches sorted by descending score. Similarity carries a rank-based
// confidence, not a cosine value.
func (idx *Index) Rank(query string, topN int) ([]course.Match, error) {
	if idx == nil || !idx.Enabled() {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tokens := tokenizeChinese(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	scores, err := idx.okapi.GetScores(tokens)
	if err != nil {
		return nil, fmt.Errorf("BM25 scoring failed: %w", err)
	}

	type scoredDoc struct {
		docID int
		score float64
	}
	var scored []scoredDoc
	for docID, score := range scores {
		if score > 0 {
			scored = append(scored, scoredDoc{docID: docID, score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if topN > 0 && len(scored) > topN {
		scored = scored[:topN]
	}

	matches := make([]course.Match, 0, len(scored))
	for rank, sd := range scored {
		matches = append(matches, course.Match{
			Record:     idx.records[sd.docID],
			Similarity: rankConfidence(rank + 1),
		})
	}
	return matches, nil
}

// rankConfidence maps a 1-indexed rank to a bounded confidence.
// BM25 scores are unbounded and query-dependent, so rank is the proxy.
//
//	rank 1 → 0.95, rank 5 → 0.80, rank 10 → 0.67
func rankConfidence(rank int) float64 {
	if rank <= 0 {
		return 0
	}
	return 1.0 / (1.0 + 0.05*float64(rank))
}

// Enabled reports whether the index holds a built corpus.
func (idx *Index) Enabled() bool {
	if idx == nil {
		return false
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.initialized && idx.okapi != nil
}

// Count returns the number of indexed records.
func (idx *Index) Count() int {
	if idx == nil {
		return 0
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// tokenizeChinese tokenizes mixed Chinese and Latin text.
// Chinese runs produce single characters plus character bigrams, which
// handles no-space scripts. Latin and digit runs split on separators.
func tokenizeChinese(text string) []string {
	text = strings.ToLower(text)

	var tokens []string
	var currentWord strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if isCJK(r) {
				if currentWord.Len() > 0 {
					tokens = append(tokens, currentWord.String())
					currentWord.Reset()
				}
				tokens = append(tokens, string(r))
				if i+1 < len(runes) && isCJK(runes[i+1]) {
					tokens = append(tokens, string(r)+string(runes[i+1]))
				}
			} else {
				currentWord.WriteRune(r)
			}
		} else {
			if currentWord.Len() > 0 {
				tokens = append(tokens, currentWord.String())
				currentWord.Reset()
			}
		}
	}

	if currentWord.Len() > 0 {
		tokens = append(tokens, currentWord.String())
	}

	return tokens
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
