// Package similarity implements the semantic course query path: date
// windowing, candidate over-fetch and the result filter applied after the
// remote vector search returns its candidate superset.
package similarity

import (
	"strings"

	"github.com/garyellow/tis-sync-go/internal/course"
)

// matchCountCeiling caps how many candidates are requested from the vector
// search regardless of top_k.
const matchCountCeiling = 50

// overfetchCount returns how many candidates to request: twice top_k to
// survive filtering, capped at the ceiling.
func overfetchCount(topK int) int {
	count := 2 * topK
	if count > matchCountCeiling {
		return matchCountCeiling
	}
	return count
}

// FilterResults applies, in order: the minimum similarity threshold, the
// exact level match and the top_k truncation. Candidates arrive pre-sorted
// by descending similarity and their order is preserved; an empty result is
// a valid outcome, not an error.
func FilterResults(candidates []course.Match, minSimilarity float64, levelFilter string, topK int) []course.Match {
	results := make([]course.Match, 0, len(candidates))

	level := strings.TrimSpace(levelFilter)
	for _, cand := range candidates {
		if minSimilarity > 0 && cand.Similarity < minSimilarity {
			continue
		}
		if level != "" && strings.TrimSpace(cand.Level) != level {
			continue
		}
		results = append(results, cand)
		if len(results) == topK {
			break
		}
	}
	return results
}
