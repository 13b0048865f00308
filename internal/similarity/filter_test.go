package similarity

import (
	"testing"

	"github.com/garyellow/tis-sync-go/internal/course"
)

func candidate(id string, similarity float64, level string) course.Match {
	return course.Match{
		Record:     course.Record{ID: id, Level: level},
		Similarity: similarity,
	}
}

func ids(matches []course.Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.ID
	}
	return out
}

func TestFilterResults(t *testing.T) {
	t.Parallel()
	candidates := []course.Match{
		candidate("a", 0.95, "初階"),
		candidate("b", 0.90, ""),
		candidate("c", 0.85, " 初階 "),
		candidate("d", 0.60, "進階"),
		candidate("e", 0.40, "初階"),
	}

	tests := []struct {
		name          string
		minSimilarity float64
		level         string
		topK          int
		want          []string
	}{
		{"no filters", 0, "", 10, []string{"a", "b", "c", "d", "e"}},
		{"top_k truncation", 0, "", 2, []string{"a", "b"}},
		{"similarity threshold", 0.7, "", 10, []string{"a", "b", "c"}},
		{"level exact match after trimming", 0, "初階", 10, []string{"a", "c", "e"}},
		{"level filter trims the filter itself", 0, " 初階 ", 10, []string{"a", "c", "e"}},
		{"combined filters", 0.7, "初階", 10, []string{"a", "c"}},
		{"all filtered out", 0.99, "", 10, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FilterResults(candidates, tt.minSimilarity, tt.level, tt.topK)
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("FilterResults() = %v, want %v", gotIDs, tt.want)
			}
			for i := range tt.want {
				if gotIDs[i] != tt.want[i] {
					t.Fatalf("FilterResults() = %v, want %v (order must be preserved)", gotIDs, tt.want)
				}
			}
		})
	}
}

func TestFilterResultsEmptyInput(t *testing.T) {
	t.Parallel()
	got := FilterResults(nil, 0.5, "初階", 10)
	if got == nil || len(got) != 0 {
		t.Errorf("FilterResults(nil) = %v, want empty non-nil slice", got)
	}
}

func TestOverfetchCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		topK int
		want int
	}{
		{10, 20},
		{25, 50},
		{30, 50}, // capped at the ceiling
		{1, 2},
	}
	for _, tt := range tests {
		if got := overfetchCount(tt.topK); got != tt.want {
			t.Errorf("overfetchCount(%d) = %d, want %d", tt.topK, got, tt.want)
		}
	}
}
