package rag

import (
	"testing"

	"github.com/garyellow/tis-sync-go/internal/course"
	"github.com/garyellow/tis-sync-go/internal/logger"
)

func testRecords() []course.Record {
	return []course.Record{
		{
			ID:          "tis:ZEN101",
			Title:       "禪修入門",
			Description: "基礎禪坐與呼吸練習，適合初學者",
		},
		{
			ID:          "tis:ZEN201",
			Title:       "禪修進階",
			Description: "進階禪坐與公案研討",
		},
		{
			ID:          "tis:ENG101",
			Title:       "Buddhist English",
			Description: "Reading sutras in English translation",
		},
	}
}

func TestNewIndex(t *testing.T) {
	t.Parallel()

	idx := NewIndex(logger.New("debug"))
	if idx == nil {
		t.Fatal("NewIndex() returned nil")
	}
	if idx.Enabled() {
		t.Error("Enabled() should be false before Rebuild")
	}
	if idx.Count() != 0 {
		t.Errorf("Count() = %d, want 0", idx.Count())
	}
}

func TestIndexRebuild(t *testing.T) {
	t.Parallel()

	idx := NewIndex(logger.New("debug"))
	if err := idx.Rebuild(testRecords()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if !idx.Enabled() {
		t.Error("Enabled() should be true after Rebuild")
	}
	if idx.Count() != 3 {
		t.Errorf("Count() = %d, want 3", idx.Count())
	}
}

func TestIndexRebuildSkipsEmptyText(t *testing.T) {
	t.Parallel()

	idx := NewIndex(logger.New("debug"))
	records := append(testRecords(), course.Record{})
	if err := idx.Rebuild(records); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if idx.Count() != 3 {
		t.Errorf("Count() = %d, want 3", idx.Count())
	}
}

func TestIndexRank(t *testing.T) {
	t.Parallel()

	idx := NewIndex(logger.New("debug"))
	if err := idx.Rebuild(testRecords()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	matches, err := idx.Rank("初學者 禪坐", 10)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("Rank() returned no matches")
	}
	if matches[0].ID != "tis:ZEN101" {
		t.Errorf("top match = %s, want tis:ZEN101", matches[0].ID)
	}
	if matches[0].Similarity <= 0 || matches[0].Similarity > 1 {
		t.Errorf("similarity = %f, want in (0, 1]", matches[0].Similarity)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Errorf("matches not sorted at %d", i)
		}
	}
}

func TestIndexRankEnglish(t *testing.T) {
	t.Parallel()

	idx := NewIndex(logger.New("debug"))
	if err := idx.Rebuild(testRecords()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	matches, err := idx.Rank("english sutras", 5)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(matches) == 0 || matches[0].ID != "tis:ENG101" {
		t.Errorf("Rank(english sutras) = %+v, want tis:ENG101 first", matches)
	}
}

func TestIndexRankLimit(t *testing.T) {
	t.Parallel()

	idx := NewIndex(logger.New("debug"))
	if err := idx.Rebuild(testRecords()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	matches, err := idx.Rank("禪修", 1)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("len = %d, want 1", len(matches))
	}
}

func TestIndexRankBlankQuery(t *testing.T) {
	t.Parallel()

	idx := NewIndex(logger.New("debug"))
	if err := idx.Rebuild(testRecords()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	matches, err := idx.Rank("   ", 10)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if matches != nil {
		t.Errorf("Rank(blank) = %v, want nil", matches)
	}
}

func TestTokenizeChinese(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "latin words",
			input: "Cloud Computing",
			want:  []string{"cloud", "computing"},
		},
		{
			name:  "cjk bigrams",
			input: "禪修",
			want:  []string{"禪", "禪修", "修"},
		},
		{
			name:  "mixed",
			input: "AWS 課程",
			want:  []string{"aws", "課", "課程", "程"},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tokenizeChinese(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("tokenizeChinese(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
