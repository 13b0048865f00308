package textutil

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Empty", "", ""},
		{"Only whitespace", " \t\n ", ""},
		{"Collapses runs", "生成式  人工智慧\t實戰", "生成式 人工智慧 實戰"},
		{"Trims edges", "  CT21YT009  ", "CT21YT009"},
		{"Newlines and tabs", "a\nb\tc", "a b c"},
		{"Already normalized", "a b c", "a b c"},
		{"Non-breaking space", "115 03/10", "115 03/10"},
		{"Mixed nbsp run", "禪修   入門", "禪修 入門"},
		{"Ideographic space", "禪修　入門", "禪修 入門"},
		{"Trims nbsp edges", " CT21YT009 ", "CT21YT009"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{"", "  a  b  ", "台中所\n高雄所", "x"}
	for _, s := range inputs {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", s, once, twice)
		}
	}
}

func TestStripTags(t *testing.T) {
	t.Parallel()
	got := Normalize(StripTags("115<br>03/10"))
	if got != "115 03/10" {
		t.Errorf("Expected %q, got %q", "115 03/10", got)
	}
}
