package tis

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/garyellow/tis-sync-go/internal/config"
	"github.com/garyellow/tis-sync-go/internal/course"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

const listingPage = `<html><body>
<h2>資訊研習班期查詢（院本部）</h2>
<table>
<tr>
  <th>序號</th><th>班名</th><th>期間</th><th>對象</th><th>導師</th><th>地點</th>
</tr>
<tr>
  <td>1</td>
  <td><a href="classDetail.jsp?cls=CT21YT009">CT21YT009</a>
      <span style="font-weight:600">生成式人工智慧實戰初階班</span></td>
  <td>115<br>03/10</td>
  <td>對象：對AI應用有興趣者</td>
  <td>王小明 Tel:02-12345678</td>
  <td>電腦教室</td>
</tr>
<tr>
  <td>2</td>
  <td><a href="classDetail.jsp?cls=CT21YT010">CT21YT010</a> 純直播課程 進階資料分析工作坊</td>
  <td>115年04月01日</td>
  <td>具基礎統計知識者</td>
  <td>李大華</td>
  <td>線上</td>
</tr>
<tr>
  <td>3</td><td></td><td></td><td></td><td></td><td></td>
</tr>
</table>
</body></html>`

func TestExtract(t *testing.T) {
	t.Parallel()
	doc := mustDoc(t, listingPage)
	records := Extract(doc, config.CampusHeadquarters, "https://tis.example.net/classDoneQueryByPro.jsp?department=P")

	if len(records) != 2 {
		t.Fatalf("Extract() returned %d records, want 2", len(records))
	}

	first := records[0]
	if first.Source != course.SourceTIS {
		t.Errorf("Source = %q, want %q", first.Source, course.SourceTIS)
	}
	if first.Status != course.StatusScheduled {
		t.Errorf("Status = %q, want %q", first.Status, course.StatusScheduled)
	}
	if first.Campus != config.CampusHeadquarters {
		t.Errorf("Campus = %q, want %q", first.Campus, config.CampusHeadquarters)
	}
	if first.ClassCode != "CT21YT009" {
		t.Errorf("ClassCode = %q, want CT21YT009", first.ClassCode)
	}
	if first.Title != "生成式人工智慧實戰初階班" {
		t.Errorf("Title = %q, want bold span text", first.Title)
	}
	if first.StartDate != "2026-03-10" {
		t.Errorf("StartDate = %q, want 2026-03-10", first.StartDate)
	}
	if first.Audience != "對AI應用有興趣者" {
		t.Errorf("Audience = %q, want marker-stripped text", first.Audience)
	}
	if first.Instructor != "王小明" {
		t.Errorf("Instructor = %q, want Tel fragment removed", first.Instructor)
	}
	if first.URL != "https://tis.example.net/classDetail.jsp?cls=CT21YT009" {
		t.Errorf("URL = %q, want resolved relative link", first.URL)
	}

	second := records[1]
	if second.ClassCode != "CT21YT010" {
		t.Errorf("ClassCode = %q, want CT21YT010", second.ClassCode)
	}
	if second.Title != "進階資料分析工作坊" {
		t.Errorf("Title = %q, want fallback text without delivery badge", second.Title)
	}
	if second.StartDate != "2026-04-01" {
		t.Errorf("StartDate = %q, want 2026-04-01", second.StartDate)
	}
	if second.Audience != "具基礎統計知識者" {
		t.Errorf("Audience = %q, want whole cell text without marker", second.Audience)
	}
}

func TestExtractInfersCampusFromHeading(t *testing.T) {
	t.Parallel()
	page := strings.Replace(listingPage, "院本部", "臺中所", 1)
	doc := mustDoc(t, page)

	records := Extract(doc, config.CampusUnspecified, "offline:/tmp/saved.html")
	if len(records) == 0 {
		t.Fatal("Extract() returned no records")
	}
	if records[0].Campus != config.CampusTaichung {
		t.Errorf("Campus = %q, want %q", records[0].Campus, config.CampusTaichung)
	}
}

func TestExtractOfflineLocatorKeepsRelativeLinks(t *testing.T) {
	t.Parallel()
	doc := mustDoc(t, listingPage)

	records := Extract(doc, config.CampusHeadquarters, "offline:/tmp/saved.html")
	if len(records) == 0 {
		t.Fatal("Extract() returned no records")
	}
	if records[0].URL != "classDetail.jsp?cls=CT21YT009" {
		t.Errorf("URL = %q, want unresolved relative link for offline pages", records[0].URL)
	}
}

func TestExtractSynthesizesClassCode(t *testing.T) {
	t.Parallel()
	page := `<html><body><table>
<tr><th>序號</th><th>班名</th><th>期間</th><th>對象</th><th>導師</th></tr>
<tr><td>1</td><td><b>專案管理 實務班!</b></td><td></td><td></td><td></td></tr>
</table></body></html>`
	doc := mustDoc(t, page)

	records := Extract(doc, config.CampusHeadquarters, "https://tis.example.net/page.jsp")
	if len(records) != 1 {
		t.Fatalf("Extract() returned %d records, want 1", len(records))
	}
	if records[0].ClassCode != "專案管理實務班" {
		t.Errorf("ClassCode = %q, want synthesized 專案管理實務班", records[0].ClassCode)
	}
	if records[0].URL != "https://tis.example.net/page.jsp" {
		t.Errorf("URL = %q, want page locator when row has no link", records[0].URL)
	}
}

func TestExtractPeriodWithEntitySpaces(t *testing.T) {
	t.Parallel()
	// &nbsp; decodes to U+00A0, which must still separate year from month/day.
	page := `<html><body><table>
<tr><th>序號</th><th>班名</th><th>期間</th><th>對象</th><th>導師</th></tr>
<tr><td>1</td><td><b>禪修入門班</b></td><td>115&nbsp;03/10</td><td></td><td></td></tr>
</table></body></html>`
	doc := mustDoc(t, page)

	records := Extract(doc, config.CampusHeadquarters, "https://tis.example.net/page.jsp")
	if len(records) != 1 {
		t.Fatalf("Extract() returned %d records, want 1", len(records))
	}
	if records[0].StartDate != "2026-03-10" {
		t.Errorf("StartDate = %q, want 2026-03-10", records[0].StartDate)
	}
}

func TestExtractTolerance(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		html string
	}{
		{"empty document", ""},
		{"no tables", "<html><body><p>nothing here</p></body></html>"},
		{"table without header", "<html><body><table><tr><td>a</td><td>b</td></tr><tr><td>c</td><td>d</td></tr></table></body></html>"},
		{"header only", `<html><body><table><tr><th>序號</th><th>班名</th><th>期間</th><th>對象</th><th>導師</th></tr></table></body></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := mustDoc(t, tt.html)
			if got := Extract(doc, config.CampusHeadquarters, "https://tis.example.net/page.jsp"); len(got) != 0 {
				t.Errorf("Extract() returned %d records, want 0", len(got))
			}
		})
	}
}

func TestResolveColumns(t *testing.T) {
	t.Parallel()
	t.Run("matches header text regardless of order", func(t *testing.T) {
		t.Parallel()
		cols, ok := resolveColumns([]string{"序號", "期間", "班名", "導師", "對象"})
		if !ok {
			t.Fatal("resolveColumns() ok = false")
		}
		if cols.className != 2 || cols.period != 1 || cols.audience != 4 || cols.instructor != 3 {
			t.Errorf("resolveColumns() = %+v, want reordered indexes", cols)
		}
	})

	t.Run("falls back to fixed layout", func(t *testing.T) {
		t.Parallel()
		cols, ok := resolveColumns([]string{"a", "b", "c", "d", "e"})
		if !ok {
			t.Fatal("resolveColumns() ok = false")
		}
		if cols.className != 1 || cols.period != 2 || cols.audience != 3 || cols.instructor != 4 {
			t.Errorf("resolveColumns() = %+v, want fixed layout", cols)
		}
	})

	t.Run("rejects short headers", func(t *testing.T) {
		t.Parallel()
		if _, ok := resolveColumns([]string{"序號", "班名"}); ok {
			t.Error("resolveColumns() ok = true for short header, want false")
		}
	})
}

func TestCampusFromHeading(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		want string
	}{
		{"資訊研習班期查詢（臺中所）", config.CampusTaichung},
		{"資訊研習班期查詢（台中所）", config.CampusTaichung},
		{"高雄所 班期一覽", config.CampusKaohsiung},
		{"院本部課程", config.CampusHeadquarters},
		{"本部課程", config.CampusHeadquarters},
		{"無關標題", ""},
	}
	for _, tt := range tests {
		if got := CampusFromHeading(tt.text); got != tt.want {
			t.Errorf("CampusFromHeading(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestCampusFromFilename(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want string
	}{
		{"台中所", config.CampusTaichung},
		{"台中2026", config.CampusTaichung},
		{"高雄", config.CampusKaohsiung},
		{"院本部-0310", config.CampusHeadquarters},
		{"page1", ""},
	}
	for _, tt := range tests {
		if got := CampusFromFilename(tt.name); got != tt.want {
			t.Errorf("CampusFromFilename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
