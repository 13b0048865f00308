// Package tis extracts course records from TIS course listing pages.
// The pages are loosely specified server-rendered tables, so extraction is
// tolerant: a malformed table or row is skipped, never fatal for a document.
package tis

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/garyellow/tis-sync-go/internal/config"
	"github.com/garyellow/tis-sync-go/internal/course"
	"github.com/garyellow/tis-sync-go/internal/rocdate"
	"github.com/garyellow/tis-sync-go/internal/textutil"
)

// minColumns is the smallest cell count a header or data row may have and
// still be part of the course table.
const minColumns = 5

// maxSynthesizedCodeLen caps class codes synthesized from titles.
const maxSynthesizedCodeLen = 32

// Regex patterns for parsing the course list page
var (
	audienceRegex = regexp.MustCompile(`對象[：:]\s*(.+)`)
	telRegex      = regexp.MustCompile(`(?i)Tel:.*$`)
	// Delivery-mode badges rendered next to the title when no bold element marks it
	boilerplateRegex = regexp.MustCompile(`純直播課程|混成班|e-Learning`)
	// Inverse of Python-style \w plus dash, for synthesizing codes from CJK titles
	codeCharRegex = regexp.MustCompile(`[^\p{L}\p{N}_-]`)
)

// columnMap holds the resolved cell index for each field we extract.
type columnMap struct {
	className  int
	period     int
	audience   int
	instructor int
}

// resolveColumns maps header cells to field indexes. It matches header text
// first and falls back to the live TIS layout (序號、班名、期間、對象、導師、...)
// so a column reorder upstream is a one-function edit here.
func resolveColumns(headers []string) (columnMap, bool) {
	if len(headers) < minColumns {
		return columnMap{}, false
	}

	cols := columnMap{className: 1, period: 2, audience: 3, instructor: 4}
	for i, h := range headers {
		switch {
		case strings.Contains(h, "班名"):
			cols.className = i
		case strings.Contains(h, "期間"):
			cols.period = i
		case strings.Contains(h, "對象"):
			cols.audience = i
		case strings.Contains(h, "導師"):
			cols.instructor = i
		}
	}
	return cols, true
}

// Extract parses every course table in doc and returns the raw records.
// campusHint carries the caller's campus label; when empty or the offline
// sentinel, the campus is recovered from the page heading. sourceLocator is
// the page URL for online documents or an opaque offline marker.
func Extract(doc *goquery.Document, campusHint, sourceLocator string) []course.Record {
	records := make([]course.Record, 0)
	if doc == nil {
		return records
	}

	campus := campusHint
	if campus == "" || campus == config.CampusUnspecified {
		if inferred := CampusFromHeading(textutil.Normalize(doc.Find("h2").First().Text())); inferred != "" {
			campus = inferred
		}
	}
	if campus == "" {
		campus = config.CampusUnspecified
	}

	baseURL := resolveBaseURL(sourceLocator)

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headerRow, cols := findHeaderRow(rows)
		if headerRow < 0 {
			return
		}

		rows.Each(func(i int, row *goquery.Selection) {
			if i == headerRow {
				return
			}
			if rec, ok := parseRow(row, cols, campus, baseURL, sourceLocator); ok {
				records = append(records, rec)
			}
		})
	})

	return records
}

// findHeaderRow returns the index of the first row with enough th cells to
// be the table header, plus the resolved column mapping. Returns -1 when the
// table has no recognizable header.
func findHeaderRow(rows *goquery.Selection) (int, columnMap) {
	headerRow := -1
	var cols columnMap

	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		ths := row.Find("th")
		if ths.Length() < minColumns {
			return true
		}

		headers := make([]string, 0, ths.Length())
		ths.Each(func(_ int, th *goquery.Selection) {
			headers = append(headers, textutil.Normalize(th.Text()))
		})

		if resolved, ok := resolveColumns(headers); ok {
			headerRow = i
			cols = resolved
			return false
		}
		return true
	})

	return headerRow, cols
}

// parseRow extracts one course record from a data row. Rows without a class
// code or title are skipped.
func parseRow(row *goquery.Selection, cols columnMap, campus, baseURL, sourceLocator string) (course.Record, bool) {
	cells := row.Find("td")
	if cells.Length() < minColumns {
		return course.Record{}, false
	}

	classCode, title, courseURL := parseClassNameCell(cells.Eq(cols.className), baseURL)
	if classCode == "" && title == "" {
		return course.Record{}, false
	}
	if classCode == "" {
		classCode = synthesizeClassCode(title)
	}
	if title == "" {
		title = classCode
	}
	if courseURL == "" {
		courseURL = sourceLocator
	}

	return course.Record{
		Source:     course.SourceTIS,
		Status:     course.StatusScheduled,
		Campus:     campus,
		ClassCode:  classCode,
		Title:      title,
		StartDate:  parsePeriodCell(cells.Eq(cols.period)),
		Audience:   parseAudienceCell(cells.Eq(cols.audience)),
		Instructor: parseInstructorCell(cells.Eq(cols.instructor)),
		URL:        courseURL,
	}, true
}

// parseClassNameCell pulls the class code (link text), title (bold text or
// fallback) and detail URL out of the combined class-name cell.
func parseClassNameCell(cell *goquery.Selection, baseURL string) (classCode, title, courseURL string) {
	link := cell.Find("a[href]").First()
	if link.Length() > 0 {
		classCode = textutil.Normalize(link.Text())
		href, _ := link.Attr("href")
		if baseURL != "" && !strings.HasPrefix(href, "http") {
			courseURL = joinURL(baseURL, href)
		} else {
			courseURL = href
		}
	}

	bold := findBoldTitle(cell)
	if bold != nil {
		title = textutil.Normalize(bold.Text())
		return classCode, title, courseURL
	}

	// No bold element. Strip the class code and known delivery-mode badges
	// from the cell text and keep the rest if it looks like a real title.
	text := textutil.Normalize(cell.Text())
	if classCode != "" {
		text = strings.TrimSpace(strings.ReplaceAll(text, classCode, ""))
	}
	text = strings.TrimSpace(boilerplateRegex.ReplaceAllString(text, ""))
	if utf8.RuneCountInString(text) > 2 {
		title = text
	}
	return classCode, title, courseURL
}

// findBoldTitle locates the element carrying the display title: a span
// styled font-weight:600, or a b / strong tag.
func findBoldTitle(cell *goquery.Selection) *goquery.Selection {
	var bold *goquery.Selection
	cell.Find("span[style]").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		style, _ := span.Attr("style")
		if strings.Contains(style, "font-weight:600") {
			bold = span
			return false
		}
		return true
	})
	if bold != nil {
		return bold
	}
	if b := cell.Find("b").First(); b.Length() > 0 {
		return b
	}
	if strong := cell.Find("strong").First(); strong.Length() > 0 {
		return strong
	}
	return nil
}

// parsePeriodCell decodes the start date from the period cell. The raw inner
// HTML is used because the ROC date is often split across <br> tags.
func parsePeriodCell(cell *goquery.Selection) string {
	raw, err := cell.Html()
	if err != nil {
		raw = cell.Text()
	}
	date, ok := rocdate.Decode(raw)
	if !ok {
		return ""
	}
	return date
}

// parseAudienceCell extracts the text after the 對象： marker, or the whole
// cell text when no marker is present.
func parseAudienceCell(cell *goquery.Selection) string {
	text := textutil.Normalize(cell.Text())
	if m := audienceRegex.FindStringSubmatch(text); m != nil {
		return textutil.Normalize(m[1])
	}
	return text
}

// parseInstructorCell extracts the instructor name with any trailing
// Tel:... contact fragment removed.
func parseInstructorCell(cell *goquery.Selection) string {
	text := textutil.Normalize(cell.Text())
	return strings.TrimSpace(telRegex.ReplaceAllString(text, ""))
}

// synthesizeClassCode derives a code from the title when the row has no
// link text, keeping word characters and dashes only.
func synthesizeClassCode(title string) string {
	code := codeCharRegex.ReplaceAllString(title, "")
	runes := []rune(code)
	if len(runes) > maxSynthesizedCodeLen {
		return string(runes[:maxSynthesizedCodeLen])
	}
	return code
}

// resolveBaseURL returns the parent path of an absolute page URL, used to
// resolve relative detail links. Offline locators get no base, so relative
// links pass through untouched.
func resolveBaseURL(sourceLocator string) string {
	if !strings.HasPrefix(sourceLocator, "http://") && !strings.HasPrefix(sourceLocator, "https://") {
		return ""
	}
	idx := strings.LastIndex(sourceLocator, "/")
	return sourceLocator[:idx+1]
}

// joinURL resolves href against base, falling back to plain concatenation
// when either side fails to parse.
func joinURL(base, href string) string {
	baseParsed, err := url.Parse(base)
	if err != nil {
		return base + href
	}
	refParsed, err := url.Parse(href)
	if err != nil {
		return base + href
	}
	return baseParsed.ResolveReference(refParsed).String()
}
