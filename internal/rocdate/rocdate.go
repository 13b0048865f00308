// Package rocdate converts Republic of China (minguo) calendar dates found in
// TIS pages into ISO calendar dates. ROC years are offset from the Gregorian
// calendar by 1911 years.
package rocdate

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/garyellow/tis-sync-go/internal/textutil"
)

// YearOffset is the difference between ROC and Gregorian years.
const YearOffset = 1911

// TIS period cells use a 3-digit ROC year followed by month/day, either as
// "115 03/10" (possibly split by <br> or &nbsp;) or as "115年03月10日".
// [\s\p{Zs}] keeps Unicode spaces as valid separators even when the input
// skipped Normalize.
var rocDateRegex = regexp.MustCompile(`(\d{3})[\s\p{Zs}]*(?:年)?[\s\p{Zs}]*(\d{1,2})[\s\p{Zs}]*[/月][\s\p{Zs}]*(\d{1,2})`)

// Decode parses a raw period fragment and returns the start date as
// "YYYY-MM-DD". Returns the empty string and false when the fragment does not
// contain a recognizable ROC date. Never panics on malformed input.
func Decode(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	// Markup first, then whitespace: "115<br>03/10" must keep its separator.
	text := textutil.Normalize(textutil.StripTags(raw))

	m := rocDateRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}

	rocYear, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil {
		return "", false
	}
	day, err := strconv.Atoi(m[3])
	if err != nil {
		return "", false
	}

	return fmt.Sprintf("%04d-%02d-%02d", rocYear+YearOffset, month, day), true
}
