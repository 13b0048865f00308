package tis

import (
	"strings"

	"github.com/garyellow/tis-sync-go/internal/config"
)

// CampusFromHeading recovers the campus label from a page heading.
// Both 台/臺 spellings of Taichung appear in the wild. Returns the empty
// string when no known campus name is found.
func CampusFromHeading(text string) string {
	switch {
	case strings.Contains(text, "臺中所") || strings.Contains(text, "台中所"):
		return config.CampusTaichung
	case strings.Contains(text, "高雄所"):
		return config.CampusKaohsiung
	case strings.Contains(text, "院本部") || strings.Contains(text, "本部"):
		return config.CampusHeadquarters
	}
	return ""
}

// CampusFromFilename infers the campus of an offline saved page from its
// file name. Shortened forms without the 所 suffix are accepted here because
// saved files are commonly named by hand.
func CampusFromFilename(name string) string {
	switch {
	case strings.Contains(name, "台中所") || strings.Contains(name, "臺中所") || strings.Contains(name, "台中"):
		return config.CampusTaichung
	case strings.Contains(name, "高雄所") || strings.Contains(name, "高雄"):
		return config.CampusKaohsiung
	case strings.Contains(name, "院本部") || strings.Contains(name, "本部"):
		return config.CampusHeadquarters
	}
	return ""
}
