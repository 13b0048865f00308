package tis

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/garyellow/tis-sync-go/internal/config"
	"github.com/garyellow/tis-sync-go/internal/course"
	"github.com/garyellow/tis-sync-go/internal/logger"
)

// LoadDir extracts course records from saved HTML pages in dir. campus
// overrides the campus label for every file; when empty, the campus is
// inferred per file from the file name, then from the page heading.
// A file that cannot be read or parsed is logged and skipped.
func LoadDir(dir, campus string, log *logger.Logger) ([]course.Record, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("offline directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("offline path %s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read offline directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".html" || ext == ".htm" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		log.Warn("No .html/.htm files in offline directory", "dir", dir)
		return nil, nil
	}

	var records []course.Record
	for _, name := range files {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			log.Warn("Failed to open offline file", "file", path, "error", err)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(f)
		_ = f.Close()
		if err != nil {
			log.Warn("Failed to parse offline file", "file", path, "error", err)
			continue
		}

		fileCampus := campus
		if fileCampus == "" || fileCampus == config.CampusUnspecified {
			stem := strings.TrimSuffix(name, filepath.Ext(name))
			if inferred := CampusFromFilename(stem); inferred != "" {
				fileCampus = inferred
			}
			// Heading-based inference inside Extract covers the rest.
		}

		// The offline: prefix keeps saved pages from being mistaken for
		// online URLs during relative link resolution.
		items := Extract(doc, fileCampus, "offline:"+path)
		log.Info("Parsed offline file", "file", name, "courses", len(items))
		records = append(records, items...)
	}

	return records, nil
}
