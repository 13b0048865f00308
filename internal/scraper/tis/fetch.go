package tis

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/tis-sync-go/internal/config"
	"github.com/garyellow/tis-sync-go/internal/course"
	"github.com/garyellow/tis-sync-go/internal/logger"
	"github.com/garyellow/tis-sync-go/internal/metrics"
	"github.com/garyellow/tis-sync-go/internal/scraper"
)

// Scraper fetches and extracts the configured TIS listing pages.
type Scraper struct {
	client  *scraper.Client
	pages   map[string]string // campus label -> page URL
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewScraper creates a page scraper over the given campus page map.
func NewScraper(client *scraper.Client, pages map[string]string, log *logger.Logger) *Scraper {
	return &Scraper{
		client: client,
		pages:  pages,
		log:    log.WithModule("tis-scraper"),
	}
}

// WithMetrics attaches per-page fetch metrics.
func (s *Scraper) WithMetrics(m *metrics.Metrics) *Scraper {
	s.metrics = m
	return s
}

// campusOrder fixes the merge order of the scraped pages.
var campusOrder = []string{
	config.CampusHeadquarters,
	config.CampusTaichung,
	config.CampusKaohsiung,
}

// ScrapeAll fetches every configured campus page concurrently and merges the
// extracted records into one list, campuses in fixed order. A fetch failure
// yields zero records for that page and never fails the run; only context
// cancellation aborts.
func (s *Scraper) ScrapeAll(ctx context.Context) ([]course.Record, error) {
	type page struct {
		campus string
		url    string
	}

	var pages []page
	for _, campus := range s.orderedCampuses() {
		pageURL := s.pages[campus]
		if pageURL == "" {
			s.log.Warn("Page URL not configured, skipping", "campus", campus)
			continue
		}
		pages = append(pages, page{campus: campus, url: pageURL})
	}

	results := make([][]course.Record, len(pages))
	g, ctx := errgroup.WithContext(ctx)

	for i, p := range pages {
		g.Go(func() error {
			start := time.Now()
			doc, err := s.client.GetDocument(ctx, p.url)
			if err != nil {
				s.observe(p.campus, "error", start)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Error("Failed to fetch page", "campus", p.campus, "url", p.url, "error", err)
				return nil
			}
			s.observe(p.campus, "success", start)

			items := Extract(doc, p.campus, p.url)
			s.log.Info("Parsed campus page", "campus", p.campus, "courses", len(items))
			results[i] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []course.Record
	for _, items := range results {
		records = append(records, items...)
	}
	return records, nil
}

// orderedCampuses lists the configured campuses in the fixed merge order,
// followed by any extra entries sorted by label.
func (s *Scraper) orderedCampuses() []string {
	known := make(map[string]bool, len(campusOrder))
	var campuses []string
	for _, campus := range campusOrder {
		known[campus] = true
		if _, ok := s.pages[campus]; ok {
			campuses = append(campuses, campus)
		}
	}

	var extras []string
	for campus := range s.pages {
		if !known[campus] {
			extras = append(extras, campus)
		}
	}
	sort.Strings(extras)
	return append(campuses, extras...)
}

func (s *Scraper) observe(campus, status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordScraperRequest(campus, status, time.Since(start).Seconds())
}
