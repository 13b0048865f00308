// Package scraper provides the HTTP client used to fetch TIS course pages.
// It handles rate limiting, retries, gzip bodies and Big5 encoded responses.
package scraper

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/corpix/uarand"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	apperrors "github.com/garyellow/tis-sync-go/internal/errors"
	"github.com/garyellow/tis-sync-go/internal/ratelimit"
)

// Client is an HTTP client for fetching course listing pages.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	maxRetries  int
}

// NewClient creates a scraper client. ratePerMin caps the outbound request
// rate across all goroutines sharing the client.
func NewClient(timeout time.Duration, ratePerMin float64, maxRetries int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: ratelimit.NewPerMinute(ratePerMin),
		maxRetries:  maxRetries,
	}
}

// Get performs a GET request with rate limiting and retries.
// Caller is responsible for closing the response body.
func (c *Client) Get(ctx context.Context, pageURL string) (*http.Response, error) {
	var resp *http.Response

	err := RetryWithBackoff(ctx, c.maxRetries, 1*time.Second, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("User-Agent", uarand.GetRandom())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7")
		req.Header.Set("Accept-Encoding", "gzip, deflate")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return apperrors.NewScraperError(pageURL, 0, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// Close body for non-success responses since we won't return it
			_ = resp.Body.Close()

			statusErr := apperrors.NewScraperError(pageURL, resp.StatusCode, nil)
			switch resp.StatusCode {
			case http.StatusTooManyRequests,
				http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				return statusErr
			case http.StatusNotFound, http.StatusForbidden, http.StatusUnauthorized:
				return Permanent(statusErr)
			default:
				return statusErr
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return resp, nil
}

// GetDocument performs a GET request and parses the response as HTML.
// Gzip bodies are decompressed and Big5 content is transcoded to UTF-8.
func (c *Client) GetDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	reader, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, nil
}

// decodeBody unwraps gzip encoding and transcodes Big5 responses, which the
// TIS pages still serve.
func decodeBody(resp *http.Response) (io.Reader, error) {
	var reader io.Reader = resp.Body

	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gzip: %w", err)
		}
		reader = gzipReader
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(strings.ToUpper(contentType), "BIG5") {
		reader = transform.NewReader(reader, traditionalchinese.Big5.NewDecoder())
	}

	return reader, nil
}
