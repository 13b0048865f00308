// Package main provides the course query API server entry point.
package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/tis-sync-go/internal/config"
	apperrors "github.com/garyellow/tis-sync-go/internal/errors"
	"github.com/garyellow/tis-sync-go/internal/logger"
	"github.com/garyellow/tis-sync-go/internal/metrics"
	"github.com/garyellow/tis-sync-go/internal/sentry"
	"github.com/garyellow/tis-sync-go/internal/similarity"
)

// queryService answers similarity queries, semantic or keyword-ranked.
type queryService interface {
	Query(ctx context.Context, req similarity.Request) (*similarity.Response, error)
}

// embedder serves the standalone embedding endpoint.
type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// pinger is the readiness probe dependency.
type pinger interface {
	Ping(ctx context.Context) error
}

type routeDeps struct {
	query    queryService
	embedder embedder
	ready    pinger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	cfg      *config.Config
	log      *logger.Logger
}

// embeddingRequest is the body of POST /api/embedding. Title is required;
// the embedded text is the non-empty fields joined by single spaces.
type embeddingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Audience    string `json:"audience"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Dim       int       `json:"dim"`
}

// setupRoutes configures all HTTP routes.
func setupRoutes(router *gin.Engine, deps routeDeps) {
	rootHandler := func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "https://github.com/garyellow/tis-sync-go")
	}
	router.GET("/", rootHandler)
	router.HEAD("/", rootHandler)

	// Liveness probe, never checks dependencies.
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/healthz", healthHandler)
	router.HEAD("/healthz", healthHandler)

	// Readiness probe checks the row store.
	readyHandler := func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := deps.ready.Ping(checkCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "store": "connected"})
	}
	router.GET("/ready", readyHandler)
	router.HEAD("/ready", readyHandler)

	router.POST("/api/similarity", similarityHandler(deps))
	router.POST("/api/embedding", embeddingHandler(deps))

	metricsHandler := gin.WrapH(promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{}))
	if deps.cfg.MetricsPassword != "" {
		authorized := router.Group("/", gin.BasicAuth(gin.Accounts{
			deps.cfg.MetricsUsername: deps.cfg.MetricsPassword,
		}))
		authorized.GET("/metrics", metricsHandler)
	} else {
		router.GET("/metrics", metricsHandler)
	}
}

func similarityHandler(deps routeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req similarity.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			deps.observeQuery("similarity", "bad_request", start)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		resp, err := deps.query.Query(c.Request.Context(), req)
		if err != nil {
			var verr *apperrors.ValidationError
			if errors.As(err, &verr) {
				deps.observeQuery("similarity", "bad_request", start)
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
				return
			}
			deps.log.WithError(err).Error("Similarity query failed")
			sentry.CaptureException(err)
			deps.observeQuery("similarity", "error", start)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}

		deps.observeQuery("similarity", "success", start)
		c.JSON(http.StatusOK, resp)
	}
}

func embeddingHandler(deps routeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req embeddingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			deps.observeQuery("embedding", "bad_request", start)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			deps.observeQuery("embedding", "bad_request", start)
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}

		vec, err := deps.embedder.Embed(c.Request.Context(), embeddingText(req))
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrEmbeddingUnavailable):
				deps.observeQuery("embedding", "unavailable", start)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "embedding provider not configured"})
			default:
				deps.log.WithError(err).Error("Embedding request failed")
				sentry.CaptureException(err)
				deps.observeQuery("embedding", "error", start)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "embedding failed"})
			}
			return
		}

		deps.observeQuery("embedding", "success", start)
		c.JSON(http.StatusOK, embeddingResponse{Embedding: vec, Dim: len(vec)})
	}
}

// embeddingText joins the non-empty request fields with single spaces.
func embeddingText(req embeddingRequest) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{req.Title, req.Description, req.Audience} {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

func (d routeDeps) observeQuery(endpoint, status string, start time.Time) {
	if d.metrics != nil {
		d.metrics.RecordQueryRequest(endpoint, status, time.Since(start).Seconds())
	}
}
