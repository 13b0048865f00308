// Package main provides the course query API server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/garyellow/tis-sync-go/internal/config"
	"github.com/garyellow/tis-sync-go/internal/genai"
	"github.com/garyellow/tis-sync-go/internal/logger"
	"github.com/garyellow/tis-sync-go/internal/metrics"
	"github.com/garyellow/tis-sync-go/internal/sentry"
	"github.com/garyellow/tis-sync-go/internal/similarity"
	"github.com/garyellow/tis-sync-go/internal/storage"
	"github.com/garyellow/tis-sync-go/internal/supabase"
)

// HTTP server timeouts. Queries are short; the write timeout leaves room
// for one embedding round trip with retries.
const (
	httpReadTimeout  = 10 * time.Second
	httpWriteTimeout = 60 * time.Second
	httpIdleTimeout  = 120 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Starting TIS course query server")

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
	}); err != nil {
		log.WithError(err).Warn("Failed to initialize error tracking")
	}
	defer sentry.Flush(2 * time.Second)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	embedder := genai.NewEmbeddingClient(cfg.GeminiAPIKey)

	var (
		querySvc queryService
		ready    pinger
		cleanup  = func() {}
	)
	if cfg.HasStore() {
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			log.WithError(err).Fatal("Failed to create row store client")
		}
		client = client.WithMetrics(m)
		ready = client
		querySvc = newQueryService(client, client, embedder, log)
		log.Info("Serving queries from hosted row store")
	} else {
		db, err := storage.New(cfg.SQLitePath())
		if err != nil {
			log.WithError(err).Fatal("Failed to open local store")
		}
		cleanup = func() { _ = db.Close() }
		store := storage.NewStore(db)
		ready = store
		querySvc = newQueryService(store, store, embedder, log)
		log.WithField("path", db.Path()).Info("Serving queries from local SQLite store")
	}
	defer cleanup()

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(log))

	setupRoutes(router, routeDeps{
		query:    querySvc,
		embedder: embedder,
		ready:    ready,
		metrics:  m,
		registry: registry,
		cfg:      cfg,
		log:      log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server stopped")
}

// newQueryService picks the semantic backend when an embedding provider is
// configured, otherwise BM25 keyword ranking over the same store.
func newQueryService(matcher similarity.Matcher, lister similarity.Lister, embedder *genai.EmbeddingClient, log *logger.Logger) queryService {
	if embedder.IsConfigured() {
		log.Info("Semantic search enabled")
		return similarity.NewService(matcher, embedder)
	}
	log.Info("Gemini API key not configured, using keyword ranking")
	return similarity.NewLexicalService(lister, log)
}
