// Package config provides application configuration management.
// It loads settings from environment variables and provides defaults for
// the sync pipeline, the query API server, timeouts and the scraper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Campus labels used across the extractor and the offline loader.
// CampusUnspecified is the sentinel for "not known yet"; the extractor then
// tries to recover the campus from the page heading.
const (
	CampusHeadquarters = "院本部"
	CampusTaichung     = "台中所"
	CampusKaohsiung    = "高雄所"
	CampusUnspecified  = "離線"
)

// Config holds all application configuration
type Config struct {
	// Row store (Supabase)
	SupabaseURL        string
	SupabaseServiceKey string

	// TIS source pages, keyed by campus label
	TISBaseURL string
	TISPages   map[string]string

	// Embedding
	GeminiAPIKey string
	TopK         int

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir string // Directory for the local SQLite store (offline/dry-run target)

	// Scraper Configuration
	ScraperTimeout    time.Duration
	ScraperMaxRetries int
	ScraperRatePerMin float64

	// Metrics Authentication
	MetricsUsername string
	MetricsPassword string // empty = no auth

	// Sentry (Better Stack errors)
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentryRelease     string

	// R2 delta log
	R2Enabled         bool
	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2DeltaPrefix     string
	InstanceID        string
}

// Load reads configuration from environment variables.
// It attempts to load .env file first, then reads from env vars.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	baseURL := strings.TrimRight(getEnv(EnvTISBaseURL, ""), "/")

	cfg := &Config{
		SupabaseURL:        getEnv(EnvSupabaseURL, ""),
		SupabaseServiceKey: getEnv(EnvSupabaseServiceKey, ""),

		TISBaseURL: baseURL,
		TISPages: map[string]string{
			CampusHeadquarters: getEnv(EnvTISPageHeadquarters, defaultPageURL(baseURL, "P")),
			CampusTaichung:     getEnv(EnvTISPageTaichung, defaultPageURL(baseURL, "T")),
			CampusKaohsiung:    getEnv(EnvTISPageKaohsiung, defaultPageURL(baseURL, "K")),
		},

		GeminiAPIKey: getEnv(EnvGeminiAPIKey, ""),
		TopK:         getIntEnv(EnvTopK, 10),

		Port:            getEnv(EnvPort, "8000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, 30*time.Second),

		DataDir: getEnv(EnvDataDir, "./data"),

		ScraperTimeout:    getDurationEnv(EnvScraperTimeout, 30*time.Second),
		ScraperMaxRetries: getIntEnv(EnvScraperMaxRetries, 3),
		ScraperRatePerMin: getFloatEnv(EnvScraperRatePerMin, 30),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, "errors.betterstack.com"),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentryRelease:     getEnv(EnvSentryRelease, ""),

		R2Enabled:         getBoolEnv(EnvR2Enabled, false),
		R2Endpoint:        getEnv(EnvR2Endpoint, ""),
		R2AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:      getEnv(EnvR2BucketName, ""),
		R2DeltaPrefix:     getEnv(EnvR2DeltaPrefix, "delta/courses"),
		InstanceID:        getEnv(EnvInstanceID, ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration consistency. Store credentials are not
// required here: the sync CLI accepts dry-run and local modes without them,
// and enforces them itself otherwise.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New(EnvPort+" is required"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvShutdownTimeout, c.ShutdownTimeout))
	}
	if c.ScraperTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvScraperTimeout, c.ScraperTimeout))
	}
	if c.ScraperMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvScraperMaxRetries, c.ScraperMaxRetries))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvTopK, c.TopK))
	}
	if c.R2Enabled {
		if c.R2Endpoint == "" || c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" || c.R2BucketName == "" {
			errs = append(errs, errors.New("R2 delta log enabled but endpoint/credentials/bucket incomplete"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// HasStore returns true if row store credentials are configured.
func (c *Config) HasStore() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// SQLitePath returns the full path to the local SQLite database file.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "courses.db")
}

// defaultPageURL builds the per-campus TIS query URL from the base URL.
// Returns empty when no base URL is configured so the fetcher can skip it.
func defaultPageURL(baseURL, department string) string {
	if baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/classDoneQueryByPro.jsp?department=%s&dtype1=C&dtype2=AD", baseURL, department)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
