// Package config defines environment variable keys for configuration.
package config

//nolint:gosec // Environment variable keys are not credentials.
const (
	// Row store (required for online sync and the query API)
	EnvSupabaseURL        = "TIS_SUPABASE_URL"
	EnvSupabaseServiceKey = "TIS_SUPABASE_SERVICE_ROLE_KEY"

	// TIS source pages
	EnvTISBaseURL          = "TIS_BASE_URL"
	EnvTISPageHeadquarters = "TIS_PAGE_HEADQUARTERS"
	EnvTISPageTaichung     = "TIS_PAGE_TAICHUNG"
	EnvTISPageKaohsiung    = "TIS_PAGE_KAOHSIUNG"

	// Embedding
	EnvGeminiAPIKey = "TIS_GEMINI_API_KEY"
	EnvTopK         = "TIS_TOP_K"

	// Server
	EnvPort            = "TIS_PORT"
	EnvLogLevel        = "TIS_LOG_LEVEL"
	EnvShutdownTimeout = "TIS_SHUTDOWN_TIMEOUT"

	// Data
	EnvDataDir = "TIS_DATA_DIR"

	// Scraper
	EnvScraperTimeout    = "TIS_SCRAPER_TIMEOUT"
	EnvScraperMaxRetries = "TIS_SCRAPER_MAX_RETRIES"
	EnvScraperRatePerMin = "TIS_SCRAPER_RATE_PER_MIN"

	// Metrics Auth
	EnvMetricsUsername = "TIS_METRICS_USERNAME"
	EnvMetricsPassword = "TIS_METRICS_PASSWORD"

	// Sentry (Better Stack errors)
	EnvSentryToken       = "TIS_SENTRY_TOKEN"
	EnvSentryHost        = "TIS_SENTRY_HOST"
	EnvSentryEnvironment = "TIS_SENTRY_ENVIRONMENT"
	EnvSentryRelease     = "TIS_SENTRY_RELEASE"

	// R2 delta log (optional audit artifact of sync runs)
	EnvR2Enabled         = "TIS_R2_ENABLED"
	EnvR2Endpoint        = "TIS_R2_ENDPOINT"
	EnvR2AccessKeyID     = "TIS_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "TIS_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "TIS_R2_BUCKET_NAME"
	EnvR2DeltaPrefix     = "TIS_R2_DELTA_PREFIX"
	EnvInstanceID        = "TIS_INSTANCE_ID"
)
