// Package sentry wraps Sentry SDK initialization for Better Stack error
// tracking. Both the sync CLI and the query server report through it.
package sentry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config holds the Better Stack error tracking settings.
type Config struct {
	// Token is the Better Stack Errors application token. Empty disables
	// error tracking entirely.
	Token string

	// Host is the Better Stack ingesting host, e.g. "errors.betterstack.com".
	Host string

	// Environment identifies the deployment environment.
	Environment string

	// Release identifies the application release version.
	Release string

	// SampleRate controls error sampling (0.0-1.0, zero means 1.0).
	SampleRate float64

	// Debug enables Sentry SDK debug logging.
	Debug bool
}

// Initialize sets up the Sentry SDK. With an empty Token it is a no-op.
// The DSN is built as https://$TOKEN@$HOST/1; Better Stack ignores the
// project ID but the SDK requires one.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return fmt.Errorf("sentry host is required when token is provided")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host),
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
}

// IsEnabled reports whether the SDK was initialized with a client.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureException reports err to the error tracker. No-op when disabled.
func CaptureException(err error) {
	sentry.CaptureException(err)
}

// Flush waits for buffered events to reach the server, up to timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
