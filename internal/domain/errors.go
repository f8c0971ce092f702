package domain

import (
	"errors"
	"fmt"
)

// The acquisition pipeline fails closed: every rejection carries a distinct
// error type so callers can pattern-match retry-vs-abort decisions.

// ConfigurationError: missing credential or sample mode not enabled. Not retryable.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s", e.Reason)
}

// UpstreamError: non-200 response from the flow API. Retryable by the wrapper.
// Endpoint is key-redacted and safe to log.
type UpstreamError struct {
	Service    string
	StatusCode int
	Endpoint   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s fetch failed: status=%d endpoint=%s", e.Service, e.StatusCode, e.Endpoint)
}

// SchemaError: a required field is missing or malformed in the upstream
// payload. A different upstream schema version must not silently degrade
// quality, so no default is ever substituted.
type SchemaError struct {
	SegmentID string
	Field     string
	Reason    string
	Endpoint  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("field %q %s segment=%s endpoint=%s", e.Field, e.Reason, e.SegmentID, e.Endpoint)
}

// ConfidenceError: telemetry below the configured confidence threshold.
// Low-confidence telemetry is worse than no telemetry for a physical model.
type ConfidenceError struct {
	SegmentID  string
	Confidence float64
	Min        float64
}

func (e *ConfidenceError) Error() string {
	return fmt.Sprintf("confidence %.3f < min %.3f segment=%s", e.Confidence, e.Min, e.SegmentID)
}

// GeometryError: degenerate or insufficient polyline geometry.
type GeometryError struct {
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry: %s", e.Reason)
}

// RateLimitedError: the per-service minimum call interval has not elapsed.
// Callers may retry after WaitSeconds.
type RateLimitedError struct {
	Service     string
	WaitSeconds float64
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate-limited: retry_after_seconds=%.1f", e.Service, e.WaitSeconds)
}

// StorageError: the cache medium is unreadable or unwritable. Caching is an
// optimization, so callers log these instead of failing the cycle.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache %s key=%s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Retryable reports whether the fetch wrapper should retry after err.
// Validation failures and rate limiting are terminal for the current cycle;
// upstream and transport failures are worth another attempt.
func Retryable(err error) bool {
	var (
		confErr *ConfigurationError
		schema  *SchemaError
		conf    *ConfidenceError
		geom    *GeometryError
		limited *RateLimitedError
	)
	switch {
	case errors.As(err, &confErr),
		errors.As(err, &schema),
		errors.As(err, &conf),
		errors.As(err, &geom),
		errors.As(err, &limited):
		return false
	}
	return true
}
