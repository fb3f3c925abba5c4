// Package apierr provides shared error sentinels and the retry policy used
// by remote service clients (transcription, tagging). Provider-specific
// failures are classified into these sentinels at the adapter boundary.
//
// Adapters map HTTP status codes with fmt.Errorf("%s: %w", msg, sentinel).
// Callers check with errors.Is(err, apierr.ErrRateLimit) etc.
package apierr

import "errors"

// Transient failures. Retried by the policy, then degraded by the caller.
var (
	// ErrRateLimit indicates the API rate limit was exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrSizeExceeded indicates the request payload was rejected as too large.
	ErrSizeExceeded = errors.New("payload size exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrServerError indicates a 5xx response from the service.
	ErrServerError = errors.New("server error")
)

// Fatal failures. Never retried; they abort the recording.
var (
	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrAuthFailed indicates API authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")
)

// ErrRetriesExhausted wraps the last error once a RetryPolicy runs out of attempts.
var ErrRetriesExhausted = errors.New("retries exhausted")

// IsTransient reports whether err belongs to the retryable class.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrSizeExceeded) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServerError)
}
