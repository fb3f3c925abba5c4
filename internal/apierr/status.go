package apierr

import (
	"net/http"
	"strings"
)

// ClassifyStatus returns the sentinel for an HTTP status code, or nil when
// the status carries no known meaning. msg disambiguates 429 responses:
// quota and billing problems need user action and are not retried.
func ClassifyStatus(status int, msg string) error {
	switch {
	case status == http.StatusTooManyRequests:
		if strings.Contains(msg, "quota") || strings.Contains(msg, "billing") {
			return ErrQuotaExceeded
		}
		return ErrRateLimit
	case status == http.StatusUnauthorized:
		return ErrAuthFailed
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status == http.StatusRequestEntityTooLarge:
		return ErrSizeExceeded
	case status == http.StatusBadRequest, status == http.StatusForbidden, status == http.StatusNotFound:
		return ErrBadRequest
	case status >= http.StatusInternalServerError:
		return ErrServerError
	}
	return nil
}
