// Package boxhttp provides the retrying HTTP request executor for the Box API
// with error classification, Retry-After handling, and credential redaction.
package boxhttp

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, boxhttp.ErrNotFound) to check.
var (
	ErrBadRequest     = errors.New("boxhttp: bad request")
	ErrUnauthorized   = errors.New("boxhttp: unauthorized")
	ErrForbidden      = errors.New("boxhttp: forbidden")
	ErrNotFound       = errors.New("boxhttp: not found")
	ErrConflict       = errors.New("boxhttp: conflict")
	ErrThrottled      = errors.New("boxhttp: throttled")
	ErrQuotaExceeded  = errors.New("boxhttp: storage quota exceeded")
	ErrServerError    = errors.New("boxhttp: server error")
	ErrTransport      = errors.New("boxhttp: transport error")
	ErrRetriesAborted = errors.New("boxhttp: retry strategy aborted")
	ErrMaxRetries     = errors.New("boxhttp: max retries exceeded")
)

// RequestError wraps a sentinel error with the originating request (credential
// headers already redacted), the response snapshot if one was received, and
// the HTTP status code. MaxRetriesExceeded is set once the retry budget is
// exhausted on a temporary failure.
type RequestError struct {
	StatusCode         int
	Request            *Request
	Response           *Response
	MaxRetriesExceeded bool
	Err                error // sentinel or transport error, for errors.Is()
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		if e.MaxRetriesExceeded {
			return fmt.Sprintf("boxhttp: HTTP %d after exhausting retries: %v", e.StatusCode, e.Err)
		}

		return fmt.Sprintf("boxhttp: HTTP %d: %v", e.StatusCode, e.Err)
	}

	if e.MaxRetriesExceeded {
		return fmt.Sprintf("boxhttp: request failed after exhausting retries: %v", e.Err)
	}

	return fmt.Sprintf("boxhttp: request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	case http.StatusInsufficientStorage:
		return ErrQuotaExceeded
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// IsTemporary reports whether the given HTTP status code signals a condition
// worth retrying. 5xx codes qualify except 507, which is a permanent quota
// failure. 408 and 429 also qualify.
func IsTemporary(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code == http.StatusInsufficientStorage:
		return false
	default:
		return code >= http.StatusInternalServerError && code < 600
	}
}
