package workspace

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Common Google API errors.
var (
	// ErrUnauthorized indicates invalid or expired credentials.
	ErrUnauthorized = errors.New("google: unauthorised (invalid credentials)")

	// ErrForbidden indicates insufficient permissions.
	ErrForbidden = errors.New("google: forbidden (insufficient permissions)")

	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("google: resource not found")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("google: rate limit exceeded")

	// ErrQuotaExceeded indicates the daily API quota was exceeded.
	ErrQuotaExceeded = errors.New("google: quota exceeded")

	// ErrBadRequest indicates Google rejected the request parameters.
	ErrBadRequest = errors.New("google: bad request")

	// ErrGone indicates a sync token or resource is no longer valid (410).
	ErrGone = errors.New("google: resource gone")
)

func apiCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

// IsUnauthorized returns true if the error indicates invalid credentials.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || apiCode(err) == http.StatusUnauthorized
}

// IsForbidden returns true if the error indicates insufficient permissions.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) || apiCode(err) == http.StatusForbidden
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || apiCode(err) == http.StatusNotFound
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited) || apiCode(err) == http.StatusTooManyRequests
}

// isQuotaExceeded detects the 403 Google sends for exhausted daily quotas.
func isQuotaExceeded(gerr *googleapi.Error) bool {
	if gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "dailyLimitExceeded", "quotaExceeded", "userRateLimitExceeded", "rateLimitExceeded":
			return true
		}
	}
	return false
}

// APIError keeps the Google error while matching a sentinel with errors.Is.
type APIError struct {
	Kind  error
	Cause *googleapi.Error
}

func (e *APIError) Error() string {
	return e.Kind.Error() + ": " + e.Cause.Error()
}

// Is matches the sentinel kind.
func (e *APIError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the Google error.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// WrapError converts a Google API error to one matching a sentinel.
// The original *googleapi.Error stays reachable through errors.As.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	var kind error
	switch {
	case gerr.Code == http.StatusBadRequest:
		kind = ErrBadRequest
	case gerr.Code == http.StatusUnauthorized:
		kind = ErrUnauthorized
	case isQuotaExceeded(gerr):
		kind = ErrQuotaExceeded
	case gerr.Code == http.StatusForbidden:
		kind = ErrForbidden
	case gerr.Code == http.StatusNotFound:
		kind = ErrNotFound
	case gerr.Code == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case gerr.Code == http.StatusGone:
		kind = ErrGone
	default:
		return err
	}
	return &APIError{Kind: kind, Cause: gerr}
}

// retryableStatuses are answered by Google for transient conditions.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsRetryable reports whether retrying the call may succeed. Context
// cancellation and deadline expiry are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if code := apiCode(err); code != 0 {
		return retryableStatuses[code]
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
