package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrUnsupported        = fmt.Errorf("operation not supported by provider")

	// Library and reconciliation errors
	ErrNotFound          = fmt.Errorf("not found")
	ErrNoMatch           = fmt.Errorf("no match found")
	ErrExhausted         = fmt.Errorf("source exhausted")
	ErrNoRecommendations = fmt.Errorf("no recommendations found")
	ErrBuilderConsumed   = fmt.Errorf("merge builder already built")
	ErrLimiterClosed     = fmt.Errorf("rate limiter closed")
	ErrCacheClosed       = fmt.Errorf("cache closed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// FetchError is returned by strict cache reads when the underlying fetch failed
// or resolved to no value. Unwraps to the cause.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsCancellation reports whether err represents intentional shutdown.
// These errors are re-raised as-is and never logged as failures.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
