package token

import (
	"fmt"
	"net/http"
)

// AccessTokenError means no usable access token could be obtained for this cycle.
type AccessTokenError struct {
	Err error
}

func (e *AccessTokenError) Error() string {
	return fmt.Sprintf("access token: %v", e.Err)
}

func (e *AccessTokenError) Unwrap() error { return e.Err }

// StravaFetchError means the API call failed after the permitted retry, or
// returned data that could not be used. StatusCode is zero when no response
// was received.
type StravaFetchError struct {
	StatusCode int
	Err        error
}

func (e *StravaFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("strava fetch (%d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("strava fetch: %v", e.Err)
}

func (e *StravaFetchError) Unwrap() error { return e.Err }

// RateLimitError is returned when Strava responds 429. Limit and Usage carry
// the X-RateLimit-* headers as sent, e.g. "100,1000" (15 minute, daily).
type RateLimitError struct {
	Limit string
	Usage string
	Err   error
}

func newRateLimitError(h http.Header, err error) *RateLimitError {
	return &RateLimitError{
		Limit: h.Get("X-RateLimit-Limit"),
		Usage: h.Get("X-RateLimit-Usage"),
		Err:   err,
	}
}

func (e *RateLimitError) Error() string {
	if e.Usage != "" {
		return fmt.Sprintf("strava rate limit exceeded (usage %s of %s)", e.Usage, e.Limit)
	}
	return "strava rate limit exceeded"
}

func (e *RateLimitError) Unwrap() error { return e.Err }
