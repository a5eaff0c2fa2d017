package discogs

import "errors"

var (
	// ErrInvalidConfig is returned when the client configuration is incomplete
	ErrInvalidConfig = errors.New("invalid discogs config")

	// ErrNetworkError is returned when the request never got a response
	ErrNetworkError = errors.New("network error")

	// ErrRateLimited is returned after Discogs keeps answering 429
	ErrRateLimited = errors.New("rate limited")

	// ErrServerError is returned after Discogs keeps answering 5xx
	ErrServerError = errors.New("discogs server error")

	// ErrRequestRejected is returned for any other non-200 status; it is never retried
	ErrRequestRejected = errors.New("request rejected")
)
