package stripe

import "errors"

var (
	// ErrInvalidRequest is returned when the request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrNotConfigured is returned when an API call needs a secret key that is not set
	ErrNotConfigured = errors.New("stripe is not configured")

	// ErrSignatureVerification is returned when a webhook signature does not match
	ErrSignatureVerification = errors.New("webhook signature verification failed")

	// ErrUnexpectedPayload is returned when a webhook body cannot be decoded
	ErrUnexpectedPayload = errors.New("unexpected webhook payload")
)
