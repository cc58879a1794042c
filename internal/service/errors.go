package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// Callers check these with errors.Is(); the API layer maps them to HTTP
// status codes.
var (
	// ErrNotCancellable indicates a cancellation request arrived after
	// the task left its cancellable window. Maps to HTTP 409 Conflict.
	ErrNotCancellable = errors.New("task can no longer be cancelled")

	// ErrInvalidRequest indicates the submitted parameters fail domain
	// validation. Maps to HTTP 400 Bad Request.
	ErrInvalidRequest = errors.New("invalid task request")
)
