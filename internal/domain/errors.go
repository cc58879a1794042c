package domain

import "fmt"

// Failure codes attached to task records. Raw error text from
// collaborators never crosses the task-record boundary; it is always
// normalized into one of these codes plus a message.
const (
	CodeVideoUnavailable  = "VIDEO_UNAVAILABLE"
	CodeUnsupportedSite   = "UNSUPPORTED_SITE"
	CodeRateLimited       = "RATE_LIMITED"
	CodeExtractionError   = "EXTRACTION_ERROR"
	CodeDownloadError     = "DOWNLOAD_ERROR"
	CodeFileNotFound      = "FILE_NOT_FOUND"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeEmptyPlaylist     = "EMPTY_PLAYLIST"
	CodeMissingStorageURL = "MISSING_STORAGE_URL"
	CodeMissingDependency = "MISSING_DEPENDENCY"
	CodeInvalidStorageURL = "INVALID_STORAGE_URL"
	CodeUploadError       = "UPLOAD_ERROR"
	CodeUnknownError      = "UNKNOWN_ERROR"
)

// TaskError is a classified failure: a stable machine-readable code and
// an operator-readable message. It is the only error shape surfaced to
// task records and callbacks.
type TaskError struct {
	Code    string
	Message string
}

// NewTaskError creates a TaskError with the given code and message.
func NewTaskError(code, message string) *TaskError {
	return &TaskError{Code: code, Message: message}
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether a whole-task re-invocation could plausibly
// succeed. Configuration errors and deterministic source failures are
// never retried.
func (e *TaskError) Retryable() bool {
	switch e.Code {
	case CodeRateLimited, CodeUnknownError:
		return true
	}
	return false
}
