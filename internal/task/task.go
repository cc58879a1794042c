package task

import (
	"context"

	"github.com/google/uuid"
)

// Task type constants
const (
	// TypeDownload represents the task type for fetching remote media
	TypeDownload = "download"
)

// Disposition is the runner-facing outcome of one task execution.
type Disposition int

const (
	// DispositionCompleted means the task reached a terminal state and
	// must not run again. The task has already persisted its outcome.
	DispositionCompleted Disposition = iota

	// DispositionRetry means the failure was transient and a whole-task
	// re-invocation may succeed. The task has not finalized its record.
	DispositionRetry

	// DispositionFatal means the failure is permanent. The task has
	// already persisted the failure and notified its callback.
	DispositionFatal
)

// Result is what a task execution reports back to the runner. Retry is
// a request, not a guarantee; the runner bounds attempts.
type Result struct {
	Disposition Disposition
	Err         error
}

// Completed returns a terminal success result.
func Completed() Result {
	return Result{Disposition: DispositionCompleted}
}

// Retry returns a result asking the runner for another attempt.
func Retry(err error) Result {
	return Result{Disposition: DispositionRetry, Err: err}
}

// Fatal returns a terminal failure result.
func Fatal(err error) Result {
	return Result{Disposition: DispositionFatal, Err: err}
}

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic once and reports how it ended.
	// Terminal dispositions mean the task already committed its own
	// outcome; the runner never writes task records.
	Execute(ctx context.Context) Result

	// Fail finalizes the task after the runner exhausts its retry
	// budget: the last error is committed to the record and the
	// failure callback fires.
	Fail(ctx context.Context, err error)
}

// QueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue
type QueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// QueueWriter provides write access to the task queue
// allowing the API boundary to enqueue tasks for processing
type QueueWriter interface {
	// Enqueue adds a task to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}
