package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vidra/vidra-api/internal/domain"
	"github.com/vidra/vidra-api/internal/store"
)

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// MaxAttempts bounds executions of a task whose failures are
	// reported as retryable. The first execution counts as attempt one.
	MaxAttempts int

	// RetryDelay is the wait before the second attempt; it doubles on
	// each subsequent attempt.
	RetryDelay time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 4,
		QueueSize:   100,
		MaxAttempts: 3,
		RetryDelay:  60 * time.Second,
	}
}

// Factory turns a persisted task record into an executable Task. Used
// on submission and when requeueing records after a restart.
type Factory func(rec *domain.Task) Task

// Runner manages background task processing: a bounded in-memory queue,
// a worker pool draining it, and a bounded retry loop around each task.
type Runner struct {
	store      store.TaskStore
	factory    Factory
	queue      *Queue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewRunner creates a new Runner
func NewRunner(taskStore store.TaskStore, factory Factory, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:      taskStore,
		factory:    factory,
		queue:      NewQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *Runner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit persists a new task record and queues it for execution.
func (r *Runner) Submit(ctx context.Context, rec *domain.Task) error {
	if err := r.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(r.factory(rec)); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Start recovers interrupted work and begins processing tasks
func (r *Runner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	return nil
}

// Stop gracefully shuts down the task runner. In-flight executions run
// against a cancelled context; their records are requeued on the next
// start.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.queue.Close()
	r.wg.Wait()
}

// Recover requeues records left non-terminal by a previous process:
// pending tasks as-is, and tasks interrupted mid-download or mid-upload
// after resetting them to pending.
func (r *Runner) Recover() error {
	ctx := context.Background()

	pending, err := r.store.GetByStatus(ctx, domain.TaskStatusPending)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	var interrupted []*domain.Task
	for _, status := range []domain.TaskStatus{domain.TaskStatusDownloading, domain.TaskStatusUploading} {
		recs, err := r.store.GetByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to get %s tasks: %w", status, err)
		}
		interrupted = append(interrupted, recs...)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"interrupted_count", len(interrupted))

	for _, rec := range pending {
		r.requeue(rec)
	}

	for _, rec := range interrupted {
		// Out-of-band reset: the forward-only state machine has no edge
		// back to pending, but a crashed worker left this record with no
		// owner. Progress restarts from zero.
		rec.Status = domain.TaskStatusPending
		rec.Progress = 0
		rec.StartedAt = nil
		if err := r.store.Update(ctx, rec); err != nil {
			r.logger.Error("failed to reset interrupted task",
				"task_id", rec.ID,
				"error", err)
			continue
		}
		r.requeue(rec)
	}

	return nil
}

func (r *Runner) requeue(rec *domain.Task) {
	if err := r.queue.Enqueue(r.factory(rec)); err != nil {
		r.logger.Error("failed to requeue task",
			"task_id", rec.ID,
			"error", err)
	}
}

// Queue exposes the submission side of the runner's queue.
func (r *Runner) Queue() QueueWriter {
	return r.queue
}

// worker processes tasks from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case t, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			r.processTask(t, id)
		}
	}
}

// processTask drives one task through its bounded attempt loop. The
// task owns its record; the runner only decides whether another
// attempt happens.
func (r *Runner) processTask(t Task, workerID int) {
	logger := r.logger.With(
		"task_id", t.ID(),
		"task_type", t.Type(),
		"worker_id", workerID,
	)

	for attempt := 1; ; attempt++ {
		logger.Info("executing task", "attempt", attempt)

		result := t.Execute(r.ctx)

		switch result.Disposition {
		case DispositionCompleted:
			logger.Info("task finished", "attempt", attempt)
			return

		case DispositionFatal:
			r.errHandler(t, result.Err)
			return

		case DispositionRetry:
			if attempt >= r.config.MaxAttempts {
				logger.Error("task retry budget exhausted",
					"attempts", attempt,
					"error", result.Err)
				t.Fail(r.ctx, result.Err)
				r.errHandler(t, result.Err)
				return
			}

			delay := r.config.RetryDelay << (attempt - 1)
			logger.Warn("task attempt failed, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", result.Err)

			timer := time.NewTimer(delay)
			select {
			case <-r.ctx.Done():
				timer.Stop()
				// Shutdown mid-backoff; the record stays non-terminal
				// and is requeued by the next start's recovery pass.
				return
			case <-timer.C:
			}

		default:
			logger.Error("task returned unknown disposition",
				"disposition", int(result.Disposition))
			return
		}
	}
}
