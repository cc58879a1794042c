package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vidra/vidra-api/internal/domain"
	"github.com/vidra/vidra-api/internal/download"
	"github.com/vidra/vidra-api/internal/store"
)

// Submitter persists a new task record and queues it for execution.
type Submitter interface {
	Submit(ctx context.Context, rec *domain.Task) error
}

// Prober extracts media metadata without downloading.
type Prober interface {
	Probe(ctx context.Context, url string) (*domain.MediaInfo, []download.FormatInfo, error)
}

// CreateTaskParams are the caller-supplied inputs for one submission.
type CreateTaskParams struct {
	VideoURL    string
	CallbackURL string
	StorageType domain.StorageType
	StorageURL  string
	Options     domain.DownloadOptions
}

// TaskService orchestrates task operations between the HTTP boundary,
// the store and the background runner.
type TaskService struct {
	db        *sql.DB
	tasks     store.TaskStore
	txTasks   func(tx *sql.Tx) store.TaskStore
	submitter Submitter
	prober    Prober
	logger    *slog.Logger
}

// NewTaskService creates a TaskService. db and txTasks may be nil; the
// cancel path then loses its transactional read-check-write and falls
// back to plain store calls.
func NewTaskService(
	db *sql.DB,
	tasks store.TaskStore,
	txTasks func(tx *sql.Tx) store.TaskStore,
	submitter Submitter,
	prober Prober,
	logger *slog.Logger,
) *TaskService {
	return &TaskService{
		db:        db,
		tasks:     tasks,
		txTasks:   txTasks,
		submitter: submitter,
		prober:    prober,
		logger:    logger,
	}
}

// Create validates the submission, persists a pending record and hands
// it to the runner.
func (s *TaskService) Create(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	opts := params.Options.Normalize()
	if !domain.IsValidVideoQuality(opts.VideoQuality) {
		return nil, fmt.Errorf("%w: invalid video quality %q", ErrInvalidRequest, opts.VideoQuality)
	}
	if params.StorageType != "" && params.StorageType != domain.StorageTypeLocal && params.StorageURL == "" {
		return nil, fmt.Errorf("%w: storage_url is required for storage type %s", ErrInvalidRequest, params.StorageType)
	}

	rec, err := domain.NewTask(
		params.VideoURL,
		params.CallbackURL,
		params.StorageType,
		params.StorageURL,
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if err := s.submitter.Submit(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("task submitted",
		"task_id", rec.ID,
		"video_url", rec.VideoURL,
		"storage_type", rec.StorageType)
	return rec, nil
}

// Get loads one task record.
func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// List returns one page of task records.
func (s *TaskService) List(ctx context.Context, filter store.ListFilter) (*store.TaskPage, error) {
	return s.tasks.List(ctx, filter)
}

// Cancel marks a task cancelled if it is still in its cancellable
// window. The read and write happen in one transaction so a worker's
// concurrent whole-record commit cannot interleave.
func (s *TaskService) Cancel(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if s.db == nil || s.txTasks == nil {
		return s.cancelWith(ctx, s.tasks, id)
	}

	var cancelled *domain.Task
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := s.cancelWith(ctx, s.txTasks(tx), id)
		if err != nil {
			return err
		}
		cancelled = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *TaskService) cancelWith(ctx context.Context, tasks store.TaskStore, id uuid.UUID) (*domain.Task, error) {
	rec, err := tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Cancellable() {
		return nil, fmt.Errorf("%w: status is %s", ErrNotCancellable, rec.Status)
	}
	if err := rec.Transition(domain.TaskStatusCancelled); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCancellable, err)
	}
	if err := tasks.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("task cancelled", "task_id", rec.ID)
	return rec, nil
}

// VideoInfo probes the URL for metadata and available formats without
// creating a task.
func (s *TaskService) VideoInfo(ctx context.Context, url string) (*domain.MediaInfo, []download.FormatInfo, error) {
	return s.prober.Probe(ctx, url)
}

// StatusCounts returns task counts keyed by status, for health
// reporting.
func (s *TaskService) StatusCounts(ctx context.Context) (map[domain.TaskStatus]int, error) {
	return s.tasks.CountByStatus(ctx)
}
