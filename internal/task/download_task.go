package task

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vidra/vidra-api/internal/callback"
	"github.com/vidra/vidra-api/internal/domain"
	"github.com/vidra/vidra-api/internal/download"
	"github.com/vidra/vidra-api/internal/store"
)

// Persisted progress moves in steps of at least this many percent;
// finer updates are dropped to keep write volume bounded.
const progressStep = 5.0

// cancelPollInterval bounds how often an in-flight download re-reads
// its record to notice an external cancellation.
const cancelPollInterval = 2 * time.Second

// Common construction errors
var (
	ErrNilStore      = errors.New("task store cannot be nil")
	ErrNilDownloader = errors.New("downloader cannot be nil")
	ErrNilUploader   = errors.New("uploader cannot be nil")
	ErrNilNotifier   = errors.New("notifier cannot be nil")
	ErrNilTaskLogger = errors.New("logger cannot be nil")
	ErrNilRecord     = errors.New("task record cannot be nil")
)

// Downloader defines the download operations the controller needs
type Downloader interface {
	// Probe extracts metadata for the URL without downloading
	Probe(ctx context.Context, url string) (*domain.MediaInfo, []download.FormatInfo, error)

	// Download fetches the media, reporting progress via progressFn
	Download(ctx context.Context, url string, opts domain.DownloadOptions, progressFn download.ProgressFunc) (*download.Outcome, error)
}

// Uploader defines the storage dispatch operation the controller needs
type Uploader interface {
	// Upload lands a local artifact at its destination and returns the
	// durable URL
	Upload(ctx context.Context, localPath string, storageType domain.StorageType, storageURL string, deleteLocal bool) (string, error)
}

// Notifier defines the callback delivery operation the controller needs
type Notifier interface {
	// Send posts the payload to callbackURL, retrying internally, and
	// reports whether any attempt got through
	Send(ctx context.Context, callbackURL string, payload any) bool
}

// DownloadDeps bundles the collaborators of a DownloadTask.
type DownloadDeps struct {
	Store      store.TaskStore
	Downloader Downloader
	Uploader   Uploader
	Notifier   Notifier
	Logger     *slog.Logger

	// DeleteLocalAfterUpload removes the local artifact once a cloud
	// upload succeeds.
	DeleteLocalAfterUpload bool
}

func (d DownloadDeps) validate() error {
	switch {
	case d.Store == nil:
		return ErrNilStore
	case d.Downloader == nil:
		return ErrNilDownloader
	case d.Uploader == nil:
		return ErrNilUploader
	case d.Notifier == nil:
		return ErrNilNotifier
	case d.Logger == nil:
		return ErrNilTaskLogger
	}
	return nil
}

// DownloadTask drives one task record through its lifecycle: probe,
// download, upload, callback. It owns every write to the record; the
// runner only decides whether a failed execution runs again.
type DownloadTask struct {
	rec    *domain.Task
	deps   DownloadDeps
	logger *slog.Logger
}

// NewDownloadTask creates the executable task for a persisted record.
func NewDownloadTask(rec *domain.Task, deps DownloadDeps) (*DownloadTask, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNilRecord
	}
	return &DownloadTask{
		rec:    rec,
		deps:   deps,
		logger: deps.Logger.With("task_type", TypeDownload, "task_id", rec.ID),
	}, nil
}

// NewDownloadFactory returns a Factory closing over the shared
// collaborators. Dependencies must be valid; the factory is built once
// at startup.
func NewDownloadFactory(deps DownloadDeps) (Factory, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return func(rec *domain.Task) Task {
		t, _ := NewDownloadTask(rec, deps)
		return t
	}, nil
}

// ID returns the task's unique identifier
func (t *DownloadTask) ID() uuid.UUID {
	return t.rec.ID
}

// Type returns the task type identifier
func (t *DownloadTask) Type() string {
	return TypeDownload
}

// Execute runs the download lifecycle once.
func (t *DownloadTask) Execute(ctx context.Context) Result {
	// Work from a fresh copy of the record: a cancellation may have
	// landed while the task sat in the queue.
	rec, err := t.deps.Store.GetByID(ctx, t.rec.ID)
	if err != nil {
		if store.IsNotFoundError(err) {
			t.logger.Error("task record disappeared before execution", "error", err)
			return Fatal(err)
		}
		return Retry(err)
	}
	if rec.Terminal() {
		t.logger.Info("skipping terminal task", "status", rec.Status)
		return Completed()
	}
	t.rec = rec

	// Metadata probe is cosmetic; the pipeline proceeds without it.
	if info, _, probeErr := t.deps.Downloader.Probe(ctx, rec.VideoURL); probeErr == nil {
		rec.Info = info
	} else {
		t.logger.Warn("metadata probe failed", "error", probeErr)
	}

	// A record already in downloading state is a retry attempt
	// re-entering the pipeline; the transition applies only once.
	if rec.Status != domain.TaskStatusDownloading {
		if err := rec.Transition(domain.TaskStatusDownloading); err != nil {
			return t.fatal(ctx, domain.NewTaskError(domain.CodeUnknownError, err.Error()))
		}
	}
	if rec.StartedAt == nil {
		now := time.Now().UTC()
		rec.StartedAt = &now
	}
	rec.Progress = 0
	if err := t.deps.Store.Update(ctx, rec); err != nil {
		return Retry(err)
	}

	outcome, err := t.download(ctx, rec)
	if err != nil {
		if cur, getErr := t.deps.Store.GetByID(ctx, rec.ID); getErr == nil &&
			cur.Status == domain.TaskStatusCancelled {
			// The record was already cancelled externally; the failed
			// fetch is just the interrupt landing.
			t.logger.Info("download interrupted by cancellation")
			return Completed()
		}
		return t.failOrRetry(ctx, err)
	}

	if outcome.Info.Title != "" {
		rec.Info = &outcome.Info
	}
	rec.LocalPath = outcome.Path
	rec.FileName = outcome.FileName
	rec.FileSize = outcome.FileSize

	// Local storage has no upload phase; the record goes straight
	// from downloading to completed.
	if rec.StorageType != domain.StorageTypeLocal {
		if err := rec.Transition(domain.TaskStatusUploading); err != nil {
			return t.fatal(ctx, domain.NewTaskError(domain.CodeUnknownError, err.Error()))
		}
		if err := t.deps.Store.Update(ctx, rec); err != nil {
			t.logger.Warn("failed to persist uploading state", "error", err)
		}
	}

	downloadURL, uploadErr := t.deps.Uploader.Upload(
		ctx, outcome.Path, rec.StorageType, rec.StorageURL, t.deps.DeleteLocalAfterUpload)
	if uploadErr != nil {
		// The artifact exists locally; serve it from there rather than
		// discarding a finished download.
		t.logger.Warn("upload failed, falling back to local artifact",
			"storage_type", rec.StorageType,
			"error", uploadErr)
		rec.ErrorMessage = "Storage upload failed: " + uploadErr.Error()
		downloadURL = "file://" + outcome.Path
	} else if t.deps.DeleteLocalAfterUpload && rec.StorageType != domain.StorageTypeLocal {
		rec.LocalPath = ""
	}

	rec.DownloadURL = downloadURL
	rec.Progress = 100
	completedAt := time.Now().UTC()
	rec.CompletedAt = &completedAt
	if err := rec.Transition(domain.TaskStatusCompleted); err != nil {
		return t.fatal(ctx, domain.NewTaskError(domain.CodeUnknownError, err.Error()))
	}
	if err := t.deps.Store.Update(ctx, rec); err != nil {
		return Retry(err)
	}

	if rec.CallbackURL != "" {
		payload := callback.BuildSuccessPayload(
			rec.ID, rec.VideoURL, rec.Info,
			rec.DownloadURL, rec.FileName, rec.FileSize, completedAt)
		if !t.deps.Notifier.Send(ctx, rec.CallbackURL, payload) {
			t.logger.Warn("completion callback undelivered", "callback_url", rec.CallbackURL)
		}
	}

	t.logger.Info("task completed",
		"file_name", rec.FileName,
		"file_size", rec.FileSize,
		"download_url", rec.DownloadURL)
	return Completed()
}

// download runs the fetch phase with progress persistence and a
// cancellation watch.
func (t *DownloadTask) download(ctx context.Context, rec *domain.Task) (*download.Outcome, error) {
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		lastPersisted float64
		lastPoll      atomic.Int64
	)

	progressFn := func(percent float64, _ string) {
		if percent-lastPersisted >= progressStep || percent >= 100 {
			lastPersisted = percent
			rec.Progress = percent
			// Best effort: a dropped progress write costs nothing but
			// staleness in status reads.
			if err := t.deps.Store.Update(dctx, rec); err != nil {
				t.logger.Debug("progress update dropped", "error", err)
			}
		}

		nowNano := time.Now().UnixNano()
		if nowNano-lastPoll.Load() >= int64(cancelPollInterval) {
			lastPoll.Store(nowNano)
			if cur, err := t.deps.Store.GetByID(dctx, rec.ID); err == nil &&
				cur.Status == domain.TaskStatusCancelled {
				cancel()
			}
		}
	}

	return t.deps.Downloader.Download(dctx, rec.VideoURL, rec.Options, progressFn)
}

// failOrRetry routes an execution error: transient classifications ask
// the runner for another attempt, everything else finalizes the record.
func (t *DownloadTask) failOrRetry(ctx context.Context, err error) Result {
	taskErr := normalizeError(err)
	if taskErr.Retryable() {
		return Retry(taskErr)
	}
	return t.fatal(ctx, taskErr)
}

// Fail finalizes the task after the runner exhausts its retry budget.
func (t *DownloadTask) Fail(ctx context.Context, err error) {
	t.finalize(ctx, normalizeError(err))
}

func (t *DownloadTask) fatal(ctx context.Context, taskErr *domain.TaskError) Result {
	t.finalize(ctx, taskErr)
	return Fatal(taskErr)
}

// finalize commits the failure to the record and fires the failure
// callback. Terminal records are left untouched.
func (t *DownloadTask) finalize(ctx context.Context, taskErr *domain.TaskError) {
	rec := t.rec
	if rec.Terminal() {
		return
	}

	rec.ErrorCode = taskErr.Code
	rec.ErrorMessage = taskErr.Message
	failedAt := time.Now().UTC()
	rec.CompletedAt = &failedAt
	if err := rec.Transition(domain.TaskStatusFailed); err != nil {
		t.logger.Error("cannot mark task failed", "status", rec.Status, "error", err)
		return
	}
	if err := t.deps.Store.Update(ctx, rec); err != nil {
		t.logger.Error("failed to persist task failure", "error", err)
	}

	if rec.CallbackURL != "" {
		payload := callback.BuildFailurePayload(
			rec.ID, rec.VideoURL, taskErr.Code, taskErr.Message, failedAt)
		if !t.deps.Notifier.Send(ctx, rec.CallbackURL, payload) {
			t.logger.Warn("failure callback undelivered", "callback_url", rec.CallbackURL)
		}
	}
}

// normalizeError coerces any execution error into a classified task
// error; unrecognized failures become UNKNOWN_ERROR.
func normalizeError(err error) *domain.TaskError {
	var taskErr *domain.TaskError
	if errors.As(err, &taskErr) {
		return taskErr
	}
	return domain.NewTaskError(domain.CodeUnknownError, err.Error())
}
