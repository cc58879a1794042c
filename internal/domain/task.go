package domain

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a download task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending     TaskStatus = "pending"
	TaskStatusDownloading TaskStatus = "downloading"
	TaskStatusUploading   TaskStatus = "uploading"
	TaskStatusCompleted   TaskStatus = "completed"
	TaskStatusFailed      TaskStatus = "failed"
	TaskStatusCancelled   TaskStatus = "cancelled"
)

// DownloadType selects which streams of the source media are fetched
type DownloadType string

// Possible download type values
const (
	DownloadTypeAudio      DownloadType = "audio"
	DownloadTypeVideo      DownloadType = "video"
	DownloadTypeAudioVideo DownloadType = "audio_video"
)

// StorageType identifies the destination backend for a finished artifact.
// The set is closed: each value has exactly one upload handler.
type StorageType string

// Possible storage type values
const (
	StorageTypeLocal        StorageType = "local"
	StorageTypeS3           StorageType = "s3"
	StorageTypeGCS          StorageType = "gcs"
	StorageTypeS3Compatible StorageType = "s3_compatible"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID        = errors.New("task ID cannot be empty")
	ErrEmptyVideoURL      = errors.New("task video URL cannot be empty")
	ErrInvalidTaskStatus  = errors.New("invalid task status")
	ErrInvalidStorageType = errors.New("invalid storage type")
	ErrInvalidTransition  = errors.New("invalid task status transition")
)

// DownloadOptions are the caller-supplied knobs for a single task.
// A zero value means "service defaults" for every field.
type DownloadOptions struct {
	DownloadType DownloadType `json:"download_type,omitempty"`
	VideoQuality string       `json:"video_quality,omitempty"`
	Format       string       `json:"format,omitempty"`
	AudioFormat  string       `json:"audio_format,omitempty"`
}

// Normalize fills unset option fields with service defaults.
func (o DownloadOptions) Normalize() DownloadOptions {
	if o.DownloadType == "" {
		o.DownloadType = DownloadTypeAudioVideo
	}
	if o.VideoQuality == "" {
		o.VideoQuality = "720"
	}
	if o.AudioFormat == "" {
		o.AudioFormat = "mp3"
	}
	return o
}

// MediaInfo holds metadata extracted from the source site before or
// during a download. Cosmetic: the pipeline proceeds without it.
type MediaInfo struct {
	Title      string  `json:"title"`
	Duration   float64 `json:"duration,omitempty"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
	Filesize   int64   `json:"filesize,omitempty"`
	Uploader   string  `json:"uploader,omitempty"`
	UploadDate string  `json:"upload_date,omitempty"`
}

// Task is the durable record of one media fetch request. It is created
// by the submission boundary, mutated only by the worker executing it,
// and committed to the store as a whole record on every transition so
// concurrent readers never observe a torn state.
type Task struct {
	ID uuid.UUID `json:"id"`

	// Immutable request inputs
	VideoURL    string          `json:"video_url"`
	CallbackURL string          `json:"callback_url,omitempty"`
	StorageType StorageType     `json:"storage_type"`
	StorageURL  string          `json:"storage_url,omitempty"`
	Options     DownloadOptions `json:"options"`

	// Mutable execution state
	Status   TaskStatus `json:"status"`
	Progress float64    `json:"progress"`
	Info     *MediaInfo `json:"video_info,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Result fields, populated on completion
	DownloadURL string `json:"download_url,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
	LocalPath   string `json:"local_path,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a pending Task for the given request inputs.
// It generates the task ID and sets creation timestamps.
// Returns an error if validation fails.
func NewTask(
	videoURL, callbackURL string,
	storageType StorageType,
	storageURL string,
	opts DownloadOptions,
) (*Task, error) {
	if storageType == "" {
		storageType = StorageTypeLocal
	}
	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New(),
		VideoURL:    videoURL,
		CallbackURL: callbackURL,
		StorageType: storageType,
		StorageURL:  storageURL,
		Options:     opts.Normalize(),
		Status:      TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if t.VideoURL == "" {
		return ErrEmptyVideoURL
	}
	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}
	if !isValidStorageType(t.StorageType) {
		return ErrInvalidStorageType
	}
	return nil
}

// Terminal reports whether the task has reached a final state.
// Terminal tasks are never mutated again.
func (t *Task) Terminal() bool {
	switch t.Status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether an external cancellation request may
// still take effect.
func (t *Task) Cancellable() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusDownloading
}

// Transition moves the task to the given status, enforcing the
// forward-only state machine. The UpdatedAt timestamp is refreshed on
// success.
func (t *Task) Transition(next TaskStatus) error {
	if !isValidTaskStatus(next) {
		return ErrInvalidTaskStatus
	}
	if !canTransition(t.Status, next) {
		return ErrInvalidTransition
	}
	t.Status = next
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// canTransition encodes the allowed edges of the task state machine.
// Terminal states have no outgoing edges.
func canTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusDownloading || to == TaskStatusFailed || to == TaskStatusCancelled
	case TaskStatusDownloading:
		return to == TaskStatusUploading || to == TaskStatusCompleted ||
			to == TaskStatusFailed || to == TaskStatusCancelled
	case TaskStatusUploading:
		return to == TaskStatusCompleted || to == TaskStatusFailed
	}
	return false
}

func isValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusPending, TaskStatusDownloading, TaskStatusUploading,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

func isValidStorageType(s StorageType) bool {
	switch s {
	case StorageTypeLocal, StorageTypeS3, StorageTypeGCS, StorageTypeS3Compatible:
		return true
	}
	return false
}

// IsValidVideoQuality reports whether the quality selector is one of
// "best", "worst" or a positive pixel height.
func IsValidVideoQuality(q string) bool {
	if q == "best" || q == "worst" {
		return true
	}
	n, err := strconv.Atoi(q)
	return err == nil && n > 0
}
