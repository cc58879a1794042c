package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	t.Parallel()

	t.Run("valid task with defaults", func(t *testing.T) {
		t.Parallel()

		task, err := NewTask("https://example.com/watch?v=abc", "", "", "", DownloadOptions{})
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, TaskStatusPending, task.Status)
		assert.Equal(t, StorageTypeLocal, task.StorageType)
		assert.Equal(t, DownloadTypeAudioVideo, task.Options.DownloadType)
		assert.Equal(t, "720", task.Options.VideoQuality)
		assert.Equal(t, "mp3", task.Options.AudioFormat)
		assert.False(t, task.CreatedAt.IsZero())
		assert.False(t, task.UpdatedAt.IsZero())
		assert.Nil(t, task.StartedAt)
		assert.Nil(t, task.CompletedAt)
	})

	t.Run("empty video URL fails", func(t *testing.T) {
		t.Parallel()

		_, err := NewTask("", "", StorageTypeLocal, "", DownloadOptions{})
		assert.ErrorIs(t, err, ErrEmptyVideoURL)
	})

	t.Run("unknown storage type fails", func(t *testing.T) {
		t.Parallel()

		_, err := NewTask("https://example.com/v", "", StorageType("ftp"), "", DownloadOptions{})
		assert.ErrorIs(t, err, ErrInvalidStorageType)
	})

	t.Run("explicit options preserved", func(t *testing.T) {
		t.Parallel()

		opts := DownloadOptions{
			DownloadType: DownloadTypeAudio,
			VideoQuality: "1080",
			Format:       "bestaudio[ext=m4a]",
			AudioFormat:  "aac",
		}
		task, err := NewTask("https://example.com/v", "", StorageTypeS3, "s3://b/p", opts)
		require.NoError(t, err)
		assert.Equal(t, opts, task.Options)
		assert.Equal(t, "s3://b/p", task.StorageURL)
	})
}

func TestTaskTransition(t *testing.T) {
	t.Parallel()

	newTask := func(t *testing.T) *Task {
		t.Helper()
		task, err := NewTask("https://example.com/v", "", StorageTypeLocal, "", DownloadOptions{})
		require.NoError(t, err)
		return task
	}

	t.Run("happy path with upload", func(t *testing.T) {
		t.Parallel()

		task := newTask(t)
		require.NoError(t, task.Transition(TaskStatusDownloading))
		require.NoError(t, task.Transition(TaskStatusUploading))
		require.NoError(t, task.Transition(TaskStatusCompleted))
		assert.True(t, task.Terminal())
	})

	t.Run("happy path without upload", func(t *testing.T) {
		t.Parallel()

		task := newTask(t)
		require.NoError(t, task.Transition(TaskStatusDownloading))
		require.NoError(t, task.Transition(TaskStatusCompleted))
	})

	t.Run("no transition out of terminal states", func(t *testing.T) {
		t.Parallel()

		for _, terminal := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled} {
			task := newTask(t)
			task.Status = terminal
			for _, next := range []TaskStatus{
				TaskStatusPending, TaskStatusDownloading, TaskStatusUploading,
				TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled,
			} {
				err := task.Transition(next)
				assert.ErrorIs(t, err, ErrInvalidTransition,
					"expected %s -> %s to be rejected", terminal, next)
			}
		}
	})

	t.Run("no backward transitions", func(t *testing.T) {
		t.Parallel()

		task := newTask(t)
		require.NoError(t, task.Transition(TaskStatusDownloading))
		assert.ErrorIs(t, task.Transition(TaskStatusPending), ErrInvalidTransition)

		require.NoError(t, task.Transition(TaskStatusUploading))
		assert.ErrorIs(t, task.Transition(TaskStatusDownloading), ErrInvalidTransition)
	})

	t.Run("cancellation only from pending or downloading", func(t *testing.T) {
		t.Parallel()

		task := newTask(t)
		assert.True(t, task.Cancellable())
		require.NoError(t, task.Transition(TaskStatusDownloading))
		assert.True(t, task.Cancellable())
		require.NoError(t, task.Transition(TaskStatusUploading))
		assert.False(t, task.Cancellable())
		assert.ErrorIs(t, task.Transition(TaskStatusCancelled), ErrInvalidTransition)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		t.Parallel()

		task := newTask(t)
		assert.ErrorIs(t, task.Transition(TaskStatus("paused")), ErrInvalidTaskStatus)
	})
}

func TestTaskError(t *testing.T) {
	t.Parallel()

	err := NewTaskError(CodeFileTooLarge, "file size (6000.0 MB) exceeds limit")
	assert.Equal(t, "FILE_TOO_LARGE: file size (6000.0 MB) exceeds limit", err.Error())
	assert.False(t, err.Retryable())

	assert.True(t, NewTaskError(CodeRateLimited, "HTTP 429").Retryable())
	assert.True(t, NewTaskError(CodeUnknownError, "boom").Retryable())
	assert.False(t, NewTaskError(CodeMissingStorageURL, "required").Retryable())
	assert.False(t, NewTaskError(CodeVideoUnavailable, "private").Retryable())
}

func TestIsValidVideoQuality(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidVideoQuality("best"))
	assert.True(t, IsValidVideoQuality("worst"))
	assert.True(t, IsValidVideoQuality("720"))
	assert.True(t, IsValidVideoQuality("2160"))
	assert.False(t, IsValidVideoQuality("0"))
	assert.False(t, IsValidVideoQuality("-1"))
	assert.False(t, IsValidVideoQuality("hd"))
	assert.False(t, IsValidVideoQuality(""))
}
