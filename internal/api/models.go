package api

import (
	"time"

	"github.com/vidra/vidra-api/internal/domain"
	"github.com/vidra/vidra-api/internal/download"
)

// Version is the API version reported by the health endpoint.
const Version = "1.0.0"

// Common request/response structures

// CreateTaskRequest defines the payload for the task submission endpoint.
type CreateTaskRequest struct {
	VideoURL    string `json:"video_url"    validate:"required,url"`
	CallbackURL string `json:"callback_url" validate:"omitempty,url"`
	StorageType string `json:"storage_type" validate:"omitempty,oneof=local s3 gcs s3_compatible"`
	StorageURL  string `json:"storage_url"  validate:"omitempty"`

	DownloadType string `json:"download_type" validate:"omitempty,oneof=audio video audio_video"`
	VideoQuality string `json:"video_quality" validate:"omitempty"`
	Format       string `json:"format"        validate:"omitempty"`
	AudioFormat  string `json:"audio_format"  validate:"omitempty"`
}

// VideoInfoRequest defines the payload for the metadata probe endpoint.
type VideoInfoRequest struct {
	VideoURL string `json:"video_url" validate:"required,url"`
}

// TaskResponse is the wire representation of one task record.
type TaskResponse struct {
	ID          string            `json:"id"`
	VideoURL    string            `json:"video_url"`
	Status      string            `json:"status"`
	Progress    float64           `json:"progress"`
	StorageType string            `json:"storage_type"`
	VideoInfo   *domain.MediaInfo `json:"video_info,omitempty"`

	DownloadURL string `json:"download_url,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskListResponse is one page of task records.
type TaskListResponse struct {
	Tasks   []TaskResponse `json:"tasks"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// VideoInfoResponse is the result of a metadata probe.
type VideoInfoResponse struct {
	VideoInfo *domain.MediaInfo     `json:"video_info"`
	Formats   []download.FormatInfo `json:"formats,omitempty"`
}

// HealthResponse reports service liveness and queue composition.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Tasks   map[string]int `json:"tasks,omitempty"`
}

// taskToResponse converts a domain.Task to its wire representation.
// The record's local path and storage destination URL stay server-side;
// destination URLs can carry inline credentials.
func taskToResponse(rec *domain.Task) TaskResponse {
	return TaskResponse{
		ID:           rec.ID.String(),
		VideoURL:     rec.VideoURL,
		Status:       string(rec.Status),
		Progress:     rec.Progress,
		StorageType:  string(rec.StorageType),
		VideoInfo:    rec.Info,
		DownloadURL:  rec.DownloadURL,
		FileName:     rec.FileName,
		FileSize:     rec.FileSize,
		ErrorCode:    rec.ErrorCode,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		StartedAt:    rec.StartedAt,
		CompletedAt:  rec.CompletedAt,
	}
}
