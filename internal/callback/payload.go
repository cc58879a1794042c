package callback

import (
	"time"

	"github.com/google/uuid"
	"github.com/vidra/vidra-api/internal/domain"
)

// VideoInfo is the metadata block embedded in success payloads.
type VideoInfo struct {
	Title     string  `json:"title"`
	Duration  float64 `json:"duration,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
}

// Result is the artifact block embedded in success payloads.
type Result struct {
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
}

// ErrorDetail is the failure block embedded in failure payloads.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessPayload is the wire shape of a completion notification.
type SuccessPayload struct {
	TaskID      string    `json:"task_id"`
	Status      string    `json:"status"`
	VideoURL    string    `json:"video_url"`
	VideoInfo   VideoInfo `json:"video_info"`
	Result      Result    `json:"result"`
	CompletedAt string    `json:"completed_at"`
}

// FailurePayload is the wire shape of a failure notification.
type FailurePayload struct {
	TaskID   string      `json:"task_id"`
	Status   string      `json:"status"`
	VideoURL string      `json:"video_url"`
	Error    ErrorDetail `json:"error"`
	FailedAt string      `json:"failed_at"`
}

// BuildSuccessPayload constructs the completion notification for a
// task. Pure: no clock access beyond the timestamp argument.
func BuildSuccessPayload(
	taskID uuid.UUID,
	videoURL string,
	info *domain.MediaInfo,
	downloadURL, fileName string,
	fileSize int64,
	completedAt time.Time,
) SuccessPayload {
	payload := SuccessPayload{
		TaskID:      taskID.String(),
		Status:      "completed",
		VideoURL:    videoURL,
		Result: Result{
			DownloadURL: downloadURL,
			FileName:    fileName,
			FileSize:    fileSize,
		},
		CompletedAt: completedAt.UTC().Format(time.RFC3339),
	}
	if info != nil {
		payload.VideoInfo = VideoInfo{
			Title:     info.Title,
			Duration:  info.Duration,
			Thumbnail: info.Thumbnail,
		}
	}
	return payload
}

// BuildFailurePayload constructs the failure notification for a task.
func BuildFailurePayload(
	taskID uuid.UUID,
	videoURL, errorCode, errorMessage string,
	failedAt time.Time,
) FailurePayload {
	return FailurePayload{
		TaskID:   taskID.String(),
		Status:   "failed",
		VideoURL: videoURL,
		Error: ErrorDetail{
			Code:    errorCode,
			Message: errorMessage,
		},
		FailedAt: failedAt.UTC().Format(time.RFC3339),
	}
}
