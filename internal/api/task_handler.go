package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vidra/vidra-api/internal/api/shared"
	"github.com/vidra/vidra-api/internal/domain"
	"github.com/vidra/vidra-api/internal/download"
	"github.com/vidra/vidra-api/internal/service"
	"github.com/vidra/vidra-api/internal/store"
)

// TaskService defines the application operations the handler exposes
type TaskService interface {
	// Create validates a submission and queues it for execution
	Create(ctx context.Context, params service.CreateTaskParams) (*domain.Task, error)

	// Get loads one task record
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List returns one page of task records
	List(ctx context.Context, filter store.ListFilter) (*store.TaskPage, error)

	// Cancel marks a task cancelled while it is still cancellable
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// VideoInfo probes a URL for metadata without creating a task
	VideoInfo(ctx context.Context, url string) (*domain.MediaInfo, []download.FormatInfo, error)

	// StatusCounts returns task counts keyed by status
	StatusCounts(ctx context.Context) (map[domain.TaskStatus]int, error)
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	tasks     TaskService
	validator *validator.Validate
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks TaskService) *TaskHandler {
	return &TaskHandler{
		tasks:     tasks,
		validator: validator.New(),
	}
}

// CreateTask handles POST /api/v1/tasks requests. The download runs in the
// background; the response is the pending record.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	rec, err := h.tasks.Create(r.Context(), service.CreateTaskParams{
		VideoURL:    req.VideoURL,
		CallbackURL: req.CallbackURL,
		StorageType: domain.StorageType(req.StorageType),
		StorageURL:  req.StorageURL,
		Options: domain.DownloadOptions{
			DownloadType: domain.DownloadType(req.DownloadType),
			VideoQuality: req.VideoQuality,
			Format:       req.Format,
			AudioFormat:  req.AudioFormat,
		},
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(rec))
}

// GetTask handles GET /api/v1/tasks/{taskID} requests
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	rec, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(rec))
}

// ListTasks handles GET /api/v1/tasks requests with optional status,
// page and per_page query parameters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := store.ListFilter{
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", 20),
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.TaskStatus(raw)
		filter.Status = &status
	}

	page, err := h.tasks.List(r.Context(), filter)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := TaskListResponse{
		Tasks:   make([]TaskResponse, 0, len(page.Tasks)),
		Total:   page.Total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	}
	for _, rec := range page.Tasks {
		resp.Tasks = append(resp.Tasks, taskToResponse(rec))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// CancelTask handles DELETE /api/v1/tasks/{taskID} requests
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	rec, err := h.tasks.Cancel(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(rec))
}

// VideoInfo handles POST /api/v1/video-info requests
func (h *TaskHandler) VideoInfo(w http.ResponseWriter, r *http.Request) {
	var req VideoInfoRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	info, formats, err := h.tasks.VideoInfo(r.Context(), req.VideoURL)
	if err != nil {
		var taskErr *domain.TaskError
		if errors.As(err, &taskErr) {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnprocessableEntity, taskErr.Message, err)
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to extract video info", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, VideoInfoResponse{
		VideoInfo: info,
		Formats:   formats,
	})
}

// Health handles GET /health requests
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: Version}

	if counts, err := h.tasks.StatusCounts(r.Context()); err == nil {
		resp.Tasks = make(map[string]int, len(counts))
		for status, n := range counts {
			resp.Tasks[string(status)] = n
		}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// taskID parses the {taskID} route parameter, responding with 400 on a
// malformed value.
func (h *TaskHandler) taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "taskID")
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
