package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidra/vidra-api/internal/domain"
	"github.com/vidra/vidra-api/internal/download"
	"github.com/vidra/vidra-api/internal/service"
	"github.com/vidra/vidra-api/internal/store"
	"github.com/vidra/vidra-api/internal/task"
)

// stubTaskService implements TaskService with scripted responses.
type stubTaskService struct {
	createFn func(ctx context.Context, params service.CreateTaskParams) (*domain.Task, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	listFn   func(ctx context.Context, filter store.ListFilter) (*store.TaskPage, error)
	cancelFn func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	infoFn   func(ctx context.Context, url string) (*domain.MediaInfo, []download.FormatInfo, error)
	countsFn func(ctx context.Context) (map[domain.TaskStatus]int, error)
}

func (s *stubTaskService) Create(ctx context.Context, params service.CreateTaskParams) (*domain.Task, error) {
	return s.createFn(ctx, params)
}

func (s *stubTaskService) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.getFn(ctx, id)
}

func (s *stubTaskService) List(ctx context.Context, filter store.ListFilter) (*store.TaskPage, error) {
	return s.listFn(ctx, filter)
}

func (s *stubTaskService) Cancel(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.cancelFn(ctx, id)
}

func (s *stubTaskService) VideoInfo(ctx context.Context, url string) (*domain.MediaInfo, []download.FormatInfo, error) {
	return s.infoFn(ctx, url)
}

func (s *stubTaskService) StatusCounts(ctx context.Context) (map[domain.TaskStatus]int, error) {
	if s.countsFn == nil {
		return nil, nil
	}
	return s.countsFn(ctx)
}

func newTestRouter(svc TaskService) http.Handler {
	h := NewTaskHandler(svc)
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tasks", h.CreateTask)
		r.Get("/tasks", h.ListTasks)
		r.Get("/tasks/{taskID}", h.GetTask)
		r.Delete("/tasks/{taskID}", h.CancelTask)
		r.Post("/video-info", h.VideoInfo)
		r.Get("/health", h.Health)
	})
	return r
}

func newAPITask(t *testing.T) *domain.Task {
	t.Helper()
	rec, err := domain.NewTask(
		"https://example.com/watch?v=abc",
		"https://example.com/hooks/done",
		domain.StorageTypeS3,
		"s3://clips/daily",
		domain.DownloadOptions{},
	)
	require.NoError(t, err)
	return rec
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	t.Run("accepts a valid submission", func(t *testing.T) {
		t.Parallel()
		var gotParams service.CreateTaskParams
		svc := &stubTaskService{
			createFn: func(_ context.Context, params service.CreateTaskParams) (*domain.Task, error) {
				gotParams = params
				return newAPITask(t), nil
			},
		}
		router := newTestRouter(svc)

		body := `{
			"video_url": "https://example.com/watch?v=abc",
			"storage_type": "s3",
			"storage_url": "s3://clips/daily",
			"download_type": "video",
			"video_quality": "720"
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "https://example.com/watch?v=abc", gotParams.VideoURL)
		assert.Equal(t, domain.StorageTypeS3, gotParams.StorageType)
		assert.Equal(t, "720", gotParams.Options.VideoQuality)

		var resp TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "pending", resp.Status)
		assert.NotEmpty(t, resp.ID)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubTaskService{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects missing video URL", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubTaskService{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewBufferString(`{"storage_type":"local"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown storage type", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubTaskService{})

		body := `{"video_url":"https://example.com/watch?v=abc","storage_type":"ftp"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps queue full to 503", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{
			createFn: func(context.Context, service.CreateTaskParams) (*domain.Task, error) {
				return nil, fmt.Errorf("failed to enqueue task: %w", task.ErrQueueFull)
			},
		}
		router := newTestRouter(svc)

		body := `{"video_url":"https://example.com/watch?v=abc"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetTask(t *testing.T) {
	t.Parallel()

	t.Run("returns the record", func(t *testing.T) {
		t.Parallel()
		want := newAPITask(t)
		svc := &stubTaskService{
			getFn: func(_ context.Context, id uuid.UUID) (*domain.Task, error) {
				assert.Equal(t, want.ID, id)
				return want, nil
			},
		}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+want.ID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, want.ID.String(), resp.ID)
		assert.Equal(t, "s3", resp.StorageType)
	})

	t.Run("unknown task returns 404", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{
			getFn: func(context.Context, uuid.UUID) (*domain.Task, error) {
				return nil, store.ErrTaskNotFound
			},
		}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed ID returns 400", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubTaskService{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("local path never serialized", func(t *testing.T) {
		t.Parallel()
		want := newAPITask(t)
		want.LocalPath = "/srv/downloads/clip.mp4"
		svc := &stubTaskService{
			getFn: func(context.Context, uuid.UUID) (*domain.Task, error) {
				return want, nil
			},
		}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+want.ID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "/srv/downloads/clip.mp4")
		assert.NotContains(t, rec.Body.String(), "storage_url")
	})
}

func TestListTasks(t *testing.T) {
	t.Parallel()

	t.Run("passes filter and pagination", func(t *testing.T) {
		t.Parallel()
		var gotFilter store.ListFilter
		svc := &stubTaskService{
			listFn: func(_ context.Context, filter store.ListFilter) (*store.TaskPage, error) {
				gotFilter = filter
				return &store.TaskPage{Tasks: []*domain.Task{newAPITask(t)}, Total: 1}, nil
			},
		}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks?status=completed&page=2&per_page=5", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotFilter.Status)
		assert.Equal(t, domain.TaskStatusCompleted, *gotFilter.Status)
		assert.Equal(t, 2, gotFilter.Page)
		assert.Equal(t, 5, gotFilter.PerPage)

		var resp TaskListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Total)
		assert.Len(t, resp.Tasks, 1)
	})

	t.Run("caps page size", func(t *testing.T) {
		t.Parallel()
		var gotFilter store.ListFilter
		svc := &stubTaskService{
			listFn: func(_ context.Context, filter store.ListFilter) (*store.TaskPage, error) {
				gotFilter = filter
				return &store.TaskPage{}, nil
			},
		}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks?per_page=5000", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 100, gotFilter.PerPage)
	})
}

func TestCancelTask(t *testing.T) {
	t.Parallel()

	t.Run("cancels and echoes the record", func(t *testing.T) {
		t.Parallel()
		want := newAPITask(t)
		want.Status = domain.TaskStatusCancelled
		svc := &stubTaskService{
			cancelFn: func(context.Context, uuid.UUID) (*domain.Task, error) {
				return want, nil
			},
		}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/"+want.ID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "cancelled", resp.Status)
	})

	t.Run("terminal task returns 409", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{
			cancelFn: func(context.Context, uuid.UUID) (*domain.Task, error) {
				return nil, fmt.Errorf("%w: status is completed", service.ErrNotCancellable)
			},
		}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestVideoInfo(t *testing.T) {
	t.Parallel()

	t.Run("returns metadata and formats", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{
			infoFn: func(_ context.Context, url string) (*domain.MediaInfo, []download.FormatInfo, error) {
				assert.Equal(t, "https://example.com/watch?v=abc", url)
				return &domain.MediaInfo{Title: "clip", Duration: 42},
					[]download.FormatInfo{{FormatID: "22"}}, nil
			},
		}
		router := newTestRouter(svc)

		body := `{"video_url":"https://example.com/watch?v=abc"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/video-info", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp VideoInfoResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "clip", resp.VideoInfo.Title)
		assert.Len(t, resp.Formats, 1)
	})

	t.Run("classified extraction failure returns 422", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{
			infoFn: func(context.Context, string) (*domain.MediaInfo, []download.FormatInfo, error) {
				return nil, nil, domain.NewTaskError(domain.CodeVideoUnavailable, "video unavailable")
			},
		}
		router := newTestRouter(svc)

		body := `{"video_url":"https://example.com/watch?v=abc"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/video-info", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("missing URL returns 400", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubTaskService{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/video-info", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	t.Parallel()

	svc := &stubTaskService{
		countsFn: func(context.Context) (map[domain.TaskStatus]int, error) {
			return map[domain.TaskStatus]int{
				domain.TaskStatusPending:   2,
				domain.TaskStatusCompleted: 7,
			}, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, Version, resp.Version)
	assert.Equal(t, 2, resp.Tasks["pending"])
	assert.Equal(t, 7, resp.Tasks["completed"])
}
