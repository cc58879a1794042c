package task

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/vidra/vidra-api/internal/domain"
	"github.com/vidra/vidra-api/internal/download"
	"github.com/vidra/vidra-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory store.TaskStore. Records are cloned on the
// way in and out so tests observe committed state, not shared pointers.
type memStore struct {
	mu        sync.Mutex
	tasks     map[uuid.UUID]*domain.Task
	statusLog map[uuid.UUID][]domain.TaskStatus
	saveErr   error
	getErr    error
	updErr    error
	updates   int
}

func newMemStore() *memStore {
	return &memStore{
		tasks:     make(map[uuid.UUID]*domain.Task),
		statusLog: make(map[uuid.UUID][]domain.TaskStatus),
	}
}

func clone(t *domain.Task) *domain.Task {
	cp := *t
	if t.Info != nil {
		info := *t.Info
		cp.Info = &info
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		cp.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return &cp
}

func (s *memStore) Save(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.tasks[task.ID]; ok {
		return store.ErrDuplicate
	}
	s.tasks[task.ID] = clone(task)
	return nil
}

func (s *memStore) Update(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updErr != nil {
		return s.updErr
	}
	if _, ok := s.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	s.updates++
	if log := s.statusLog[task.ID]; len(log) == 0 || log[len(log)-1] != task.Status {
		s.statusLog[task.ID] = append(log, task.Status)
	}
	s.tasks[task.ID] = clone(task)
	return nil
}

// statuses returns the distinct sequence of persisted statuses.
func (s *memStore) statuses(id uuid.UUID) []domain.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TaskStatus(nil), s.statusLog[id]...)
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return clone(task), nil
}

func (s *memStore) List(_ context.Context, filter store.ListFilter) (*store.TaskPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := &store.TaskPage{}
	for _, task := range s.tasks {
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		page.Tasks = append(page.Tasks, clone(task))
	}
	page.Total = len(page.Tasks)
	return page, nil
}

func (s *memStore) GetByStatus(_ context.Context, status domain.TaskStatus) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []*domain.Task
	for _, task := range s.tasks {
		if task.Status == status {
			out = append(out, clone(task))
		}
	}
	return out, nil
}

func (s *memStore) CountByStatus(_ context.Context) (map[domain.TaskStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.TaskStatus]int)
	for _, task := range s.tasks {
		counts[task.Status]++
	}
	return counts, nil
}

// status reads a record's committed status.
func (s *memStore) status(id uuid.UUID) domain.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].Status
}

func (s *memStore) record(id uuid.UUID) *domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.tasks[id])
}

// fakeDownloader scripts the probe and fetch phases.
type fakeDownloader struct {
	probeInfo *domain.MediaInfo
	probeErr  error

	outcome     *download.Outcome
	downloadErr error
	// progress percentages emitted before returning
	progress []float64
	calls    int
}

func (f *fakeDownloader) Probe(context.Context, string) (*domain.MediaInfo, []download.FormatInfo, error) {
	if f.probeErr != nil {
		return nil, nil, f.probeErr
	}
	return f.probeInfo, nil, nil
}

func (f *fakeDownloader) Download(
	_ context.Context,
	_ string,
	_ domain.DownloadOptions,
	progressFn download.ProgressFunc,
) (*download.Outcome, error) {
	f.calls++
	for _, p := range f.progress {
		if progressFn != nil {
			progressFn(p, "")
		}
	}
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.outcome, nil
}

// fakeUploader records the upload request.
type fakeUploader struct {
	url       string
	err       error
	called    bool
	gotPath   string
	gotType   domain.StorageType
	gotURL    string
	gotDelete bool
}

func (f *fakeUploader) Upload(
	_ context.Context,
	localPath string,
	storageType domain.StorageType,
	storageURL string,
	deleteLocal bool,
) (string, error) {
	f.called = true
	f.gotPath = localPath
	f.gotType = storageType
	f.gotURL = storageURL
	f.gotDelete = deleteLocal
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

// fakeNotifier records delivered payloads.
type fakeNotifier struct {
	mu       sync.Mutex
	payloads []any
	urls     []string
	result   bool
}

func (f *fakeNotifier) Send(_ context.Context, callbackURL string, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, callbackURL)
	f.payloads = append(f.payloads, payload)
	return f.result
}

func (f *fakeNotifier) sent() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.payloads...)
}

func newTestRecord() *domain.Task {
	rec, err := domain.NewTask(
		"https://example.com/watch?v=abc123",
		"https://consumer.example.com/hook",
		domain.StorageTypeS3,
		"s3://clips/daily",
		domain.DownloadOptions{},
	)
	if err != nil {
		panic(err)
	}
	return rec
}
