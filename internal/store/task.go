package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/vidra/vidra-api/internal/domain"
)

// ListFilter narrows and pages a task listing. A nil Status matches
// every status.
type ListFilter struct {
	Status  *domain.TaskStatus
	Page    int
	PerPage int
}

// Offset converts the 1-based page number into a row offset.
func (f ListFilter) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * f.PerPage
}

// TaskPage is one page of a task listing plus the unpaged total.
type TaskPage struct {
	Tasks []*domain.Task
	Total int
}

// TaskStore persists task records. Updates replace the whole mutable
// portion of the record from the in-memory copy; there are no partial
// patch operations, so readers never observe a half-applied update.
type TaskStore interface {
	// Save inserts a new task record.
	Save(ctx context.Context, task *domain.Task) error

	// Update overwrites the mutable fields of an existing record.
	// Returns ErrTaskNotFound if no record has the task's ID.
	Update(ctx context.Context, task *domain.Task) error

	// GetByID loads one task. Returns ErrTaskNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List returns one page of tasks ordered newest first.
	List(ctx context.Context, filter ListFilter) (*TaskPage, error)

	// GetByStatus returns every task in the given status, oldest
	// first. Used at startup to requeue work interrupted by a crash.
	GetByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error)

	// CountByStatus returns task counts keyed by status.
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)
}
