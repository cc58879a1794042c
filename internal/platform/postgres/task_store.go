package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vidra/vidra-api/internal/domain"
	"github.com/vidra/vidra-api/internal/platform/logger"
	"github.com/vidra/vidra-api/internal/store"
)

// TaskStore implements store.TaskStore on PostgreSQL. Every write
// replaces the full mutable portion of the row, so a reader always
// sees a record from exactly one transition.
type TaskStore struct {
	db store.DBTX
}

// NewTaskStore creates a TaskStore backed by the given connection or
// transaction.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

// WithTx returns a TaskStore bound to the given transaction.
func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{db: tx}
}

const taskColumns = `id, video_url, callback_url, storage_type, storage_url, options,
	status, progress, media_info, error_code, error_message,
	download_url, file_name, file_size, local_path,
	created_at, updated_at, started_at, completed_at`

// Save inserts a new task record.
func (s *TaskStore) Save(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	options, err := json.Marshal(task.Options)
	if err != nil {
		return fmt.Errorf("marshaling task options: %w", err)
	}
	mediaInfo, err := marshalMediaInfo(task.Info)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.VideoURL,
		task.CallbackURL,
		task.StorageType,
		task.StorageURL,
		options,
		task.Status,
		task.Progress,
		mediaInfo,
		task.ErrorCode,
		task.ErrorMessage,
		task.DownloadURL,
		task.FileName,
		task.FileSize,
		task.LocalPath,
		task.CreatedAt,
		task.UpdatedAt,
		task.StartedAt,
		task.CompletedAt,
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", task.ID,
			"error", err)
		return store.NewStoreError("task", "save", "insert failed", MapError(err))
	}

	return nil
}

// Update overwrites the mutable fields of an existing record from the
// in-memory task.
func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	mediaInfo, err := marshalMediaInfo(task.Info)
	if err != nil {
		return err
	}

	task.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tasks
		SET status = $1, progress = $2, media_info = $3,
			error_code = $4, error_message = $5,
			download_url = $6, file_name = $7, file_size = $8, local_path = $9,
			updated_at = $10, started_at = $11, completed_at = $12
		WHERE id = $13
	`
	result, err := s.db.ExecContext(ctx, query,
		task.Status,
		task.Progress,
		mediaInfo,
		task.ErrorCode,
		task.ErrorMessage,
		task.DownloadURL,
		task.FileName,
		task.FileSize,
		task.LocalPath,
		task.UpdatedAt,
		task.StartedAt,
		task.CompletedAt,
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			"task_id", task.ID,
			"status", task.Status,
			"error", err)
		return store.NewStoreError("task", "update", "exec failed", MapError(err))
	}

	if err := CheckRowsAffected(result, "task"); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUpdateFailed, err)
	}
	return nil
}

// GetByID loads one task record.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)

	task, err := scanTask(row)
	if err != nil {
		return nil, MapError(err)
	}
	return task, nil
}

// List returns one page of tasks, newest first, with the unpaged total.
func (s *TaskStore) List(ctx context.Context, filter store.ListFilter) (*store.TaskPage, error) {
	log := logger.FromContext(ctx)

	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}

	var (
		countQuery = `SELECT COUNT(*) FROM tasks`
		listQuery  = `SELECT ` + taskColumns + ` FROM tasks`
		countArgs  []any
		listArgs   []any
	)
	if filter.Status != nil {
		countQuery += ` WHERE status = $1`
		listQuery += ` WHERE status = $1`
		countArgs = append(countArgs, *filter.Status)
		listArgs = append(listArgs, *filter.Status)
	}
	listQuery += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		len(listArgs)+1, len(listArgs)+2)
	listArgs = append(listArgs, perPage, filter.Offset())

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		log.Error("failed to count tasks", "error", err)
		return nil, MapError(err)
	}

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		log.Error("failed to list tasks", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}

	return &store.TaskPage{Tasks: tasks, Total: total}, nil
}

// GetByStatus returns every task in the given status, oldest first.
func (s *TaskStore) GetByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = $1 ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		log.Error("failed to query tasks by status",
			"status", status,
			"error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	return scanTasks(rows)
}

// CountByStatus returns task counts keyed by status.
func (s *TaskStore) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.TaskStatus]int)
	for rows.Next() {
		var status domain.TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status counts: %w", err)
	}
	return counts, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task         domain.Task
		callbackURL  sql.NullString
		storageURL   sql.NullString
		options      []byte
		mediaInfo    []byte
		errorCode    sql.NullString
		errorMessage sql.NullString
		downloadURL  sql.NullString
		fileName     sql.NullString
		fileSize     sql.NullInt64
		localPath    sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.VideoURL,
		&callbackURL,
		&task.StorageType,
		&storageURL,
		&options,
		&task.Status,
		&task.Progress,
		&mediaInfo,
		&errorCode,
		&errorMessage,
		&downloadURL,
		&fileName,
		&fileSize,
		&localPath,
		&task.CreatedAt,
		&task.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	task.CallbackURL = callbackURL.String
	task.StorageURL = storageURL.String
	task.ErrorCode = errorCode.String
	task.ErrorMessage = errorMessage.String
	task.DownloadURL = downloadURL.String
	task.FileName = fileName.String
	task.FileSize = fileSize.Int64
	task.LocalPath = localPath.String
	if startedAt.Valid {
		t := startedAt.Time
		task.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}

	if len(options) > 0 {
		if err := json.Unmarshal(options, &task.Options); err != nil {
			return nil, fmt.Errorf("unmarshaling task options: %w", err)
		}
	}
	if len(mediaInfo) > 0 {
		var info domain.MediaInfo
		if err := json.Unmarshal(mediaInfo, &info); err != nil {
			return nil, fmt.Errorf("unmarshaling media info: %w", err)
		}
		task.Info = &info
	}

	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}
	return tasks, nil
}

// marshalMediaInfo serializes optional media metadata, mapping nil to
// a NULL column.
func marshalMediaInfo(info *domain.MediaInfo) ([]byte, error) {
	if info == nil {
		return nil, nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshaling media info: %w", err)
	}
	return data, nil
}
