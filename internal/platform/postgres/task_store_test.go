package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidra/vidra-api/internal/domain"
	"github.com/vidra/vidra-api/internal/store"
)

// fakeRow feeds a fixed column slice to scanTask through the rowScanner
// interface, in taskColumns order.
type fakeRow struct {
	values []any
}

func (r *fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch out := d.(type) {
		case *uuid.UUID:
			*out = r.values[i].(uuid.UUID)
		case *string:
			*out = r.values[i].(string)
		case *float64:
			*out = r.values[i].(float64)
		case *[]byte:
			if r.values[i] == nil {
				*out = nil
			} else {
				*out = r.values[i].([]byte)
			}
		case *sql.NullString:
			if s, ok := r.values[i].(string); ok {
				*out = sql.NullString{String: s, Valid: true}
			} else {
				*out = sql.NullString{}
			}
		case *sql.NullInt64:
			if n, ok := r.values[i].(int64); ok {
				*out = sql.NullInt64{Int64: n, Valid: true}
			} else {
				*out = sql.NullInt64{}
			}
		case *sql.NullTime:
			if t, ok := r.values[i].(time.Time); ok {
				*out = sql.NullTime{Time: t, Valid: true}
			} else {
				*out = sql.NullTime{}
			}
		case *time.Time:
			*out = r.values[i].(time.Time)
		case *domain.TaskStatus:
			*out = r.values[i].(domain.TaskStatus)
		case *domain.StorageType:
			*out = r.values[i].(domain.StorageType)
		}
	}
	return nil
}

func TestScanTask(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)
	started := now.Add(time.Second)
	completed := now.Add(2 * time.Minute)

	options, err := json.Marshal(domain.DownloadOptions{DownloadType: domain.DownloadTypeVideo})
	require.NoError(t, err)
	mediaInfo, err := json.Marshal(domain.MediaInfo{Title: "clip", Duration: 90})
	require.NoError(t, err)

	row := &fakeRow{values: []any{
		id,
		"https://example.com/watch?v=abc",
		"https://example.com/hooks/done",
		domain.StorageType("s3"),
		"s3://clips/daily",
		options,
		domain.TaskStatus("completed"),
		100.0,
		mediaInfo,
		nil, // error_code
		nil, // error_message
		"https://clips.s3.us-east-1.amazonaws.com/daily/clip.mp4",
		"clip.mp4",
		int64(1048576),
		nil, // local_path
		now,
		now,
		started,
		completed,
	}}

	task, err := scanTask(row)
	require.NoError(t, err)

	assert.Equal(t, id, task.ID)
	assert.Equal(t, "https://example.com/watch?v=abc", task.VideoURL)
	assert.Equal(t, domain.StorageTypeS3, task.StorageType)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, 100.0, task.Progress)
	assert.Equal(t, domain.DownloadTypeVideo, task.Options.DownloadType)
	require.NotNil(t, task.Info)
	assert.Equal(t, "clip", task.Info.Title)
	assert.Empty(t, task.ErrorCode)
	assert.Equal(t, "clip.mp4", task.FileName)
	assert.Equal(t, int64(1048576), task.FileSize)
	assert.Empty(t, task.LocalPath)
	require.NotNil(t, task.StartedAt)
	assert.Equal(t, started, *task.StartedAt)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, completed, *task.CompletedAt)
}

func TestScanTaskNullColumns(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	now := time.Now().UTC()

	row := &fakeRow{values: []any{
		id,
		"https://example.com/watch?v=abc",
		nil, // callback_url
		domain.StorageType("local"),
		nil, // storage_url
		[]byte(`{}`),
		domain.TaskStatus("pending"),
		0.0,
		nil, // media_info
		nil, nil, nil, nil, nil, nil,
		now,
		now,
		nil, // started_at
		nil, // completed_at
	}}

	task, err := scanTask(row)
	require.NoError(t, err)

	assert.Empty(t, task.CallbackURL)
	assert.Nil(t, task.Info)
	assert.Nil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)
	assert.Zero(t, task.FileSize)
}

func TestMarshalMediaInfo(t *testing.T) {
	t.Parallel()

	t.Run("nil maps to NULL", func(t *testing.T) {
		t.Parallel()
		data, err := marshalMediaInfo(nil)
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("round trips fields", func(t *testing.T) {
		t.Parallel()
		data, err := marshalMediaInfo(&domain.MediaInfo{Title: "clip", Uploader: "chan"})
		require.NoError(t, err)

		var got domain.MediaInfo
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "clip", got.Title)
		assert.Equal(t, "chan", got.Uploader)
	})
}

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

// fakeDB scripts ExecContext for write-path error tests.
type fakeDB struct {
	execErr error
	result  sql.Result
}

func (d *fakeDB) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	if d.execErr != nil {
		return nil, d.execErr
	}
	return d.result, nil
}

func (d *fakeDB) PrepareContext(context.Context, string) (*sql.Stmt, error) {
	return nil, errors.New("not scripted")
}

func (d *fakeDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not scripted")
}

func (d *fakeDB) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func newWriteTask(t *testing.T) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(
		"https://example.com/watch?v=abc123",
		"",
		domain.StorageTypeLocal,
		"",
		domain.DownloadOptions{},
	)
	require.NoError(t, err)
	return task
}

func TestSaveWrapsStoreError(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "tasks_pkey"}
	st := NewTaskStore(&fakeDB{execErr: pgErr})

	err := st.Save(context.Background(), newWriteTask(t))
	require.Error(t, err)

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "task", storeErr.Entity)
	assert.Equal(t, "save", storeErr.Operation)
	assert.True(t, store.IsDuplicateError(err), "pg unique violation maps through the wrapper")
}

func TestUpdateMissingRecordIsUpdateFailed(t *testing.T) {
	t.Parallel()

	st := NewTaskStore(&fakeDB{result: fakeResult{rows: 0}})

	err := st.Update(context.Background(), newWriteTask(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUpdateFailed)
	assert.True(t, store.IsNotFoundError(err), "zero rows updated still reads as not found")
}
