package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidra/vidra-api/internal/store"
)

// TestErrorDefinitions ensures that the sentinel errors compose with
// errors.Is the way store implementations rely on.
func TestErrorDefinitions(t *testing.T) {
	t.Parallel()

	t.Run("ErrTaskNotFound wraps ErrNotFound", func(t *testing.T) {
		t.Parallel()

		err := store.ErrTaskNotFound
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.True(t, store.IsNotFoundError(err))

		wrapped := fmt.Errorf("loading record: %w", err)
		assert.ErrorIs(t, wrapped, store.ErrTaskNotFound)
		assert.True(t, store.IsNotFoundError(wrapped))
	})

	t.Run("ErrDuplicate", func(t *testing.T) {
		t.Parallel()

		wrapped := fmt.Errorf("inserting record: %w", store.ErrDuplicate)
		assert.True(t, store.IsDuplicateError(wrapped))
		assert.False(t, store.IsNotFoundError(wrapped))
	})

	t.Run("unrelated error matches nothing", func(t *testing.T) {
		t.Parallel()

		err := errors.New("connection refused")
		assert.False(t, store.IsNotFoundError(err))
		assert.False(t, store.IsDuplicateError(err))
	})
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	inner := errors.New("timeout")
	err := store.NewStoreError("task", "update", "could not reach database", inner)

	assert.Contains(t, err.Error(), "update operation on task failed")
	assert.Contains(t, err.Error(), "timeout")
	assert.ErrorIs(t, err, inner)

	bare := store.NewStoreError("task", "save", "validation failed", nil)
	assert.Equal(t, "save operation on task failed: validation failed", bare.Error())
}

func TestListFilterOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		page    int
		perPage int
		want    int
	}{
		{name: "first page", page: 1, perPage: 20, want: 0},
		{name: "third page", page: 3, perPage: 10, want: 20},
		{name: "zero page clamps to first", page: 0, perPage: 20, want: 0},
		{name: "negative page clamps to first", page: -4, perPage: 20, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := store.ListFilter{Page: tc.page, PerPage: tc.perPage}
			assert.Equal(t, tc.want, f.Offset())
		})
	}
}

func TestRunInTransactionBeginFailure(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("pgx", "postgres://localhost:1/none")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = store.RunInTransaction(context.Background(), db,
		func(context.Context, *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, store.ErrTransactionFailed)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
