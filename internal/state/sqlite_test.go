package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/crossva/internal/testutil"
	"github.com/leapstack-labs/crossva/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	rows, err := store.db.Query("SELECT 1 FROM runs LIMIT 1")
	require.NoError(t, err)
	require.NoError(t, rows.Close())
}

func TestSQLiteStore_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	assert.Equal(t, path, store.Path())

	ctx := context.Background()
	run := &Run{Mapping: "m.csv", InputPath: "in.csv"}
	require.NoError(t, store.CreateRun(ctx, run))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "m.csv", got.Mapping)
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := &Run{
		Mapping:      "mappings/2016WHOv151_to_InterVA5.csv",
		InputPath:    "data.csv",
		OutputPath:   "out.csv",
		InputFormat:  "2016WHOv151",
		OutputFormat: "InterVA5",
	}
	require.NoError(t, store.CreateRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, core.RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Zero(t, got.Duration())

	require.NoError(t, store.CompleteRun(ctx, run.ID, core.RunResult{
		Status: core.RunStatusCompleted, Rows: 10, Columns: 245, TypeErrors: 2,
	}))

	got, err = store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, got.Status)
	assert.Equal(t, 10, got.Rows)
	assert.Equal(t, 245, got.Columns)
	assert.Equal(t, 2, got.TypeErrors)
	assert.Equal(t, "InterVA5", got.OutputFormat)
	require.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.Error)
}

func TestSQLiteStore_FailedRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := &Run{Mapping: "m.csv", InputPath: "in.csv"}
	require.NoError(t, store.CreateRun(ctx, run))
	require.NoError(t, store.CompleteRun(ctx, run.ID, core.RunResult{
		Status: core.RunStatusFailed, Error: "1 source column(s) not found in input: Id10019",
	}))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "Id10019")
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = store.CompleteRun(ctx, "nope", core.RunResult{Status: core.RunStatusCompleted})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteStore_ListAndPrune(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 5 {
		run := &Run{Mapping: "m.csv", InputPath: "in.csv", StartedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, store.CreateRun(ctx, run))
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[4], runs[0].ID, "newest first")
	assert.Equal(t, ids[3], runs[1].ID)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	deleted, err := store.DeleteOldRuns(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	all, err = store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[2].ID)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	assert.Error(t, store.CreateRun(ctx, &Run{}))
	_, err := store.GetRun(ctx, "x")
	assert.Error(t, err)
	_, err = store.ListRuns(ctx, 1)
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_DatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLiteStoreWithDB(db, testutil.NewTestLogger(t))
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO runs").WillReturnError(errors.New("disk I/O error"))
	err = store.CreateRun(ctx, &Run{Mapping: "m.csv", InputPath: "in.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create run")
	assert.Contains(t, err.Error(), "disk I/O error")

	mock.ExpectQuery("FROM runs WHERE id").
		WithArgs("abc").
		WillReturnError(errors.New("database is locked"))
	_, err = store.GetRun(ctx, "abc")
	assert.ErrorContains(t, err, "failed to get run")

	mock.ExpectExec("DELETE FROM runs").WillReturnResult(sqlmock.NewErrorResult(errors.New("no count")))
	_, err = store.DeleteOldRuns(ctx, 1)
	assert.ErrorContains(t, err, "failed to count deleted runs")

	assert.NoError(t, mock.ExpectationsWereMet())
}
