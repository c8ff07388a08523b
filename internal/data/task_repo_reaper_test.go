package data

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
)

func newTaskRepoWithMock(t *testing.T, now time.Time) (*TaskRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTaskRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)}), mock
}

func TestTaskRepo_FailStalePendingTasks(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, mock := newTaskRepoWithMock(t, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_xact_lock($1, $2)")).
		WithArgs(advisoryLockReaperMajor, advisoryLockReaperFailPending).
		WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(true))
	mock.ExpectQuery(`UPDATE tasks\s+SET status = 'failed'`).
		WithArgs(now, now.Add(-time.Hour), 100).
		WillReturnRows(sqlmock.NewRows([]string{"tasks", "jobs"}).AddRow(4, 0))
	mock.ExpectCommit()

	n, err := repo.FailStalePendingTasks(context.Background(), time.Hour, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_FailStalePendingTasks_FailsJobsOfFetchTasks(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, mock := newTaskRepoWithMock(t, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_xact_lock($1, $2)")).
		WithArgs(advisoryLockReaperMajor, advisoryLockReaperFailPending).
		WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(true))
	mock.ExpectQuery(`(?s)UPDATE tasks.*UPDATE match_jobs j\s+SET status = 'failed', progress = 0, results_ref = NULL.*u\.type = 'fetch'.*j\.status IN \('queued', 'running'\)`).
		WithArgs(now, now.Add(-time.Hour), 100).
		WillReturnRows(sqlmock.NewRows([]string{"tasks", "jobs"}).AddRow(2, 1))
	mock.ExpectCommit()

	n, err := repo.FailStalePendingTasks(context.Background(), time.Hour, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "the count is of tasks, not jobs")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_FailStalePendingTasks_LockHeldElsewhere(t *testing.T) {
	repo, mock := newTaskRepoWithMock(t, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_xact_lock($1, $2)")).
		WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(false))
	mock.ExpectCommit()

	n, err := repo.FailStalePendingTasks(context.Background(), time.Hour, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_DeleteOldTasks(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, mock := newTaskRepoWithMock(t, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_xact_lock($1, $2)")).
		WithArgs(advisoryLockReaperMajor, advisoryLockReaperDelete).
		WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(true))
	mock.ExpectExec(`DELETE FROM tasks`).
		WithArgs(model.TaskStatusCompleted, now.Add(-24*time.Hour), 50).
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectCommit()

	n, err := repo.DeleteOldTasks(context.Background(), core.DeleteOldTasksParams{
		Status:    model.TaskStatusCompleted,
		MaxAge:    24 * time.Hour,
		BatchSize: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_DeleteOldTasks_Validation(t *testing.T) {
	repo, _ := newTaskRepoWithMock(t, time.Now())

	_, err := repo.DeleteOldTasks(context.Background(), core.DeleteOldTasksParams{Status: "bogus", BatchSize: 1})
	assert.Error(t, err)

	_, err = repo.DeleteOldTasks(context.Background(), core.DeleteOldTasksParams{Status: model.TaskStatusFailed})
	assert.Error(t, err)
}

func TestTaskRepo_FailAndComplete(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTaskRepo(db, RepoConfig{RetryDelaySeconds: 5, TimeProvider: NewFixedTimeProvider(now)})

	mock.ExpectQuery(`UPDATE tasks\s+SET\s+last_error = \$2`).
		WithArgs("t1", "boom", now, now.Add(5*time.Second)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "jobs"}).AddRow("pending", 0))
	ok, err := repo.Fail(context.Background(), "t1", "boom")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery(`UPDATE tasks`).
		WithArgs("gone", "boom", now, now.Add(5*time.Second)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "jobs"}))
	ok, err = repo.Fail(context.Background(), "gone", "boom")
	require.NoError(t, err)
	assert.False(t, ok, "a task that is not running is not failed")

	mock.ExpectExec(`UPDATE tasks\s+SET status = 'completed'`).
		WithArgs("t2", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.Complete(context.Background(), "t2")
	require.NoError(t, err)
	assert.False(t, ok, "a task that is no longer running is not acknowledged")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_Fail_ExhaustedFetchFailsJob(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, mock := newTaskRepoWithMock(t, now)

	mock.ExpectQuery(`(?s)RETURNING type, job_id, status.*UPDATE match_jobs j\s+SET status = 'failed', progress = 0, results_ref = NULL.*WHERE u\.status = 'failed' AND u\.type = 'fetch'`).
		WithArgs("t1", "queue unavailable", now, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"status", "jobs"}).AddRow("failed", 1))

	ok, err := repo.Fail(context.Background(), "t1", "queue unavailable")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
