package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/data/pgxutil"
)

// Advisory lock keys for queue maintenance; two-argument form keeps them out of other namespaces.
const (
	advisoryLockReaperMajor       = 2000
	advisoryLockReaperFailPending = 1
	advisoryLockReaperDelete      = 2
)

// withReaperLock runs fn in a transaction holding the given reaper lock. When another
// reaper holds it the call is a no-op returning 0.
func (r *TaskRepo) withReaperLock(ctx context.Context, minor int, fn func(tx *sql.Tx) (int64, error)) (int64, error) {
	var affected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx,
				"SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, minor,
			).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}
			n, err := fn(tx)
			affected = n
			return err
		},
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// failStalePendingSQL fails pending tasks that have been due for longer than the cutoff ($2).
// Jobs whose fetch task is failed this way are failed too; $3 is the batch size.
const failStalePendingSQL = `
  WITH updated AS (
    UPDATE tasks
    SET status = 'failed',
        last_error = 'task timed out waiting for a worker',
        completed_at = $1,
        updated_at = $1
    WHERE id IN (
      SELECT id FROM tasks
      WHERE status = 'pending'
        AND scheduled_at < $2
      ORDER BY scheduled_at
      LIMIT $3
    )
    RETURNING type, job_id, status
  ), failed_jobs AS (
    UPDATE match_jobs j
    SET status = 'failed', progress = 0, results_ref = NULL, updated_at = $1
    FROM updated u
    WHERE u.type = 'fetch' AND j.id = u.job_id
      AND j.status IN ('queued', 'running')
    RETURNING j.id
  )
  SELECT (SELECT count(*) FROM updated), (SELECT count(*) FROM failed_jobs)`

// FailStalePendingTasks marks pending tasks that have been due for longer than maxAge as failed.
// Delayed tasks are measured from their scheduled time, so a cleanup scheduled a week out is not stale.
// A job whose fetch task never ran is failed along with it.
func (r *TaskRepo) FailStalePendingTasks(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	return r.withReaperLock(ctx, advisoryLockReaperFailPending, func(tx *sql.Tx) (int64, error) {
		now := r.timeProvider.Now().UTC()
		var tasks, jobs int64
		if err := tx.QueryRowContext(ctx, failStalePendingSQL, now, now.Add(-maxAge), batchSize).
			Scan(&tasks, &jobs); err != nil {
			return 0, fmt.Errorf("fail stale pending tasks: %w", err)
		}
		if jobs > 0 && r.logger != nil {
			r.logger.WarnContext(ctx, "failed jobs whose fetch task never ran", "count", jobs)
		}
		return tasks, nil
	})
}

// DeleteOldTasks deletes finished tasks of the given status older than MaxAge.
func (r *TaskRepo) DeleteOldTasks(ctx context.Context, params core.DeleteOldTasksParams) (int64, error) {
	if !params.Status.Valid() {
		return 0, fmt.Errorf("invalid task status: %s", params.Status)
	}
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	return r.withReaperLock(ctx, advisoryLockReaperDelete, func(tx *sql.Tx) (int64, error) {
		cutoff := r.timeProvider.Now().Add(-params.MaxAge).UTC()
		res, err := tx.ExecContext(ctx, `
			DELETE FROM tasks
			WHERE id IN (
				SELECT id FROM tasks
				WHERE status = $1
				  AND COALESCE(completed_at, updated_at) < $2
				ORDER BY COALESCE(completed_at, updated_at)
				LIMIT $3
			)
		`, params.Status, cutoff, params.BatchSize)
		if err != nil {
			return 0, fmt.Errorf("delete old tasks: %w", err)
		}
		return res.RowsAffected()
	})
}

var _ core.ReaperRepository = (*TaskRepo)(nil)
