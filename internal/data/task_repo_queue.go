package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/target/jobmatch/internal/data/pgxutil"
	"github.com/target/jobmatch/internal/domain/model"
)

const reserveNextSQL = `
  WITH next AS (
    SELECT id FROM tasks
    WHERE type = $1 AND status = 'pending' AND scheduled_at <= $2
    ORDER BY scheduled_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE tasks t
  SET
    status = 'running',
    started_at = COALESCE(t.started_at, $2),
    lease_expires_at = $3,
    updated_at = $2
  FROM next
  WHERE t.id = next.id
  RETURNING t.id, t.type, t.status, t.job_id, t.payload, t.scheduled_at, t.started_at, t.completed_at,
            t.retry_count, t.max_retries, t.last_error, t.lease_expires_at, t.created_at, t.updated_at`

// Create enqueues a task and notifies idle workers of its type in the same transaction.
// A ScheduledAt in the future delays delivery until then.
func (r *TaskRepo) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	if req == nil {
		return nil, errors.New("create task request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	scheduledAt := r.timeProvider.Now().UTC()
	if req.ScheduledAt != nil {
		scheduledAt = req.ScheduledAt.UTC()
	}
	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultTaskMaxRetries
	}

	var task *model.Task
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, `
				INSERT INTO tasks (type, status, job_id, payload, scheduled_at, max_retries)
				VALUES ($1, 'pending', $2, $3, $4, $5)
				RETURNING `+taskColumns,
				req.Type, req.JobID, []byte(req.Payload), scheduledAt, maxRetries,
			)
			if err != nil {
				return fmt.Errorf("insert task: %w", err)
			}
			task, err = collectTask(rows)
			rows.Close()
			if err != nil {
				return fmt.Errorf("collect task: %w", err)
			}

			if _, err := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, notifyChannel(req.Type), task.ID); err != nil {
				return fmt.Errorf("notify task ready: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

const advisoryLockRequeueMajor int64 = 2001

func advisoryLockRequeueMinor(taskType model.TaskType) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(taskType))
	return int64(h.Sum32() & math.MaxInt32)
}

// requeueExpired returns running tasks whose lease lapsed to pending. Only one caller per
// task type does the sweep at a time; the others skip it.
func (r *TaskRepo) requeueExpired(ctx context.Context, taskType model.TaskType) (int64, error) {
	var requeued int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx,
				"SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)",
				advisoryLockRequeueMajor, advisoryLockRequeueMinor(taskType),
			).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			res, err := tx.ExecContext(ctx, `
				UPDATE tasks
				SET status = 'pending', lease_expires_at = NULL
				WHERE type = $1 AND status = 'running'
				  AND lease_expires_at IS NOT NULL
				  AND lease_expires_at < $2
			`, taskType, r.timeProvider.Now().UTC())
			if err != nil {
				return fmt.Errorf("requeue expired: %w", err)
			}
			requeued, err = res.RowsAffected()
			return err
		},
	})
	if err != nil {
		return 0, err
	}
	if requeued > 0 && r.logger != nil {
		r.logger.InfoContext(ctx, "requeued tasks with expired leases", "type", taskType, "count", requeued)
	}
	return requeued, nil
}

// ReserveNext leases the oldest due task of taskType. It returns model.ErrNoTasksAvailable
// when nothing is due.
func (r *TaskRepo) ReserveNext(ctx context.Context, taskType model.TaskType, leaseSeconds int) (*model.Task, error) {
	if !taskType.Valid() {
		return nil, fmt.Errorf("invalid task type: %s", taskType)
	}
	if _, err := r.requeueExpired(ctx, taskType); err != nil {
		return nil, fmt.Errorf("requeue expired tasks: %w", err)
	}

	var task *model.Task
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now().UTC()
			lease := now.Add(time.Duration(leaseSeconds) * time.Second)

			rows, err := tx.Query(ctx, reserveNextSQL, taskType, now, lease)
			if err != nil {
				return fmt.Errorf("reserve task: %w", err)
			}
			defer rows.Close()

			t, err := collectTask(rows)
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrNoTasksAvailable
			}
			if err != nil {
				return fmt.Errorf("reserve task: %w", err)
			}
			task = t
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Heartbeat extends the lease of a running task.
func (r *TaskRepo) Heartbeat(ctx context.Context, id string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE tasks
		SET lease_expires_at = $2, updated_at = $3
		WHERE id = $1 AND status = 'running'
	`, id, now.Add(time.Duration(leaseSeconds)*time.Second), now)
	if err != nil {
		return false, fmt.Errorf("heartbeat task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}
	return n > 0, nil
}

// Complete acknowledges a running task.
func (r *TaskRepo) Complete(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'completed',
		    completed_at = $2,
		    updated_at = $2,
		    lease_expires_at = NULL,
		    last_error = NULL
		WHERE id = $1 AND status = 'running'
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return n > 0, nil
}

// failTaskSQL records a failed delivery. A fetch task that ends failed takes its job with it.
const failTaskSQL = `
  WITH updated AS (
    UPDATE tasks
    SET
      last_error = $2,
      retry_count = retry_count + 1,
      status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
      completed_at = CASE WHEN retry_count + 1 >= max_retries THEN $3::timestamptz ELSE NULL END,
      scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at ELSE $4::timestamptz END,
      lease_expires_at = NULL,
      updated_at = $3
    WHERE id = $1 AND status = 'running'
    RETURNING type, job_id, status
  ), ` + failFetchJobsCTE + `
  SELECT u.status, (SELECT count(*) FROM failed_jobs) FROM updated u`

// failFetchJobsCTE fails the non-terminal jobs of fetch tasks in "updated" that ended failed.
const failFetchJobsCTE = `failed_jobs AS (
    UPDATE match_jobs j
    SET status = 'failed', progress = 0, results_ref = NULL, updated_at = $3
    FROM updated u
    WHERE u.status = 'failed' AND u.type = 'fetch' AND j.id = u.job_id
      AND j.status IN ('queued', 'running')
    RETURNING j.id
  )`

// Fail records a failed delivery. The task is rescheduled after the retry delay until
// max_retries deliveries have failed, then it is marked failed. An exhausted fetch task also
// fails its job.
func (r *TaskRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	retryAt := now.Add(r.retryDelay())

	var (
		status     string
		failedJobs int64
	)
	err := r.DB.QueryRowContext(ctx, failTaskSQL, id, errMsg, now, retryAt).Scan(&status, &failedJobs)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fail task: %w", err)
	}
	if status == string(model.TaskStatusFailed) && r.logger != nil {
		r.logger.WarnContext(ctx, "task exhausted its retries",
			"task_id", id, "error", errMsg, "jobs_failed", failedJobs)
	}
	return true, nil
}

// Stats counts tasks of the given type by status.
func (r *TaskRepo) Stats(ctx context.Context, taskType model.TaskType) (*model.TaskStats, error) {
	var s model.TaskStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
		  count(*) FILTER (WHERE status = 'pending')   AS pending,
		  count(*) FILTER (WHERE status = 'running')   AS running,
		  count(*) FILTER (WHERE status = 'completed') AS completed,
		  count(*) FILTER (WHERE status = 'failed')    AS failed
		FROM tasks
		WHERE type = $1
	`, taskType).Scan(&s.Pending, &s.Running, &s.Completed, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks until a task of taskType is announced or ctx ends.
func (r *TaskRepo) WaitForNotification(ctx context.Context, taskType model.TaskType) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() { _ = conn.Close() }()

	channel := pgx.Identifier{notifyChannel(taskType)}.Sanitize()
	if _, err := conn.ExecContext(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "UNLISTEN "+channel)
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, err := sc.Conn().WaitForNotification(ctx)
		return err
	})
}

// GetByID retrieves a task.
func (r *TaskRepo) GetByID(ctx context.Context, id string) (*model.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTaskNotFound
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListByJob returns every task recorded for a job, oldest first.
func (r *TaskRepo) ListByJob(ctx context.Context, jobID string) ([]*model.Task, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, nil
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE job_id = $1
		ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
