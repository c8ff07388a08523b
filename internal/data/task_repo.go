package data

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/jobmatch/internal/domain/model"
)

// ErrTaskNotFound is returned when a task is not found.
var ErrTaskNotFound = errors.New("task not found")

// TaskRepo is the Postgres-backed task queue. Reservation uses FOR UPDATE SKIP LOCKED,
// new work is announced with pg_notify on a per-type channel.
type TaskRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewTaskRepo creates a TaskRepo.
func NewTaskRepo(db *sql.DB, cfg RepoConfig) *TaskRepo {
	return &TaskRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: cfg.timeProvider(),
		logger:       cfg.Logger,
	}
}

const taskColumns = `
  id,
  type,
  status,
  job_id,
  payload,
  scheduled_at,
  started_at,
  completed_at,
  retry_count,
  max_retries,
  last_error,
  lease_expires_at,
  created_at,
  updated_at
`

const (
	defaultTaskRetryDelaySeconds = 30
	defaultTaskMaxRetries        = 3
)

func (r *TaskRepo) retryDelay() time.Duration {
	if r.cfg.RetryDelaySeconds > 0 {
		return time.Duration(r.cfg.RetryDelaySeconds) * time.Second
	}
	return defaultTaskRetryDelaySeconds * time.Second
}

// notifyChannel is the LISTEN/NOTIFY channel for a task type.
func notifyChannel(taskType model.TaskType) string {
	return "task_ready_" + string(taskType)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(scanner rowScanner) (*model.Task, error) {
	var (
		t                                      model.Task
		payload                                []byte
		lastError                              sql.NullString
		startedAt, completedAt, leaseExpiresAt sql.NullTime
	)
	if err := scanner.Scan(
		&t.ID,
		&t.Type,
		&t.Status,
		&t.JobID,
		&payload,
		&t.ScheduledAt,
		&startedAt,
		&completedAt,
		&t.RetryCount,
		&t.MaxRetries,
		&lastError,
		&leaseExpiresAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Payload = cloneJSON(payload)
	t.LastError = nullableString(lastError)
	t.StartedAt = nullableTime(startedAt)
	t.CompletedAt = nullableTime(completedAt)
	t.LeaseExpiresAt = nullableTime(leaseExpiresAt)
	return &t, nil
}

// collectTask reads exactly one task from pgx rows.
func collectTask(rows pgx.Rows) (*model.Task, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	t, err := scanTask(rows)
	if err != nil {
		return nil, err
	}
	return t, rows.Err()
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
