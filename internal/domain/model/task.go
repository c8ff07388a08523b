package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TaskType names a pipeline stage. Each stage has its own worker pool and queue channel.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type TaskType string

// TaskStatus represents the delivery state of a queued task.
type TaskStatus string

const (
	// TaskTypeFetch retrieves postings for a job's criteria.
	TaskTypeFetch TaskType = "fetch"
	// TaskTypeMatch scores fetched postings against the job's resume.
	TaskTypeMatch TaskType = "match"
	// TaskTypeCleanup deletes the uploaded resume after the retention window.
	TaskTypeCleanup TaskType = "cleanup"

	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// ErrNoTasksAvailable is returned when nothing is ready for reservation.
var ErrNoTasksAvailable = errors.New("no tasks available")

// UnmarshalText implements encoding.TextUnmarshaler so task types can be read from env/flags.
func (t *TaskType) UnmarshalText(text []byte) error {
	v := TaskType(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid TaskType: %q", v)
	}
	*t = v
	return nil
}

// Valid returns true if the TaskType is known.
func (t TaskType) Valid() bool {
	return t == TaskTypeFetch || t == TaskTypeMatch || t == TaskTypeCleanup
}

// Valid returns true if the TaskStatus is known.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusPending || s == TaskStatusRunning || s == TaskStatusCompleted ||
		s == TaskStatusFailed
}

// Task is one delivery unit on the durable queue. A redelivered task keeps its ID.
type Task struct {
	ID             string          `json:"id"                         db:"id"`
	Type           TaskType        `json:"type"                       db:"type"`
	Status         TaskStatus      `json:"status"                     db:"status"`
	JobID          string          `json:"job_id"                     db:"job_id"`
	Payload        json.RawMessage `json:"payload"                    db:"payload"`
	ScheduledAt    time.Time       `json:"scheduled_at"               db:"scheduled_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"       db:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"     db:"completed_at"`
	RetryCount     int             `json:"retry_count"                db:"retry_count"`
	MaxRetries     int             `json:"max_retries"                db:"max_retries"`
	LastError      *string         `json:"last_error,omitempty"       db:"last_error"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt      time.Time       `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"                 db:"updated_at"`
}

// LastDelivery reports whether a failure of this delivery exhausts the task's retries.
func (t *Task) LastDelivery() bool {
	return t.MaxRetries > 0 && t.RetryCount+1 >= t.MaxRetries
}

// CreateTaskRequest describes a task to enqueue. A zero ScheduledAt means "now".
type CreateTaskRequest struct {
	Type        TaskType        `json:"type"`
	JobID       string          `json:"job_id"`
	Payload     json.RawMessage `json:"payload"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
	MaxRetries  int             `json:"max_retries"`
}

// Validate validates the CreateTaskRequest fields.
func (r *CreateTaskRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("invalid task type")
	}
	if strings.TrimSpace(r.JobID) == "" {
		return errors.New("job_id is required")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	if r.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	return nil
}

// StagePayload is the JSON body carried by every stage task.
type StagePayload struct {
	JobID        string    `json:"job_id"`
	Postings     []Posting `json:"postings,omitempty"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
}

// DecodeStagePayload parses a task payload and checks the job reference.
func DecodeStagePayload(raw json.RawMessage) (StagePayload, error) {
	var p StagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return StagePayload{}, fmt.Errorf("decode stage payload: %w", err)
	}
	if strings.TrimSpace(p.JobID) == "" {
		return StagePayload{}, errors.New("stage payload missing job_id")
	}
	return p, nil
}

// TaskStats counts tasks of one type by status.
type TaskStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
