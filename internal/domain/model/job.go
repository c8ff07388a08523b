// Package model defines the core data types shared by the job matching pipeline.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus is the externally visible state of a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Valid returns true if the JobStatus is known.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusRunning || s == JobStatusCompleted || s == JobStatusFailed
}

// Terminal reports whether no further transition may leave this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Progress is a job checkpoint percentage. Only the five declared values are legal.
type Progress int

const (
	ProgressQueued      Progress = 0
	ProgressFetching    Progress = 25
	ProgressFetched     Progress = 60
	ProgressMatchQueued Progress = 90
	ProgressComplete    Progress = 100
)

// Valid returns true if p is one of the declared checkpoints.
func (p Progress) Valid() bool {
	switch p {
	case ProgressQueued, ProgressFetching, ProgressFetched, ProgressMatchQueued, ProgressComplete:
		return true
	default:
		return false
	}
}

var (
	// ErrInvalidCheckpoint is returned when a status/progress pair violates the job invariants.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
	// ErrTerminalState is returned when a write targets a completed or failed job.
	ErrTerminalState = errors.New("job is in a terminal state")
	// ErrProgressRegression is returned when a write would move progress backwards.
	ErrProgressRegression = errors.New("progress may not decrease")
)

// Checkpoint is an absolute (status, progress, results) write. Replaying the same
// checkpoint is harmless; stages never increment.
type Checkpoint struct {
	Status     JobStatus
	Progress   Progress
	ResultsRef *string
}

// Checkpoints written by the stages, in pipeline order.
var (
	CheckpointFetchStarted = Checkpoint{Status: JobStatusRunning, Progress: ProgressFetching}
	CheckpointFetchDone    = Checkpoint{Status: JobStatusRunning, Progress: ProgressFetched}
	CheckpointMatchQueued  = Checkpoint{Status: JobStatusRunning, Progress: ProgressMatchQueued}
	CheckpointFailed       = Checkpoint{Status: JobStatusFailed, Progress: ProgressQueued}
)

// CheckpointCompleted returns the terminal success checkpoint pointing at ref.
func CheckpointCompleted(ref string) Checkpoint {
	return Checkpoint{Status: JobStatusCompleted, Progress: ProgressComplete, ResultsRef: &ref}
}

// Validate checks the checkpoint against the job invariants.
func (c Checkpoint) Validate() error {
	if !c.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidCheckpoint, c.Status)
	}
	if !c.Progress.Valid() {
		return fmt.Errorf("%w: progress %d is not a checkpoint", ErrInvalidCheckpoint, c.Progress)
	}
	hasRef := c.ResultsRef != nil && strings.TrimSpace(*c.ResultsRef) != ""
	if (c.Status == JobStatusCompleted) != hasRef {
		return fmt.Errorf("%w: results reference must be set iff completed", ErrInvalidCheckpoint)
	}
	switch c.Status {
	case JobStatusQueued, JobStatusFailed:
		if c.Progress != ProgressQueued {
			return fmt.Errorf("%w: %s requires progress 0", ErrInvalidCheckpoint, c.Status)
		}
	case JobStatusRunning:
		if c.Progress == ProgressQueued || c.Progress == ProgressComplete {
			return fmt.Errorf("%w: running cannot hold progress %d", ErrInvalidCheckpoint, c.Progress)
		}
	case JobStatusCompleted:
		if c.Progress != ProgressComplete {
			return fmt.Errorf("%w: completed requires progress 100", ErrInvalidCheckpoint)
		}
	}
	return nil
}

// Job is one tracked submission spanning fetch, match and cleanup.
type Job struct {
	ID           string    `json:"id"                    db:"id"`
	Owner        Owner     `json:"owner"                 db:"-"`
	Criteria     Criteria  `json:"criteria"              db:"-"`
	ArtifactPath string    `json:"artifact_path"         db:"artifact_path"`
	Fingerprint  string    `json:"fingerprint"           db:"fingerprint"`
	Status       JobStatus `json:"status"                db:"status"`
	Progress     Progress  `json:"progress"              db:"progress"`
	ResultsRef   *string   `json:"results_ref,omitempty" db:"results_ref"`
	CreatedAt    time.Time `json:"created_at"            db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"            db:"updated_at"`
}

// CanApply reports whether c is a legal next write for the job in its current state.
func (j *Job) CanApply(c Checkpoint) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	if c.Status != JobStatusFailed && c.Progress < j.Progress {
		return fmt.Errorf("%w: %d -> %d", ErrProgressRegression, j.Progress, c.Progress)
	}
	return nil
}

// StatusMessage is the human-readable line shown to polling clients.
func (j *Job) StatusMessage() string {
	return string(j.Status) + "..."
}

// CreateJobRequest carries everything intake knows about a new job.
type CreateJobRequest struct {
	Owner        Owner
	Criteria     Criteria
	ArtifactPath string
	Fingerprint  string
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if err := r.Owner.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.ArtifactPath) == "" {
		return errors.New("artifact path is required")
	}
	if strings.TrimSpace(r.Fingerprint) == "" {
		return errors.New("fingerprint is required")
	}
	return nil
}

// JobCounts counts jobs by status.
type JobCounts struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
