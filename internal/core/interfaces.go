package core

import (
	"context"
	"time"

	"github.com/target/jobmatch/internal/domain/model"
)

// Ports between the service layer and its adapters. Services depend on these
// interfaces; data and adapter packages provide the implementations.

// TaskRepository is the durable, at-least-once task queue.
type TaskRepository interface {
	Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error)
	GetByID(ctx context.Context, id string) (*model.Task, error)
	ReserveNext(ctx context.Context, taskType model.TaskType, leaseSeconds int) (*model.Task, error)
	WaitForNotification(ctx context.Context, taskType model.TaskType) error
	Heartbeat(ctx context.Context, id string, leaseSeconds int) (bool, error)
	Complete(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, id, errMsg string) (bool, error)
	Stats(ctx context.Context, taskType model.TaskType) (*model.TaskStats, error)
	ListByJob(ctx context.Context, jobID string) ([]*model.Task, error)
}

// JobStore persists job records. ApplyCheckpoint is an absolute write, never an increment.
type JobStore interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ApplyCheckpoint(ctx context.Context, id string, cp model.Checkpoint) (*model.Job, error)
	Counts(ctx context.Context) (*model.JobCounts, error)
}

// StageClaimRepository guards a job stage against concurrent double execution.
type StageClaimRepository interface {
	Claim(ctx context.Context, claim model.StageClaim) (model.ClaimState, error)
	MarkDone(ctx context.Context, jobID string, stage model.TaskType) error
	Release(ctx context.Context, claim model.StageClaim) error
}

// UserRepository stores registered accounts and guest identities.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetOrCreateGuest(ctx context.Context, sessionMarker string) (*model.User, error)
	UpsertRegistered(ctx context.Context, req model.UpsertUserRequest) (*model.User, error)
	SetScoringKey(ctx context.Context, userID, ciphertext string) error
}

// DeleteOldTasksParams groups parameters for DeleteOldTasks.
type DeleteOldTasksParams struct {
	Status    model.TaskStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository prunes the task queue. The only job rows it writes are jobs whose fetch
// task it fails.
type ReaperRepository interface {
	// FailStalePendingTasks marks pending tasks older than maxAge (past their schedule) as failed.
	// A failed fetch task takes its non-terminal job down with it.
	FailStalePendingTasks(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
	// DeleteOldTasks deletes tasks with the given status whose last update is older than MaxAge.
	DeleteOldTasks(ctx context.Context, params DeleteOldTasksParams) (int64, error)
}

// ArtifactStore holds uploaded resumes and results documents.
type ArtifactStore interface {
	SaveUpload(ctx context.Context, filename string, data []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	// Delete removes path. A missing file is not an error.
	Delete(ctx context.Context, path string) error
	WriteResults(ctx context.Context, jobID string, doc []byte) (string, error)
	ReadResults(ctx context.Context, ref string) ([]byte, error)
}

// PostingSource finds job postings for the given criteria.
type PostingSource interface {
	Search(ctx context.Context, criteria model.Criteria) ([]model.Posting, error)
}

// ScoreRequest is one scoring call for a job.
type ScoreRequest struct {
	Credential string
	Resume     string
	Postings   []model.Posting
	Criteria   model.Criteria
}

// Scorer calls the external scoring service. A response that cannot be parsed is a
// Raw outcome, not an error; errors mean no usable response came back.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (model.MatchOutcome, error)
}
