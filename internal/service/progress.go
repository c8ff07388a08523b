package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
)

// ProgressReporter is the read-only projection of job state for polling clients.
type ProgressReporter struct {
	jobs      core.JobStore
	artifacts core.ArtifactStore
	tasks     core.TaskRepository
}

// NewProgressReporter constructs a ProgressReporter. tasks may be nil when Overview is not needed.
func NewProgressReporter(jobs core.JobStore, artifacts core.ArtifactStore, tasks core.TaskRepository) (*ProgressReporter, error) {
	if jobs == nil {
		return nil, errors.New("JobStore is required")
	}
	if artifacts == nil {
		return nil, errors.New("ArtifactStore is required")
	}
	return &ProgressReporter{jobs: jobs, artifacts: artifacts, tasks: tasks}, nil
}

// JobStatus is the polling view of a job.
type JobStatus struct {
	Status   model.JobStatus `json:"status"`
	Progress model.Progress  `json:"progress"`
	Message  string          `json:"message"`
}

// Status returns the current status of a job. Unknown ids yield a not-found error from the store.
func (p *ProgressReporter) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobStatus{Status: job.Status, Progress: job.Progress, Message: job.StatusMessage()}, nil
}

// ResultsView is either the stored results document or a pending indicator.
type ResultsView struct {
	Ready    bool
	Document []byte
	Status   model.JobStatus
}

// Results returns the results document for a completed job, or a pending view carrying the
// current status. A completed job whose document cannot be read yields ErrResultsUnavailable.
func (p *ProgressReporter) Results(ctx context.Context, jobID string) (*ResultsView, error) {
	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return p.results(ctx, job)
}

func (p *ProgressReporter) results(ctx context.Context, job *model.Job) (*ResultsView, error) {
	if job.Status != model.JobStatusCompleted || job.ResultsRef == nil {
		return &ResultsView{Status: job.Status}, nil
	}
	doc, err := p.artifacts.ReadResults(ctx, *job.ResultsRef)
	if err != nil {
		return nil, fmt.Errorf("%w: read results for job %s: %w", ErrResultsUnavailable, job.ID, err)
	}
	return &ResultsView{Ready: true, Document: doc, Status: job.Status}, nil
}

// Download returns the results for a job owned by owner. A job owned by anyone else
// yields ErrOwnerMismatch; an unfinished job yields ErrResultsNotReady.
func (p *ProgressReporter) Download(ctx context.Context, jobID string, owner model.Owner) ([]byte, error) {
	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Owner.Same(owner) {
		return nil, ErrOwnerMismatch
	}
	view, err := p.results(ctx, job)
	if err != nil {
		return nil, err
	}
	if !view.Ready {
		return nil, fmt.Errorf("%w: status %s", ErrResultsNotReady, view.Status)
	}
	return view.Document, nil
}

// Overview is the admin snapshot of queue and job state.
type Overview struct {
	Queues map[model.TaskType]*model.TaskStats `json:"queues"`
	Jobs   *model.JobCounts                    `json:"jobs"`
}

// Overview returns per-stage queue statistics and job counts by status.
func (p *ProgressReporter) Overview(ctx context.Context) (*Overview, error) {
	if p.tasks == nil {
		return nil, errors.New("task repository not configured")
	}
	out := &Overview{Queues: make(map[model.TaskType]*model.TaskStats)}
	for _, stage := range []model.TaskType{model.TaskTypeFetch, model.TaskTypeMatch, model.TaskTypeCleanup} {
		stats, err := p.tasks.Stats(ctx, stage)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", stage, err)
		}
		out.Queues[stage] = stats
	}
	counts, err := p.jobs.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("job counts: %w", err)
	}
	out.Jobs = counts
	return out, nil
}
