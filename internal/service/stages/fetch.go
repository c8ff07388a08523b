package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/domain/retry"
	apperrors "github.com/target/jobmatch/internal/errors"
	"github.com/target/jobmatch/internal/observability/statsd"
)

// DefaultFetchTimeout bounds one posting-source call.
const DefaultFetchTimeout = 30 * time.Second

// FetchOptions groups dependencies for Fetch.
type FetchOptions struct {
	Jobs      core.JobStore      // Required
	Source    core.PostingSource // Required
	Scheduler *Scheduler         // Required
	Retry     retry.Policy       // Optional: defaults to retry.DefaultPolicy()
	Timeout   time.Duration      // Optional: per-attempt timeout, defaults to DefaultFetchTimeout
	Metrics   statsd.Sink        // Optional
	Logger    *slog.Logger       // Optional
}

// Fetch retrieves postings for a job and hands them to the next stage.
// It is the only stage that can fail a job.
type Fetch struct {
	jobs      core.JobStore
	source    core.PostingSource
	scheduler *Scheduler
	policy    retry.Policy
	timeout   time.Duration
	cp        checkpointWriter
	logger    *slog.Logger
}

// NewFetch validates options and returns the fetch stage handler.
func NewFetch(opts FetchOptions) (*Fetch, error) {
	switch {
	case opts.Jobs == nil:
		return nil, errors.New("job store is required")
	case opts.Source == nil:
		return nil, errors.New("posting source is required")
	case opts.Scheduler == nil:
		return nil, errors.New("scheduler is required")
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetch{
		jobs:      opts.Jobs,
		source:    opts.Source,
		scheduler: opts.Scheduler,
		policy:    opts.Retry,
		timeout:   opts.Timeout,
		cp:        checkpointWriter{jobs: opts.Jobs, metrics: opts.Metrics},
		logger:    logger.With("component", "fetch_stage"),
	}
	return f, nil
}

// Stage implements Handler.
func (f *Fetch) Stage() model.TaskType { return model.TaskTypeFetch }

// Handle runs one fetch delivery. A returned error asks the queue to redeliver. When that
// error comes from the final delivery the job is failed here, since no redelivery will follow.
func (f *Fetch) Handle(ctx context.Context, task *model.Task) (err error) {
	p, err := model.DecodeStagePayload(task.Payload)
	if err != nil {
		return err
	}
	log := f.logger.With("job_id", p.JobID, "task_id", task.ID, "stage", model.TaskTypeFetch)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "fetch stage panic", "panic", r)
			f.fail(ctx, log, p.JobID)
			err = fmt.Errorf("fetch stage panic: %v", r)
		}
	}()

	err = f.run(ctx, log, p.JobID)
	if err != nil && task.LastDelivery() && ctx.Err() == nil {
		log.ErrorContext(ctx, "fetch delivery exhausted", "error", err, "retry_count", task.RetryCount)
		f.fail(ctx, log, p.JobID)
	}
	return err
}

func (f *Fetch) run(ctx context.Context, log *slog.Logger, jobID string) error {
	job, err := f.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status.Terminal() {
		log.InfoContext(ctx, "job already terminal, skipping fetch", "status", job.Status)
		return nil
	}
	if job.Progress >= model.ProgressMatchQueued {
		log.InfoContext(ctx, "match already queued, skipping fetch")
		return nil
	}

	if job, err = f.cp.advance(ctx, job, model.CheckpointFetchStarted); err != nil {
		return err
	}

	postings, err := retry.Do(ctx, f.withRetryLog(ctx, log), func(ctx context.Context, _ int) ([]model.Posting, error) {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		return f.source.Search(callCtx, job.Criteria)
	})
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not a source failure: leave the job for redelivery.
			return ctx.Err()
		}
		log.ErrorContext(ctx, "fetch failed", "error", err, "exhausted", isExhausted(err))
		f.fail(ctx, log, jobID)
		return nil
	}
	log.InfoContext(ctx, "postings fetched", "count", len(postings))

	if job, err = f.cp.advance(ctx, job, model.CheckpointFetchDone); err != nil {
		return err
	}
	next := model.StagePayload{JobID: job.ID, Postings: postings, ArtifactPath: job.ArtifactPath}
	if _, err = f.scheduler.Advance(ctx, model.TaskTypeFetch, next); err != nil {
		return err
	}
	_, err = f.cp.advance(ctx, job, model.CheckpointMatchQueued)
	return err
}

func (f *Fetch) fail(ctx context.Context, log *slog.Logger, jobID string) {
	if _, err := f.jobs.ApplyCheckpoint(ctx, jobID, model.CheckpointFailed); err != nil {
		log.ErrorContext(ctx, "mark job failed", "error", err)
		return
	}
	f.cp.emit(model.CheckpointFailed)
}

func (f *Fetch) withRetryLog(ctx context.Context, log *slog.Logger) retry.Policy {
	p := f.policy
	prev := p.OnRetry
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.WarnContext(ctx, "fetch attempt failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		if prev != nil {
			prev(attempt, delay, err)
		}
	}
	return p
}

func isExhausted(err error) bool {
	var ex *apperrors.ExhaustedRetriesError
	return errors.As(err, &ex)
}
