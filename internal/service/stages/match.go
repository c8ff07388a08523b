package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
	apperrors "github.com/target/jobmatch/internal/errors"
	"github.com/target/jobmatch/internal/observability/metrics"
	"github.com/target/jobmatch/internal/observability/statsd"
)

// DefaultMatchTimeout bounds the single scoring call.
const DefaultMatchTimeout = 60 * time.Second

// CredentialSource resolves the scoring credential for a job owner.
// An empty string with a nil error means no credential is available.
type CredentialSource interface {
	Resolve(ctx context.Context, owner model.Owner) (string, error)
}

// MatchOptions groups dependencies for Match.
type MatchOptions struct {
	Jobs        core.JobStore      // Required
	Artifacts   core.ArtifactStore // Required
	Scorer      core.Scorer        // Required
	Credentials CredentialSource   // Required
	Scheduler   *Scheduler         // Required
	Timeout     time.Duration      // Optional: defaults to DefaultMatchTimeout
	Metrics     statsd.Sink        // Optional
	Logger      *slog.Logger       // Optional
}

// Match scores fetched postings, writes the results document and completes the job.
// Scoring problems degrade the document; they never fail the job.
type Match struct {
	jobs        core.JobStore
	artifacts   core.ArtifactStore
	scorer      core.Scorer
	credentials CredentialSource
	scheduler   *Scheduler
	timeout     time.Duration
	cp          checkpointWriter
	metrics     statsd.Sink
	logger      *slog.Logger
}

// NewMatch validates options and returns the match stage handler.
func NewMatch(opts MatchOptions) (*Match, error) {
	switch {
	case opts.Jobs == nil:
		return nil, errors.New("job store is required")
	case opts.Artifacts == nil:
		return nil, errors.New("artifact store is required")
	case opts.Scorer == nil:
		return nil, errors.New("scorer is required")
	case opts.Credentials == nil:
		return nil, errors.New("credential source is required")
	case opts.Scheduler == nil:
		return nil, errors.New("scheduler is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultMatchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Match{
		jobs:        opts.Jobs,
		artifacts:   opts.Artifacts,
		scorer:      opts.Scorer,
		credentials: opts.Credentials,
		scheduler:   opts.Scheduler,
		timeout:     opts.Timeout,
		cp:          checkpointWriter{jobs: opts.Jobs, metrics: opts.Metrics},
		metrics:     opts.Metrics,
		logger:      logger.With("component", "match_stage"),
	}, nil
}

// Stage implements Handler.
func (m *Match) Stage() model.TaskType { return model.TaskTypeMatch }

// Handle runs one match delivery.
func (m *Match) Handle(ctx context.Context, task *model.Task) error {
	p, err := model.DecodeStagePayload(task.Payload)
	if err != nil {
		return err
	}
	log := m.logger.With("job_id", p.JobID, "task_id", task.ID, "stage", model.TaskTypeMatch)

	job, err := m.jobs.GetByID(ctx, p.JobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	switch {
	case job.Status == model.JobStatusFailed:
		log.InfoContext(ctx, "job failed earlier, skipping match")
		return nil
	case job.Status == model.JobStatusCompleted:
		// Replay after completion: only make sure cleanup is scheduled.
		log.InfoContext(ctx, "job already completed, re-scheduling cleanup")
		return m.scheduleCleanup(ctx, job)
	case job.Progress < model.ProgressMatchQueued:
		return fmt.Errorf("job %s not ready for match (progress %d)", job.ID, job.Progress)
	}

	doc := model.NewResultsDocument(p.Postings, job.Criteria)
	outcome, matchErr := m.score(ctx, job, p.Postings)
	if matchErr != nil {
		reason, _ := apperrors.MatchReasonOf(matchErr)
		doc.MatchError = string(reason)
		metrics.EmitMatchOutcome(m.metrics, string(reason))
		log.WarnContext(ctx, "match enrichment skipped", "reason", reason, "error", matchErr)
	} else {
		doc.Enrich(outcome)
		metrics.EmitMatchOutcome(m.metrics, string(outcome.Kind))
		log.InfoContext(ctx, "postings scored", "outcome", outcome.Kind, "matches", len(outcome.Scores))
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	ref, err := m.artifacts.WriteResults(ctx, job.ID, raw)
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if job, err = m.cp.advance(ctx, job, model.CheckpointCompleted(ref)); err != nil {
		return err
	}
	return m.scheduleCleanup(ctx, job)
}

func (m *Match) scheduleCleanup(ctx context.Context, job *model.Job) error {
	_, err := m.scheduler.Advance(ctx, model.TaskTypeMatch, model.StagePayload{
		JobID:        job.ID,
		ArtifactPath: job.ArtifactPath,
	})
	return err
}

// score resolves the credential, reads the resume and calls the scorer once.
// Every failure is a MatchServiceError.
func (m *Match) score(ctx context.Context, job *model.Job, postings []model.Posting) (model.MatchOutcome, error) {
	credential, err := m.credentials.Resolve(ctx, job.Owner)
	if err != nil || credential == "" {
		return model.MatchOutcome{}, apperrors.NewMatchServiceError(apperrors.MatchReasonNoCredential, err)
	}

	resume, err := m.artifacts.Read(ctx, job.ArtifactPath)
	if err != nil {
		return model.MatchOutcome{}, apperrors.NewMatchServiceError(apperrors.MatchReasonArtifactUnavailable, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	outcome, err := m.scorer.Score(callCtx, core.ScoreRequest{
		Credential: credential,
		Resume:     strings.ToValidUTF8(string(resume), ""),
		Postings:   postings,
		Criteria:   job.Criteria,
	})
	if err != nil {
		return model.MatchOutcome{}, apperrors.NewMatchServiceError(apperrors.MatchReasonScoringFailed, err)
	}
	return outcome, nil
}
