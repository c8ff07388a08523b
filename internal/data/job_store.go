package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/data/pgxutil"
	"github.com/target/jobmatch/internal/domain/model"
	apperrors "github.com/target/jobmatch/internal/errors"
)

// JobRepo persists match jobs. Every status write goes through ApplyCheckpoint, which
// locks the row and validates the transition before writing absolute values.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a JobRepo.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	return &JobRepo{DB: db, timeProvider: cfg.timeProvider(), logger: cfg.Logger}
}

const jobColumns = `
  id,
  owner_id,
  owner_kind,
  job_titles,
  location,
  years_of_experience,
  skills,
  artifact_path,
  fingerprint,
  status,
  progress,
  results_ref,
  created_at,
  updated_at
`

func scanJob(scanner rowScanner) (*model.Job, error) {
	var (
		j          model.Job
		years      sql.NullInt64
		skills     string
		resultsRef sql.NullString
	)
	if err := scanner.Scan(
		&j.ID,
		&j.Owner.ID,
		&j.Owner.Kind,
		&j.Criteria.JobTitles,
		&j.Criteria.Location,
		&years,
		&skills,
		&j.ArtifactPath,
		&j.Fingerprint,
		&j.Status,
		&j.Progress,
		&resultsRef,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if years.Valid {
		y := int(years.Int64)
		j.Criteria.YearsOfExperience = &y
	}
	j.Criteria.Skills = model.ParseSkills(skills)
	j.ResultsRef = nullableString(resultsRef)
	return &j, nil
}

func jobNotFound() error {
	return apperrors.Wrap(ErrJobNotFound, apperrors.ErrCodeNotFound, "job not found")
}

// Create inserts a queued job at progress 0.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job")
	}

	var years sql.NullInt64
	if y := req.Criteria.YearsOfExperience; y != nil {
		years = sql.NullInt64{Int64: int64(*y), Valid: true}
	}
	now := r.timeProvider.Now().UTC()

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO match_jobs (
		  owner_id, owner_kind, job_titles, location, years_of_experience, skills,
		  artifact_path, fingerprint, status, progress, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'queued', 0, $9, $9)
		RETURNING `+jobColumns,
		req.Owner.ID, req.Owner.Kind, req.Criteria.JobTitles, req.Criteria.Location, years,
		req.Criteria.SkillsCSV(), req.ArtifactPath, req.Fingerprint, now,
	)
	job, err := scanJob(row)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("insert job: %w", err))
	}
	return job, nil
}

// GetByID retrieves a job. Malformed and unknown ids are both NotFound.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, jobNotFound()
	}
	job, err := scanJob(r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM match_jobs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ApplyCheckpoint writes cp to the job if the transition is legal. Terminal jobs and
// regressions come back as Conflict errors wrapping model.ErrTerminalState or
// model.ErrProgressRegression.
func (r *JobRepo) ApplyCheckpoint(ctx context.Context, id string, cp model.Checkpoint) (*model.Job, error) {
	if err := cp.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid checkpoint")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, jobNotFound()
	}

	var (
		updated *model.Job
		err     error
	)
	// Concurrent stage workers can deadlock on the row lock; a fresh transaction succeeds.
	for attempt := 1; ; attempt++ {
		updated, err = r.applyCheckpointTx(ctx, id, cp)
		if err == nil || attempt == checkpointAttempts || !apperrors.IsRetryableDBError(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	if r.logger != nil {
		r.logger.DebugContext(ctx, "job checkpoint applied",
			"job_id", id, "status", updated.Status, "progress", int(updated.Progress))
	}
	return updated, nil
}

const checkpointAttempts = 3

func (r *JobRepo) applyCheckpointTx(ctx context.Context, id string, cp model.Checkpoint) (*model.Job, error) {
	var updated *model.Job
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			current, err := scanJob(tx.QueryRowContext(ctx,
				`SELECT `+jobColumns+` FROM match_jobs WHERE id = $1 FOR UPDATE`, id))
			if errors.Is(err, sql.ErrNoRows) {
				return jobNotFound()
			}
			if err != nil {
				return fmt.Errorf("lock job: %w", err)
			}
			if err := current.CanApply(cp); err != nil {
				return apperrors.Wrapf(err, apperrors.ErrCodeConflict,
					"job %s cannot move from %s/%d to %s/%d", id, current.Status, current.Progress, cp.Status, cp.Progress)
			}

			updated, err = scanJob(tx.QueryRowContext(ctx, `
				UPDATE match_jobs
				SET status = $2, progress = $3, results_ref = $4, updated_at = $5
				WHERE id = $1
				RETURNING `+jobColumns,
				id, cp.Status, cp.Progress, cp.ResultsRef, r.timeProvider.Now().UTC(),
			))
			if err != nil {
				return apperrors.MapDBError(fmt.Errorf("update job: %w", err))
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Counts returns the number of jobs in each status.
func (r *JobRepo) Counts(ctx context.Context) (*model.JobCounts, error) {
	var c model.JobCounts
	err := r.DB.QueryRowContext(ctx, `
		SELECT
		  count(*) FILTER (WHERE status = 'queued')    AS queued,
		  count(*) FILTER (WHERE status = 'running')   AS running,
		  count(*) FILTER (WHERE status = 'completed') AS completed,
		  count(*) FILTER (WHERE status = 'failed')    AS failed
		FROM match_jobs
	`).Scan(&c.Queued, &c.Running, &c.Completed, &c.Failed)
	if err != nil {
		return nil, fmt.Errorf("job counts: %w", err)
	}
	return &c, nil
}

var _ core.JobStore = (*JobRepo)(nil)
