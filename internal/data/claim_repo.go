package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
)

const defaultClaimLease = 5 * time.Minute

// ClaimRepo implements the per-(job, stage) single-flight guard on job_stage_claims.
// A claim is taken when no row exists, the previous holder's lease lapsed, or the same
// holder asks again. Completed stages are never reclaimed.
type ClaimRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewClaimRepo creates a ClaimRepo.
func NewClaimRepo(db *sql.DB, cfg RepoConfig) *ClaimRepo {
	return &ClaimRepo{DB: db, timeProvider: cfg.timeProvider()}
}

// Claim tries to take the stage for claim.Holder.
func (r *ClaimRepo) Claim(ctx context.Context, claim model.StageClaim) (model.ClaimState, error) {
	if strings.TrimSpace(claim.JobID) == "" || strings.TrimSpace(claim.Holder) == "" {
		return "", errors.New("claim requires job id and holder")
	}
	if !claim.Stage.Valid() {
		return "", fmt.Errorf("invalid stage: %s", claim.Stage)
	}
	lease := claim.Lease
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := r.timeProvider.Now().UTC()

	var holder string
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO job_stage_claims (job_id, stage, holder, claimed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, stage) DO UPDATE
		  SET holder = EXCLUDED.holder,
		      claimed_at = EXCLUDED.claimed_at,
		      expires_at = EXCLUDED.expires_at
		  WHERE job_stage_claims.completed_at IS NULL
		    AND (job_stage_claims.expires_at < EXCLUDED.claimed_at
		         OR job_stage_claims.holder = EXCLUDED.holder)
		RETURNING holder
	`, claim.JobID, claim.Stage, claim.Holder, now, now.Add(lease)).Scan(&holder)
	if err == nil {
		return model.ClaimAcquired, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("claim stage: %w", err)
	}

	var completedAt sql.NullTime
	err = r.DB.QueryRowContext(ctx, `
		SELECT completed_at FROM job_stage_claims WHERE job_id = $1 AND stage = $2
	`, claim.JobID, claim.Stage).Scan(&completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Row vanished between statements (job deleted); treat as contended and retry later.
		return model.ClaimBusy, nil
	}
	if err != nil {
		return "", fmt.Errorf("inspect stage claim: %w", err)
	}
	if completedAt.Valid {
		return model.ClaimDone, nil
	}
	return model.ClaimBusy, nil
}

// MarkDone records that the stage finished for the job.
func (r *ClaimRepo) MarkDone(ctx context.Context, jobID string, stage model.TaskType) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE job_stage_claims SET completed_at = $3 WHERE job_id = $1 AND stage = $2
	`, jobID, stage, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark stage done: %w", err)
	}
	return nil
}

// Release drops an unfinished claim held by claim.Holder so a redelivery can run at once.
func (r *ClaimRepo) Release(ctx context.Context, claim model.StageClaim) error {
	_, err := r.DB.ExecContext(ctx, `
		DELETE FROM job_stage_claims
		WHERE job_id = $1 AND stage = $2 AND holder = $3 AND completed_at IS NULL
	`, claim.JobID, claim.Stage, claim.Holder)
	if err != nil {
		return fmt.Errorf("release stage claim: %w", err)
	}
	return nil
}

var _ core.StageClaimRepository = (*ClaimRepo)(nil)
