package stages

import (
	"context"
	"errors"
	"log/slog"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
	apperrors "github.com/target/jobmatch/internal/errors"
)

// Cleanup deletes a job's uploaded resume once the retention window has passed.
type Cleanup struct {
	artifacts core.ArtifactStore
	logger    *slog.Logger
}

// NewCleanup returns the cleanup stage handler.
func NewCleanup(artifacts core.ArtifactStore, logger *slog.Logger) (*Cleanup, error) {
	if artifacts == nil {
		return nil, errors.New("artifact store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleanup{artifacts: artifacts, logger: logger.With("component", "cleanup_stage")}, nil
}

// Stage implements Handler.
func (c *Cleanup) Stage() model.TaskType { return model.TaskTypeCleanup }

// Handle deletes the artifact. Failures are logged and the task still completes.
func (c *Cleanup) Handle(ctx context.Context, task *model.Task) error {
	p, err := model.DecodeStagePayload(task.Payload)
	if err != nil {
		c.logger.ErrorContext(ctx, "cleanup payload unreadable", "task_id", task.ID, "error", err)
		return nil
	}
	log := c.logger.With("job_id", p.JobID, "task_id", task.ID, "stage", model.TaskTypeCleanup)
	if p.ArtifactPath == "" {
		log.InfoContext(ctx, "no artifact to delete")
		return nil
	}

	if err := c.artifacts.Delete(ctx, p.ArtifactPath); err != nil {
		cerr := &apperrors.CleanupError{Path: p.ArtifactPath, Cause: err}
		log.ErrorContext(ctx, "artifact cleanup failed", "error", cerr)
		return nil
	}
	log.InfoContext(ctx, "artifact deleted", "path", p.ArtifactPath)
	return nil
}
