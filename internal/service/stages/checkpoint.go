package stages

import (
	"context"
	"fmt"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/observability/metrics"
	"github.com/target/jobmatch/internal/observability/statsd"
)

// checkpointWriter applies checkpoints forward-only so a replayed stage can re-run
// without tripping the store's regression guard.
type checkpointWriter struct {
	jobs    core.JobStore
	metrics statsd.Sink
}

// advance writes cp unless the job already reached it. It returns the job as stored.
func (w checkpointWriter) advance(ctx context.Context, job *model.Job, cp model.Checkpoint) (*model.Job, error) {
	if job.Status == cp.Status && job.Progress >= cp.Progress {
		return job, nil
	}
	updated, err := w.jobs.ApplyCheckpoint(ctx, job.ID, cp)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s/%d: %w", cp.Status, cp.Progress, err)
	}
	w.emit(cp)
	return updated, nil
}

func (w checkpointWriter) emit(cp model.Checkpoint) {
	metrics.EmitCheckpoint(w.metrics, string(cp.Status), int(cp.Progress))
}
