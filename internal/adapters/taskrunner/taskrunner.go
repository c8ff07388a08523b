// Package taskrunner pulls stage tasks off the durable queue and runs them under the stage claim guard.
package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
	obserrors "github.com/target/jobmatch/internal/observability/errors"
	"github.com/target/jobmatch/internal/observability/metrics"
	"github.com/target/jobmatch/internal/observability/statsd"
	"github.com/target/jobmatch/internal/service"
	"github.com/target/jobmatch/internal/service/stages"
)

// ErrStageBusy is recorded on a delivery whose job stage is held by another live worker.
var ErrStageBusy = errors.New("stage is running elsewhere")

// Queue is the part of service.TaskQueue the runner drives.
type Queue interface {
	Subscribe(taskType model.TaskType) (func(), <-chan struct{})
	ReserveNext(ctx context.Context, taskType model.TaskType, lease time.Duration) (*model.Task, error)
	Heartbeat(ctx context.Context, id string, extend time.Duration) (bool, error)
	Complete(ctx context.Context, id string) (bool, error)
	FailWithDetails(ctx context.Context, id, errMsg string, details service.TaskFailureDetails) (bool, error)
}

var _ Queue = (*service.TaskQueue)(nil)

// RunnerOptions configures a stage runner.
type RunnerOptions struct {
	Queue   Queue                     // Required
	Handler stages.Handler            // Required: decides which task type is processed
	Claims  core.StageClaimRepository // Required
	Logger  *slog.Logger
	Metrics statsd.Sink

	Lease       time.Duration // per-task lease; defaults to 90s
	Concurrency int           // worker goroutines; defaults to 1
	// Heartbeat is how often a running task's lease is extended; defaults to Lease/3.
	Heartbeat time.Duration
}

// Runner executes one stage with a pool of workers.
type Runner struct {
	queue     Queue
	handler   stages.Handler
	claims    core.StageClaimRepository
	logger    *slog.Logger
	metrics   statsd.Sink
	stage     model.TaskType
	lease     time.Duration
	heartbeat time.Duration
	workers   int
}

// NewRunner validates options and builds a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	switch {
	case opts.Queue == nil:
		return nil, errors.New("task queue is required")
	case opts.Handler == nil:
		return nil, errors.New("stage handler is required")
	case opts.Claims == nil:
		return nil, errors.New("stage claim repository is required")
	}
	stage := opts.Handler.Stage()
	if !stage.Valid() {
		return nil, fmt.Errorf("handler reports invalid stage %q", stage)
	}

	lease := opts.Lease
	if lease <= 0 {
		lease = 90 * time.Second
	}
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 || heartbeat >= lease {
		heartbeat = lease / 3
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		queue:     opts.Queue,
		handler:   opts.Handler,
		claims:    opts.Claims,
		logger:    logger.With("component", componentLabel(stage)),
		metrics:   opts.Metrics,
		stage:     stage,
		lease:     lease,
		heartbeat: heartbeat,
		workers:   workers,
	}, nil
}

// Stage is the task type this runner processes.
func (r *Runner) Stage() model.TaskType { return r.stage }

// Run starts the workers and processes tasks until ctx is cancelled or a worker hits a queue error.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting stage runner", "stage", r.stage, "workers", r.workers, "lease", r.lease)

	unsub, ch := r.queue.Subscribe(r.stage)
	defer unsub()

	g, gctx := errgroup.WithContext(ctx)
	for range r.workers {
		g.Go(func() error { return r.workerLoop(gctx, ch) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		task, err := r.queue.ReserveNext(ctx, r.stage, r.lease)
		switch {
		case err == nil:
			if task != nil {
				r.processTask(ctx, task)
			}
		case errors.Is(err, model.ErrNoTasksAvailable):
			if !waitForNotify(ctx, notify) {
				return nil
			}
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("reserve next %s task: %w", r.stage, err)
		}
	}
	return nil
}

func waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case _, ok := <-notify:
		return ok
	}
}

func (r *Runner) processTask(ctx context.Context, task *model.Task) {
	start := time.Now()
	log := r.logger.With("task_id", task.ID, "job_id", task.JobID, "stage", r.stage)
	emit := func(transition, result string, err error) {
		metrics.EmitTaskLifecycle(r.metrics, metrics.TaskMetric{
			Stage:      string(r.stage),
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}

	claim := model.StageClaim{JobID: task.JobID, Stage: r.stage, Holder: task.ID, Lease: r.lease}
	state, err := r.claims.Claim(ctx, claim)
	if err != nil {
		err = fmt.Errorf("claim stage: %w", err)
		r.fail(ctx, log, task, err)
		emit("failed", metrics.ResultError, err)
		return
	}

	switch state {
	case model.ClaimDone:
		log.InfoContext(ctx, "stage already completed for job, acknowledging duplicate delivery")
		r.complete(ctx, log, task)
		emit("completed", metrics.ResultNoop, nil)
		return
	case model.ClaimBusy:
		log.InfoContext(ctx, "stage held by another worker, deferring delivery")
		r.fail(ctx, log, task, ErrStageBusy)
		emit("failed", metrics.ResultBusy, nil)
		return
	}

	if err := r.runHandler(ctx, task); err != nil {
		if rerr := r.claims.Release(ctx, claim); rerr != nil {
			log.WarnContext(ctx, "release stage claim", "error", rerr)
		}
		log.ErrorContext(ctx, "stage delivery failed", "error", err, "attempt", task.RetryCount+1)
		r.fail(ctx, log, task, err)
		emit("failed", metrics.ResultError, err)
		return
	}

	if err := r.claims.MarkDone(ctx, task.JobID, r.stage); err != nil {
		log.WarnContext(ctx, "mark stage claim done", "error", err)
	}
	if r.complete(ctx, log, task) {
		emit("completed", metrics.ResultSuccess, nil)
	} else {
		emit("completed", metrics.ResultNoop, nil)
	}
}

// runHandler runs the stage handler under a heartbeat, converting panics into errors.
// Losing the lease cancels the handler.
func (r *Runner) runHandler(ctx context.Context, task *model.Task) (err error) {
	hctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := r.startHeartbeat(hctx, task.ID, cancel)
	defer stop()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "stage handler panicked",
				"task_id", task.ID, "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	err = r.handler.Handle(hctx, task)
	if err == nil && hctx.Err() != nil && ctx.Err() == nil {
		err = context.Cause(hctx)
	}
	return err
}

var errLeaseLost = errors.New("task lease lost")

func (r *Runner) startHeartbeat(ctx context.Context, id string, cancel context.CancelCauseFunc) func() {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := r.queue.Heartbeat(ctx, id, r.lease)
				if err != nil {
					r.logger.WarnContext(ctx, "heartbeat failed", "task_id", id, "error", err)
					continue
				}
				if !ok {
					r.logger.WarnContext(ctx, "task lease lost, cancelling handler", "task_id", id)
					cancel(errLeaseLost)
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

func (r *Runner) complete(ctx context.Context, log *slog.Logger, task *model.Task) bool {
	ok, err := r.queue.Complete(ctx, task.ID)
	if err != nil {
		log.ErrorContext(ctx, "complete task error", "error", err)
		return false
	}
	return ok
}

func (r *Runner) fail(ctx context.Context, log *slog.Logger, task *model.Task, cause error) {
	details := service.TaskFailureDetails{
		ErrorClass: obserrors.Classify(cause),
		Metadata: map[string]string{
			"component": componentLabel(r.stage),
			"attempt":   strconv.Itoa(task.RetryCount + 1),
		},
	}
	if _, err := r.queue.FailWithDetails(ctx, task.ID, cause.Error(), details); err != nil {
		log.ErrorContext(ctx, "fail task error", "error", err, "original_error", cause)
	}
}

func componentLabel(stage model.TaskType) string {
	switch stage {
	case model.TaskTypeFetch:
		return "fetch_runner"
	case model.TaskTypeMatch:
		return "match_runner"
	case model.TaskTypeCleanup:
		return "cleanup_runner"
	default:
		return "task_runner"
	}
}
