// Package stages implements the fetch, match and cleanup stage handlers and the
// scheduler that chains them along the pipeline topology.
package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/domain/pipeline"
)

// DefaultMaxRetries is the queue redelivery budget for a stage task.
const DefaultMaxRetries = 3

// Enqueuer puts a task on the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error)
}

// SchedulerOptions groups dependencies for Scheduler.
type SchedulerOptions struct {
	Queue      Enqueuer           // Required
	Topology   *pipeline.Topology // Required
	MaxRetries int                // Optional: defaults to DefaultMaxRetries
	Now        func() time.Time   // Optional: defaults to time.Now
	Logger     *slog.Logger       // Optional
}

// Scheduler interprets a pipeline topology. Stages never name their successor;
// they ask the scheduler to advance.
type Scheduler struct {
	queue      Enqueuer
	topology   *pipeline.Topology
	maxRetries int
	now        func() time.Time
	logger     *slog.Logger
}

// NewScheduler validates options and returns a Scheduler.
func NewScheduler(opts SchedulerOptions) (*Scheduler, error) {
	if opts.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if err := opts.Topology.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		queue:      opts.Queue,
		topology:   opts.Topology,
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
		logger:     logger.With("component", "stage_scheduler"),
	}, nil
}

// Topology returns the topology being interpreted.
func (s *Scheduler) Topology() *pipeline.Topology { return s.topology }

// Start enqueues the first stage for a new job.
func (s *Scheduler) Start(ctx context.Context, payload model.StagePayload) (*model.Task, error) {
	return s.enqueue(ctx, s.topology.First(), payload)
}

// Advance enqueues the stage after from with its declared delay.
// It returns (nil, nil) when from is the last stage.
func (s *Scheduler) Advance(ctx context.Context, from model.TaskType, payload model.StagePayload) (*model.Task, error) {
	next, ok, err := s.topology.Next(from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.enqueue(ctx, next, payload)
}

func (s *Scheduler) enqueue(ctx context.Context, step pipeline.Step, payload model.StagePayload) (*model.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", step.Stage, err)
	}

	req := &model.CreateTaskRequest{
		Type:       step.Stage,
		JobID:      payload.JobID,
		Payload:    raw,
		MaxRetries: s.maxRetries,
	}
	if step.Delay > 0 {
		at := s.now().Add(step.Delay)
		req.ScheduledAt = &at
	}

	task, err := s.queue.Enqueue(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", step.Stage, err)
	}
	s.logger.DebugContext(ctx, "stage enqueued",
		"job_id", payload.JobID,
		"stage", step.Stage,
		"task_id", task.ID,
		"delay", step.Delay,
	)
	return task, nil
}
