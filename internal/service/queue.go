package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/domain/queue"
	"github.com/target/jobmatch/internal/observability/notify"
	"github.com/target/jobmatch/internal/service/failurenotifier"
)

// TaskQueueOptions groups dependencies for TaskQueue.
type TaskQueueOptions struct {
	Repo            core.TaskRepository         // Required: task repository
	DefaultLease    time.Duration               // Required unless LeasePolicy is set
	Logger          *slog.Logger                // Optional: structured logger
	FailureNotifier *failurenotifier.Dispatcher // Optional: dead-letter alert fan-out
	LeasePolicy     *queue.LeasePolicy          // Optional: override default lease policy
	Notifier        queue.Notifier              // Optional: custom task availability notifier
	NotifierOptions queue.NotifierOptions       // Optional: configure default notifier behaviour
	Now             func() time.Time            // Optional: defaults to time.Now
}

// TaskQueue is the service-side face of the durable task queue.
//
// It owns:
// - enqueueing stage tasks (validated before they reach storage)
// - reservation and lease management for stage workers
// - the per-stage wake-up notifier shared by idle workers
// - failure alerts once a task runs out of deliveries.
type TaskQueue struct {
	repo            core.TaskRepository
	leasePolicy     *queue.LeasePolicy
	notifier        queue.Notifier
	logger          *slog.Logger
	failureNotifier *failurenotifier.Dispatcher
	now             func() time.Time
}

// NewTaskQueue constructs a new TaskQueue.
func NewTaskQueue(opts TaskQueueOptions) (*TaskQueue, error) {
	if opts.Repo == nil {
		return nil, errors.New("TaskRepository is required")
	}

	var leasePolicy *queue.LeasePolicy
	switch {
	case opts.LeasePolicy != nil:
		leasePolicy = opts.LeasePolicy
	case opts.DefaultLease > 0:
		var err error
		leasePolicy, err = queue.NewLeasePolicy(opts.DefaultLease)
		if err != nil {
			return nil, fmt.Errorf("create lease policy: %w", err)
		}
	default:
		return nil, errors.New("DefaultLease must be positive")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = queue.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create task notifier: %w", err)
		}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "task_queue")
		logger.Debug("TaskQueue initialized", "default_lease", leasePolicy.Default())
	}

	return &TaskQueue{
		repo:            opts.Repo,
		leasePolicy:     leasePolicy,
		notifier:        notifier,
		logger:          logger,
		failureNotifier: opts.FailureNotifier,
		now:             now,
	}, nil
}

// MustNewTaskQueue constructs a new TaskQueue and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewTaskQueue(opts TaskQueueOptions) *TaskQueue {
	q, err := NewTaskQueue(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create TaskQueue: %v", err))
	}
	return q
}

// Enqueue validates and stores a new task.
func (q *TaskQueue) Enqueue(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	if req == nil {
		return nil, errors.New("create task request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	task, err := q.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	if q.logger != nil {
		q.logger.DebugContext(ctx, "task enqueued",
			"id", task.ID,
			"type", task.Type,
			"job_id", task.JobID,
			"scheduled_at", task.ScheduledAt,
		)
	}
	return task, nil
}

// ReserveNext leases the next due task of the given stage.
func (q *TaskQueue) ReserveNext(
	ctx context.Context,
	taskType model.TaskType,
	lease time.Duration,
) (*model.Task, error) {
	decision := q.leasePolicy.Resolve(lease)
	if decision.Clamped() && q.logger != nil {
		q.logger.DebugContext(ctx, "clamped lease duration",
			"requested_duration", decision.Requested,
			"task_type", taskType)
	}

	task, err := q.repo.ReserveNext(ctx, taskType, decision.Seconds)
	if err != nil {
		return nil, fmt.Errorf("reserve next task: %w", err)
	}

	if q.logger != nil && task != nil {
		q.logger.DebugContext(ctx, "task reserved",
			"id", task.ID,
			"type", taskType,
			"job_id", task.JobID,
			"lease_seconds", decision.Seconds,
		)
	}
	return task, nil
}

// Subscribe returns an unsubscribe function and a channel that signals possible work.
func (q *TaskQueue) Subscribe(taskType model.TaskType) (func(), <-chan struct{}) {
	if q.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return q.notifier.Subscribe(taskType)
}

// WaitForNotification blocks until the repository signals a new task of taskType.
func (q *TaskQueue) WaitForNotification(ctx context.Context, taskType model.TaskType) error {
	return q.repo.WaitForNotification(ctx, taskType)
}

// Heartbeat extends the lease on a running task.
func (q *TaskQueue) Heartbeat(ctx context.Context, id string, extend time.Duration) (bool, error) {
	decision := q.leasePolicy.Resolve(extend)
	updated, err := q.repo.Heartbeat(ctx, id, decision.Seconds)
	if err != nil {
		return false, fmt.Errorf("heartbeat task %s: %w", id, err)
	}
	if q.logger != nil && updated {
		q.logger.DebugContext(ctx, "task heartbeat updated", "id", id, "extend_seconds", decision.Seconds)
	}
	return updated, nil
}

// Complete acknowledges a delivered task.
func (q *TaskQueue) Complete(ctx context.Context, id string) (bool, error) {
	completed, err := q.repo.Complete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("complete task %s: %w", id, err)
	}
	if q.logger != nil && completed {
		q.logger.DebugContext(ctx, "task completed", "id", id)
	}
	return completed, nil
}

// TaskFailureDetails carries optional context for failure alerts.
type TaskFailureDetails struct {
	ErrorClass string
	Metadata   map[string]string
}

// Fail records a failed delivery.
func (q *TaskQueue) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	return q.FailWithDetails(ctx, id, errMsg, TaskFailureDetails{})
}

// FailWithDetails records a failed delivery and raises an alert when it was the task's last one.
func (q *TaskQueue) FailWithDetails(
	ctx context.Context,
	id, errMsg string,
	details TaskFailureDetails,
) (bool, error) {
	if strings.TrimSpace(errMsg) == "" {
		return false, errors.New("error message required")
	}

	var task *model.Task
	if q.failureNotifier.Active() {
		var err error
		task, err = q.repo.GetByID(ctx, id)
		if err != nil && q.logger != nil {
			q.logger.WarnContext(ctx, "failed to load task for failure notification", "task_id", id, "error", err)
		}
	}

	failed, err := q.repo.Fail(ctx, id, errMsg)
	if err != nil {
		return false, fmt.Errorf("fail task %s: %w", id, err)
	}

	if q.logger != nil && failed {
		q.logger.DebugContext(ctx, "task delivery failed", "id", id, "error", errMsg)
	}

	if failed && task != nil && exhausted(task) {
		// Alert delivery problems are logged by the dispatcher and never fail the task update.
		_ = q.failureNotifier.Dispatch(ctx, q.failureAlert(task, errMsg, details))
	}
	return failed, nil
}

// exhausted reports whether the failure being recorded is the task's last delivery.
func exhausted(task *model.Task) bool {
	return task.MaxRetries == 0 || task.RetryCount+1 >= task.MaxRetries
}

func (q *TaskQueue) failureAlert(task *model.Task, errMsg string, details TaskFailureDetails) notify.Alert {
	alert := notify.Alert{
		TaskID:      task.ID,
		JobID:       task.JobID,
		Stage:       string(task.Type),
		Attempt:     task.RetryCount + 1,
		MaxAttempts: task.MaxRetries,
		Reason:      errMsg,
		Class:       details.ErrorClass,
		At:          q.now().UTC(),
	}
	for k, v := range details.Metadata {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		if alert.Labels == nil {
			alert.Labels = make(map[string]string, len(details.Metadata))
		}
		alert.Labels[k] = v
	}
	return alert
}

// Stats returns per-status counts for one stage.
func (q *TaskQueue) Stats(ctx context.Context, taskType model.TaskType) (*model.TaskStats, error) {
	stats, err := q.repo.Stats(ctx, taskType)
	if err != nil {
		return nil, fmt.Errorf("task stats %s: %w", taskType, err)
	}
	return stats, nil
}

// GetByID returns a single task.
func (q *TaskQueue) GetByID(ctx context.Context, id string) (*model.Task, error) {
	return q.repo.GetByID(ctx, id)
}

// ListByJob returns every task recorded for a job, oldest first.
func (q *TaskQueue) ListByJob(ctx context.Context, jobID string) ([]*model.Task, error) {
	return q.repo.ListByJob(ctx, jobID)
}

// StopAllListeners releases every notifier listener. Call during shutdown.
func (q *TaskQueue) StopAllListeners() {
	if q.notifier != nil {
		q.notifier.StopAll()
	}
}
