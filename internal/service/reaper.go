package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/target/jobmatch/config"
	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
	obserrors "github.com/target/jobmatch/internal/observability/errors"
	"github.com/target/jobmatch/internal/observability/metrics"
	"github.com/target/jobmatch/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink // optional
}

// ReaperService keeps the tasks table bounded. A pass fails pending tasks nobody picked up
// within PendingMaxAge (failing the job too when that task was its fetch) and deletes terminal
// tasks past their retention.
type ReaperService struct {
	repo    core.ReaperRepository
	cfg     config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}
	if opts.Config.BatchSize <= 0 {
		return nil, errors.New("reaper batch size must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReaperService{
		repo:    opts.Repo,
		cfg:     opts.Config,
		logger:  logger.With("component", "reaper_service"),
		metrics: opts.Metrics,
	}, nil
}

// Run sweeps once immediately (after a small random delay) and then every Interval until
// ctx ends. Cancellation is a clean stop; a deadline is returned.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return errors.New("reaper interval must be positive")
	}
	s.logger.InfoContext(ctx, "starting reaper service",
		"interval", s.cfg.Interval,
		"pending_max_age", s.cfg.PendingMaxAge,
		"completed_max_age", s.cfg.CompletedMaxAge,
		"failed_max_age", s.cfg.FailedMaxAge,
	)

	if !sleepCtx(ctx, startupJitter(s.cfg.Interval)) {
		return stopReason(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logPassError(ctx, err)
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			return stopReason(ctx)
		case <-ticker.C:
		}
	}
}

// startupJitter spreads replicas that start together over a tenth of the interval.
func startupJitter(interval time.Duration) time.Duration {
	if window := interval / 10; window > 0 {
		return rand.N(window) //nolint:gosec // scheduling jitter, not security sensitive
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func stopReason(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// CleanupReport summarises one reaper pass.
type CleanupReport struct {
	FailedPending    int64         `json:"failed_pending"`
	DeletedCompleted int64         `json:"deleted_completed"`
	DeletedFailed    int64         `json:"deleted_failed"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Total is the number of rows touched.
func (r CleanupReport) Total() int64 {
	return r.FailedPending + r.DeletedCompleted + r.DeletedFailed
}

// sweep is one batched maintenance operation of a pass.
type sweep struct {
	op    string
	label string
	batch func(context.Context) (int64, error)
	into  *int64
}

type sweepResult struct {
	op    string
	count int64
	err   error
}

func (s *ReaperService) sweeps(report *CleanupReport) []sweep {
	pending := func(ctx context.Context) (int64, error) {
		return s.repo.FailStalePendingTasks(ctx, s.cfg.PendingMaxAge, s.cfg.BatchSize)
	}
	olderThan := func(status model.TaskStatus, age time.Duration) func(context.Context) (int64, error) {
		params := core.DeleteOldTasksParams{Status: status, MaxAge: age, BatchSize: s.cfg.BatchSize}
		return func(ctx context.Context) (int64, error) { return s.repo.DeleteOldTasks(ctx, params) }
	}
	return []sweep{
		{op: "fail_pending", label: "fail stale pending tasks", batch: pending, into: &report.FailedPending},
		{
			op:    "delete_completed",
			label: "delete old completed tasks",
			batch: olderThan(model.TaskStatusCompleted, s.cfg.CompletedMaxAge),
			into:  &report.DeletedCompleted,
		},
		{
			op:    "delete_failed",
			label: "delete old failed tasks",
			batch: olderThan(model.TaskStatusFailed, s.cfg.FailedMaxAge),
			into:  &report.DeletedFailed,
		},
	}
}

// RunOnce performs a single pass. A failing sweep does not stop the later ones. When every
// failure is a context error the result collapses to context.Canceled.
func (s *ReaperService) RunOnce(ctx context.Context) (CleanupReport, error) {
	start := time.Now()
	var report CleanupReport

	plan := s.sweeps(&report)
	results := make([]sweepResult, 0, len(plan))
	var errs []error
	onlyCancelled := true
	for _, sw := range plan {
		n, err := untilEmpty(ctx, sw.batch)
		*sw.into = n
		results = append(results, sweepResult{op: sw.op, count: n, err: err})
		if n > 0 {
			s.logger.InfoContext(ctx, sw.label, "count", n)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sw.label, err))
			onlyCancelled = onlyCancelled && isContextCancellation(err)
		}
	}
	report.Elapsed = time.Since(start)
	s.record(report, results)

	switch {
	case len(errs) == 0:
		return report, nil
	case onlyCancelled:
		return report, context.Canceled
	default:
		return report, fmt.Errorf("cleanup failed: %w", errors.Join(errs...))
	}
}

// untilEmpty repeats batch until it affects no rows, returning the running total.
func untilEmpty(ctx context.Context, batch func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		n, err := batch(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func outcome(count int64, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

// record emits reaper.cleanup for the pass and reaper.cleanup_operation per sweep.
// Context errors count as neither success nor failure.
func (s *ReaperService) record(report CleanupReport, results []sweepResult) {
	if s.metrics == nil {
		return
	}

	var passErr error
	for _, r := range results {
		if err := suppressContextCancellation(r.err); err != nil {
			passErr = err
			break
		}
	}
	tags := map[string]string{"result": outcome(report.Total(), passErr)}
	if passErr != nil {
		tags["error_class"] = obserrors.Classify(passErr)
	}
	s.metrics.Count("reaper.cleanup", 1, tags)
	if report.Elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", report.Elapsed, metrics.CloneTags(tags))
	}

	for _, r := range results {
		err := suppressContextCancellation(r.err)
		opTags := map[string]string{"operation": r.op, "result": outcome(r.count, err)}
		if err != nil {
			opTags["error_class"] = obserrors.Classify(err)
		}
		s.metrics.Count("reaper.cleanup_operation", 1, opTags)
		if err == nil && r.count > 0 {
			s.metrics.Count("reaper.tasks_processed", r.count, metrics.CloneTags(opTags))
		}
	}

	if passErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *ReaperService) logPassError(ctx context.Context, err error) {
	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, "cleanup pass interrupted", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, "cleanup pass failed", "error", err)
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
