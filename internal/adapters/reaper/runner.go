// Package reaper hosts task-queue maintenance as a service mode and as a one-shot admin
// command.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/target/jobmatch/config"
	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/data"
	"github.com/target/jobmatch/internal/observability/statsd"
	"github.com/target/jobmatch/internal/service"
)

// Option customises a Runner.
type Option func(*settings)

type settings struct {
	repo    core.ReaperRepository
	logger  *slog.Logger
	metrics statsd.Sink
}

// WithRepository replaces the task table with repo.
func WithRepository(repo core.ReaperRepository) Option {
	return func(s *settings) { s.repo = repo }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

func WithMetrics(sink statsd.Sink) Option {
	return func(s *settings) { s.metrics = sink }
}

type Runner struct {
	svc    *service.ReaperService
	logger *slog.Logger
}

// New builds a Runner over the tasks table in db, unless WithRepository supplies another
// store, in which case db may be nil.
func New(db *sql.DB, cfg config.ReaperConfig, opts ...Option) (*Runner, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.repo == nil {
		if db == nil {
			return nil, errors.New("reaper: database or repository required")
		}
		s.repo = data.NewTaskRepo(db, data.RepoConfig{})
	}
	logger := s.logger.With("component", "reaper")

	svc, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    s.repo,
		Config:  cfg,
		Logger:  logger,
		Metrics: s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("reaper: %w", err)
	}
	return &Runner{svc: svc, logger: logger}, nil
}

// Run loops until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "reaper started")
	err := r.svc.Run(ctx)
	r.logger.InfoContext(ctx, "reaper stopped")
	return err
}

func (r *Runner) RunOnce(ctx context.Context) (service.CleanupReport, error) {
	return r.svc.RunOnce(ctx)
}

// WriteReport prints a pass summary as an aligned table.
func WriteReport(w io.Writer, report service.CleanupReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		value any
	}{
		{"failed stale pending", report.FailedPending},
		{"deleted completed", report.DeletedCompleted},
		{"deleted failed", report.DeletedFailed},
		{"elapsed", report.Elapsed.Truncate(time.Millisecond)},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s:\t%v\n", row.label, row.value); err != nil {
			return err
		}
	}
	return tw.Flush()
}
