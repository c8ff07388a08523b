package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/jobmatch/config"
	"github.com/target/jobmatch/internal/adapters/postings"
	"github.com/target/jobmatch/internal/adapters/reaper"
	"github.com/target/jobmatch/internal/adapters/scoring"
	"github.com/target/jobmatch/internal/adapters/taskrunner"
	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/observability/statsd"
	"github.com/target/jobmatch/internal/service/stages"
)

// StageRunnerConfig contains configuration for one stage's worker pool.
type StageRunnerConfig struct {
	Queue       taskrunner.Queue
	Handler     stages.Handler
	Claims      core.StageClaimRepository
	Logger      *slog.Logger
	Lease       time.Duration
	Concurrency int
	Metrics     statsd.Sink
}

// RunStageRunner starts workers for the stage the handler serves and blocks until ctx is done.
func RunStageRunner(ctx context.Context, cfg StageRunnerConfig) error {
	if cfg.Handler == nil {
		return errors.New("stage runner: handler is not configured")
	}
	label := string(cfg.Handler.Stage())

	runner, err := taskrunner.NewRunner(taskrunner.RunnerOptions{
		Queue:       cfg.Queue,
		Handler:     cfg.Handler,
		Claims:      cfg.Claims,
		Logger:      cfg.Logger,
		Metrics:     cfg.Metrics,
		Lease:       cfg.Lease,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		return fmt.Errorf("create %s runner: %w", label, err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run %s runner: %w", label, runErr)
	}
	return nil
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.New(cfg.DB, cfg.Config, reaper.WithLogger(cfg.Logger), reaper.WithMetrics(cfg.Metrics))
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}

// buildPostingSource picks the configured posting connector.
//
//nolint:ireturn // callers only need the port.
func buildPostingSource(cfg *config.AppConfig, logger *slog.Logger) (core.PostingSource, error) {
	if cfg.Postings.Mode != config.PostingsModeHTTP {
		logger.Info("using stub posting source")
		return &postings.Stub{Logger: logger}, nil
	}
	src, err := postings.NewHTTPSource(postings.HTTPSourceOptions{
		BaseURL:       cfg.Postings.BaseURL,
		UserAgent:     cfg.Postings.UserAgent,
		RatePerMinute: cfg.Postings.RatePerMinute,
		Timeout:       cfg.Pipeline.FetchTimeout,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create posting source: %w", err)
	}
	logger.Info("using http posting source", "base_url", cfg.Postings.BaseURL)
	return src, nil
}

func buildScorer(cfg config.ScoringConfig, timeout time.Duration, logger *slog.Logger) (*scoring.Client, error) {
	client, err := scoring.New(scoring.Options{
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		ContentPath: cfg.ContentPath,
		Timeout:     timeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create scoring client: %w", err)
	}
	return client, nil
}
