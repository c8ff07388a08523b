package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/jobmatch/config"
	"github.com/target/jobmatch/internal/service/stages"
)

// ServiceOrchestrationConfig is everything RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// drainTimeout bounds the wait for each background worker after cancellation.
const drainTimeout = 15 * time.Second

// worker is a background loop selected by a service mode.
type worker struct {
	mode config.ServiceMode
	name string
	run  func(context.Context) error
}

type runningWorker struct {
	name string
	done chan struct{}
}

// stageRunnerService binds a runner mode to its stage handler and runner settings.
type stageRunnerService struct {
	mode    config.ServiceMode
	name    string
	handler func(ServiceContainer) stages.Handler
	runner  func(*config.AppConfig) config.RunnerConfig
}

var stageRunnerServices = []stageRunnerService{
	{
		mode:    config.ServiceModeFetchRunner,
		name:    "fetch runner",
		handler: func(s ServiceContainer) stages.Handler { return s.Stages.Fetch },
		runner:  func(c *config.AppConfig) config.RunnerConfig { return c.FetchRunner },
	},
	{
		mode:    config.ServiceModeMatchRunner,
		name:    "match runner",
		handler: func(s ServiceContainer) stages.Handler { return s.Stages.Match },
		runner:  func(c *config.AppConfig) config.RunnerConfig { return c.MatchRunner },
	},
	{
		mode:    config.ServiceModeCleanupRunner,
		name:    "cleanup runner",
		handler: func(s ServiceContainer) stages.Handler { return s.Stages.Cleanup },
		runner:  func(c *config.AppConfig) config.RunnerConfig { return c.CleanupRunner },
	},
}

// workers lists every background loop the binary knows about, enabled or not.
func workers(cfg *ServiceOrchestrationConfig) []worker {
	out := make([]worker, 0, len(stageRunnerServices)+1)
	for _, stage := range stageRunnerServices {
		out = append(out, worker{
			mode: stage.mode,
			name: stage.name,
			run: func(ctx context.Context) error {
				rc := stage.runner(cfg.Config)
				svc := cfg.Services
				return RunStageRunner(ctx, StageRunnerConfig{
					Queue:       svc.Queue,
					Handler:     stage.handler(svc),
					Claims:      svc.Claims,
					Logger:      cfg.Logger,
					Lease:       rc.JobLease,
					Concurrency: rc.Concurrency,
					Metrics:     svc.Observability.Sink(),
				})
			},
		})
	}
	return append(out, worker{
		mode: config.ServiceModeReaper,
		name: "reaper",
		run: func(ctx context.Context) error {
			return RunReaper(ctx, ReaperConfig{
				DB:      cfg.DB,
				Logger:  cfg.Logger,
				Config:  cfg.Config.Reaper,
				Metrics: cfg.Services.Observability.Sink(),
			})
		},
	})
}

// supervisor owns the HTTP server and background workers of one process.
type supervisor struct {
	cfg     *ServiceOrchestrationConfig
	logger  *slog.Logger
	enabled map[config.ServiceMode]bool
	errs    chan error

	server  *http.Server
	running []runningWorker
}

func newSupervisor(cfg *ServiceOrchestrationConfig) (*supervisor, error) {
	if cfg == nil {
		return nil, errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return nil, errors.New("service orchestration config missing AppConfig")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return nil, fmt.Errorf("determine enabled services: %w", err)
	}
	return &supervisor{
		cfg:     cfg,
		logger:  cfg.Logger,
		enabled: enabled,
		errs:    make(chan error, errorBuffer(enabled)),
	}, nil
}

// errorBuffer leaves one slot per enabled service plus one, so a failing service never
// blocks on report.
func errorBuffer(enabled map[config.ServiceMode]bool) int {
	n := 1
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			n++
		}
	}
	return n
}

// start binds the HTTP listener first; a bind failure starts nothing else.
func (s *supervisor) start(ctx context.Context) error {
	if s.enabled[config.ServiceModeHTTP] {
		server, err := StartHTTPServer(&HTTPServerConfig{
			Config:   s.cfg.Config,
			Services: s.cfg.Services,
			Logger:   s.logger,
			Errors:   s.errs,
		})
		if err != nil {
			return err
		}
		s.server = server
	}
	for _, w := range workers(s.cfg) {
		if s.enabled[w.mode] {
			s.spawn(ctx, w)
		}
	}
	return nil
}

func (s *supervisor) spawn(ctx context.Context, w worker) {
	done := make(chan struct{})
	s.running = append(s.running, runningWorker{name: w.name, done: done})

	go func() {
		defer close(done)
		err := w.run(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}
		err = fmt.Errorf("%s failed: %w", w.name, err)
		select {
		case s.errs <- err:
		case <-ctx.Done():
		default:
			s.logger.WarnContext(ctx, "dropping background service error", "service", w.name, "error", err)
		}
	}()
	s.logger.InfoContext(ctx, "background service started", "service", w.name, "mode", w.mode)
}

// wait blocks until ctx ends (signal) or a service reports an error, then stops everything.
// A service error is returned even when the stop succeeds.
func (s *supervisor) wait(ctx context.Context, cancel context.CancelFunc) error {
	var cause error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down services")
	case cause = <-s.errs:
		s.logger.Error("service error", "error", cause)
	}
	cancel()

	if err := s.stop(ctx); err != nil {
		if cause == nil {
			return err
		}
		s.logger.Error("graceful stop failed", "error", err)
	}
	return cause
}

func (s *supervisor) stop(ctx context.Context) error {
	if s.server != nil {
		httpCfg := s.cfg.Config.HTTP
		httpCfg.Sanitize()
		// ctx is already cancelled; only its values carry over.
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpCfg.ShutdownTimeout)
		defer cancel()
		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: drainCtx,
			Server:  s.server,
			Queue:   s.cfg.Services.Queue,
			Logger:  s.logger,
		}); err != nil {
			return err
		}
	}
	for _, w := range s.running {
		s.drain(w)
	}
	return nil
}

func (s *supervisor) drain(w runningWorker) {
	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case <-w.done:
		s.logger.Info("background service stopped", "service", w.name)
	case <-timer.C:
		s.logger.Warn("background service did not stop in time", "service", w.name, "timeout", drainTimeout)
	}
}

// RunServicesWithShutdown starts the enabled services and blocks until SIGINT/SIGTERM or the
// first service failure, then shuts everything down.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	sup, err := newSupervisor(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sup.start(ctx); err != nil {
		return err
	}
	return sup.wait(ctx, cancel)
}
