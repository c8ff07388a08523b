package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/jobmatch/config"
	"github.com/target/jobmatch/internal/adapters/artifactfs"
	redisadapter "github.com/target/jobmatch/internal/adapters/redis"
	"github.com/target/jobmatch/internal/data"
	"github.com/target/jobmatch/internal/data/cryptoutil"
	"github.com/target/jobmatch/internal/domain/pipeline"
	"github.com/target/jobmatch/internal/domain/queue"
	"github.com/target/jobmatch/internal/domain/retry"
	httpx "github.com/target/jobmatch/internal/http"
	"github.com/target/jobmatch/internal/observability/notify"
	"github.com/target/jobmatch/internal/observability/notify/pagerduty"
	"github.com/target/jobmatch/internal/observability/notify/slack"
	"github.com/target/jobmatch/internal/observability/statsd"
	"github.com/target/jobmatch/internal/ports"
	"github.com/target/jobmatch/internal/service"
	"github.com/target/jobmatch/internal/service/failurenotifier"
	"github.com/target/jobmatch/internal/service/stages"
)

const (
	// defaultTaskLease applies to queue operations that do not name a lease.
	defaultTaskLease = 90 * time.Second
	// notifierWaitWindow bounds how long an idle stage worker sleeps before polling again.
	// Delayed tasks never produce a wake-up, so this is also their pickup latency.
	notifierWaitWindow = 5 * time.Second
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Intake   *service.IntakeService
	Progress *service.ProgressReporter
	Keys     *service.KeyService
	Auth     *service.AuthService

	Queue     *service.TaskQueue
	Scheduler *stages.Scheduler
	Stages    StageHandlers
	Claims    *data.ClaimRepo

	// UploadLimiter throttles POST /upload per client.
	UploadLimiter ports.RateLimiter
	HealthChecks  map[string]httpx.HealthCheck

	Observability ObservabilityContainer
}

// StageHandlers groups the per-stage task handlers run by the stage runners.
type StageHandlers struct {
	Fetch   *stages.Fetch
	Match   *stages.Match
	Cleanup *stages.Cleanup
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	FailureNotifier *failurenotifier.Dispatcher
}

// Sink returns the metrics sink, or nil when metrics are disabled.
//
//nolint:ireturn // runners accept the Sink port.
func (o ObservabilityContainer) Sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB        *sql.DB
	Redis     redis.UniversalClient
	Tasks     *data.TaskRepo
	Claims    *data.ClaimRepo
	Jobs      *data.JobRepo
	Users     *data.UserRepo
	Artifacts *artifactfs.Store
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig, baseURL string) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.Active() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled:    true,
			Address:    cfg.Metrics.StatsdAddress,
			Prefix:     cfg.Metrics.Prefix,
			GlobalTags: cfg.Metrics.Tags,
			Logger:     obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	failureNotifier := buildFailureNotifier(obsLogger, cfg.Alerts, baseURL)

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		FailureNotifier: failureNotifier,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redis redis.UniversalClient, cfg *config.AppConfig) (*serviceRepositories, error) {
	artifacts, err := artifactfs.New(artifactfs.Options{
		UploadDir:  cfg.Upload.Dir,
		ResultsDir: cfg.Results.Dir,
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact store: %w", err)
	}
	return &serviceRepositories{
		DB:        db,
		Redis:     redis,
		Tasks:     data.NewTaskRepo(db, data.RepoConfig{}),
		Claims:    data.NewClaimRepo(db, data.RepoConfig{}),
		Jobs:      data.NewJobRepo(db, data.RepoConfig{}),
		Users:     data.NewUserRepo(db, data.RepoConfig{}),
		Artifacts: artifacts,
	}, nil
}

func newTaskQueue(repos *serviceRepositories, observability ObservabilityContainer, logger *slog.Logger) *service.TaskQueue {
	return service.MustNewTaskQueue(service.TaskQueueOptions{
		Repo:            repos.Tasks,
		DefaultLease:    defaultTaskLease,
		Logger:          logger,
		FailureNotifier: observability.FailureNotifier,
		NotifierOptions: queue.NotifierOptions{WaitWindow: notifierWaitWindow},
	})
}

func newScheduler(q *service.TaskQueue, cfg config.PipelineConfig, logger *slog.Logger) (*stages.Scheduler, error) {
	return stages.NewScheduler(stages.SchedulerOptions{
		Queue:      q,
		Topology:   pipeline.DefaultTopology(cfg.MatchDelay, cfg.CleanupDelay),
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
}

type stageDeps struct {
	Repos         *serviceRepositories
	Scheduler     *stages.Scheduler
	Encryptor     cryptoutil.Encryptor
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

func newStageHandlers(deps stageDeps) (StageHandlers, error) {
	cfg := deps.Config
	source, err := buildPostingSource(cfg, deps.Logger)
	if err != nil {
		return StageHandlers{}, err
	}
	fetch, err := stages.NewFetch(stages.FetchOptions{
		Jobs:      deps.Repos.Jobs,
		Source:    source,
		Scheduler: deps.Scheduler,
		Retry: retry.Policy{
			MaxAttempts: cfg.Pipeline.FetchAttempts,
			BaseDelay:   cfg.Pipeline.FetchBackoffMin,
			MaxDelay:    cfg.Pipeline.FetchBackoffMax,
		},
		Timeout: cfg.Pipeline.FetchTimeout,
		Metrics: deps.Observability.Sink(),
		Logger:  deps.Logger,
	})
	if err != nil {
		return StageHandlers{}, fmt.Errorf("create fetch stage: %w", err)
	}

	scorer, err := buildScorer(cfg.Scoring, cfg.Pipeline.MatchTimeout, deps.Logger)
	if err != nil {
		return StageHandlers{}, err
	}
	credentials, err := service.NewCredentialResolver(service.CredentialResolverOptions{
		Users:      deps.Repos.Users,
		Encryptor:  deps.Encryptor,
		ProcessKey: cfg.Scoring.APIKey,
		Logger:     deps.Logger,
	})
	if err != nil {
		return StageHandlers{}, fmt.Errorf("create credential resolver: %w", err)
	}
	match, err := stages.NewMatch(stages.MatchOptions{
		Jobs:        deps.Repos.Jobs,
		Artifacts:   deps.Repos.Artifacts,
		Scorer:      scorer,
		Credentials: credentials,
		Scheduler:   deps.Scheduler,
		Timeout:     cfg.Pipeline.MatchTimeout,
		Metrics:     deps.Observability.Sink(),
		Logger:      deps.Logger,
	})
	if err != nil {
		return StageHandlers{}, fmt.Errorf("create match stage: %w", err)
	}

	cleanup, err := stages.NewCleanup(deps.Repos.Artifacts, deps.Logger)
	if err != nil {
		return StageHandlers{}, fmt.Errorf("create cleanup stage: %w", err)
	}

	return StageHandlers{Fetch: fetch, Match: match, Cleanup: cleanup}, nil
}

// newUploadLimiter prefers the shared Redis window so every API replica counts together.
//
//nolint:ireturn // the router only needs the port.
func newUploadLimiter(client redis.UniversalClient, perMinute int, logger *slog.Logger) ports.RateLimiter {
	if client != nil {
		limiter, err := redisadapter.NewRateLimiter(client, redisadapter.RateLimiterOptions{
			Prefix: "ratelimit:upload:",
			Limit:  perMinute,
			Window: time.Minute,
		})
		if err == nil {
			return limiter
		}
		logger.Warn("redis upload limiter unavailable, limiting per process", "error", err)
	}
	return httpx.NewLocalRateLimiter(perMinute)
}

type DomainServicesOptions struct {
	Repos         *serviceRepositories
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(opts *DomainServicesOptions) (ServiceContainer, error) {
	if opts == nil {
		return ServiceContainer{}, errors.New("domain services options are required")
	}
	svcLogger := opts.Logger
	if svcLogger == nil {
		svcLogger = slog.Default()
	}
	appCfg := opts.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}
	repos := opts.Repos

	encryptor, err := CreateEncryptor(appCfg.SecretsEncryptionKey, appCfg.IsDev, svcLogger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create encryptor: %w", err)
	}
	taskQueue := newTaskQueue(repos, opts.Observability, svcLogger)
	scheduler, err := newScheduler(taskQueue, appCfg.Pipeline, svcLogger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create stage scheduler: %w", err)
	}
	handlers, err := newStageHandlers(stageDeps{
		Repos:         repos,
		Scheduler:     scheduler,
		Encryptor:     encryptor,
		Observability: opts.Observability,
		Config:        appCfg,
		Logger:        svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	owners, err := service.NewOwnerResolver(repos.Users)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create owner resolver: %w", err)
	}
	intake, err := service.NewIntakeService(service.IntakeOptions{
		Jobs:              repos.Jobs,
		Artifacts:         repos.Artifacts,
		Owners:            owners,
		Pipeline:          scheduler,
		AllowedExtensions: appCfg.Upload.AllowedExtensions,
		MaxBytes:          appCfg.Upload.MaxBytes,
		Logger:            svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create intake service: %w", err)
	}
	progress, err := service.NewProgressReporter(repos.Jobs, repos.Artifacts, repos.Tasks)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create progress reporter: %w", err)
	}
	keys, err := service.NewKeyService(repos.Users, encryptor)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create key service: %w", err)
	}

	authService := BuildAuthService(AuthConfig{
		Auth:        appCfg.Auth,
		RedisClient: repos.Redis,
		Users:       repos.Users,
		Logger:      svcLogger,
	})

	return ServiceContainer{
		Intake:        intake,
		Progress:      progress,
		Keys:          keys,
		Auth:          authService,
		Queue:         taskQueue,
		Scheduler:     scheduler,
		Stages:        handlers,
		Claims:        repos.Claims,
		UploadLimiter: newUploadLimiter(repos.Redis, appCfg.Upload.RatePerMinute, svcLogger),
		HealthChecks:  healthChecks(repos),
		Observability: opts.Observability,
	}, nil
}

// healthChecks probes the stores the pipeline cannot run without.
func healthChecks(repos *serviceRepositories) map[string]httpx.HealthCheck {
	checks := map[string]httpx.HealthCheck{}
	if repos == nil {
		return checks
	}
	if repos.DB != nil {
		checks["postgres"] = repos.DB.PingContext
	}
	if repos.Redis != nil {
		client := repos.Redis
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return checks
}

// NewServices builds repositories, observability adapters and every domain service.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service deps are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	observability := buildObservability(logger, appCfg.Observability, appCfg.HTTP.BaseURL)
	repos, err := buildRepositories(deps.DB, deps.RedisClient, appCfg)
	if err != nil {
		return ServiceContainer{}, err
	}
	return buildDomainServices(&DomainServicesOptions{
		Repos:         repos,
		Observability: observability,
		Config:        appCfg,
		Logger:        logger,
	})
}

// statusBaseURL links Slack alerts to the public status route unless an explicit prefix is set.
func statusBaseURL(explicit, baseURL string) string {
	if explicit != "" {
		return explicit
	}
	if base := strings.TrimRight(strings.TrimSpace(baseURL), "/"); base != "" {
		return base + "/task"
	}
	return ""
}

// buildFailureNotifier wires the enabled alert sinks. A sink that cannot be built is logged
// and skipped so a bad webhook setting never blocks startup.
func buildFailureNotifier(
	logger *slog.Logger,
	cfg config.AlertsConfig,
	baseURL string,
) *failurenotifier.Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return failurenotifier.New(logger)
	}

	var targets []failurenotifier.Target
	add := func(name string, sink notify.Sink, err error) {
		if err != nil {
			logger.Error("alert sink disabled", "sink", name, "error", err)
			return
		}
		targets = append(targets, failurenotifier.Target{Name: name, Sink: sink})
	}

	if cfg.Slack.Enabled {
		hook, err := slack.NewWebhook(slack.Config{
			WebhookURL:    cfg.Slack.WebhookURL,
			Channel:       cfg.Slack.Channel,
			Username:      cfg.Slack.Username,
			Timeout:       cfg.Timeout,
			RetryLimit:    cfg.Retries,
			StatusBaseURL: statusBaseURL(cfg.Slack.StatusBaseURL, baseURL),
		})
		add("slack", hook, err)
	}
	if cfg.PagerDuty.Enabled {
		events, err := pagerduty.NewEvents(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.Retries,
		})
		add("pagerduty", events, err)
	}
	return failurenotifier.New(logger, targets...)
}
