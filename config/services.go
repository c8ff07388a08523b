package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ServiceMode names one role a process can take on. SERVICES lists the modes to run.
type ServiceMode string

const (
	ServiceModeHTTP          ServiceMode = "http"
	ServiceModeFetchRunner   ServiceMode = "fetch-runner"
	ServiceModeMatchRunner   ServiceMode = "match-runner"
	ServiceModeCleanupRunner ServiceMode = "cleanup-runner"
	ServiceModeReaper        ServiceMode = "reaper"

	// serviceModeAll expands to every mode; handy for single-process deployments.
	serviceModeAll = "all"
)

// ValidServiceModes returns every mode in startup order.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeFetchRunner,
		ServiceModeMatchRunner,
		ServiceModeCleanupRunner,
		ServiceModeReaper,
	}
}

// ParseServices turns a comma-separated mode list into a set. Blank entries are skipped;
// unknown names are an error.
func ParseServices(list string) (map[ServiceMode]bool, error) {
	valid := ValidServiceModes()
	enabled := make(map[ServiceMode]bool, len(valid))

	for _, name := range strings.Split(list, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		switch {
		case name == "":
		case name == serviceModeAll:
			for _, m := range valid {
				enabled[m] = true
			}
		case slices.Contains(valid, ServiceMode(name)):
			enabled[ServiceMode(name)] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: %s, %s)",
				name, joinModes(valid), serviceModeAll)
		}
	}

	if len(enabled) == 0 {
		return nil, errors.New("at least one service must be specified")
	}
	return enabled, nil
}

func joinModes(modes []ServiceMode) string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

const minJobLease = 5 * time.Second

// RunnerConfig sizes one stage's worker pool.
type RunnerConfig struct {
	Concurrency int `env:"CONCURRENCY" envDefault:"2"`
	// JobLease is how long a reserved task stays invisible to other workers between heartbeats.
	JobLease time.Duration `env:"JOB_LEASE" envDefault:"90s"`
}

func (r *RunnerConfig) Sanitize() {
	r.Concurrency = max(r.Concurrency, 1)
	r.JobLease = max(r.JobLease, minJobLease)
}

// ReaperConfig controls task-table maintenance.
type ReaperConfig struct {
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`
	// PendingMaxAge fails pending tasks this far past their scheduled time.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"1h"`
	// CompletedMaxAge and FailedMaxAge are retention windows before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"`
	FailedMaxAge    time.Duration `env:"REAPER_FAILED_MAX_AGE"    envDefault:"336h"`
	// BatchSize bounds rows touched per statement.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

const maxReaperBatch = 10000

// Sanitize raises durations to their floors and clamps BatchSize to 1..10000.
func (r *ReaperConfig) Sanitize() {
	r.Interval = max(r.Interval, time.Minute)
	r.PendingMaxAge = max(r.PendingMaxAge, 5*time.Minute)
	r.CompletedMaxAge = max(r.CompletedMaxAge, time.Hour)
	r.FailedMaxAge = max(r.FailedMaxAge, time.Hour)
	r.BatchSize = min(max(r.BatchSize, 1), maxReaperBatch)
}
