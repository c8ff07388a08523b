// Package failurenotifier fans alerts for dead-lettered stage tasks out to every configured
// sink concurrently.
package failurenotifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/observability/notify"
)

// Target names a sink for log and error messages.
type Target struct {
	Name string
	Sink notify.Sink
}

// Dispatcher delivers each alert to all targets. A nil Dispatcher is inactive.
type Dispatcher struct {
	logger  *slog.Logger
	targets []Target
}

// New drops targets without a sink.
func New(logger *slog.Logger, targets ...Target) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger.With("component", "failure_notifier")}
	for i, t := range targets {
		if t.Sink == nil {
			continue
		}
		if t.Name == "" {
			t.Name = fmt.Sprintf("sink-%d", i)
		}
		d.targets = append(d.targets, t)
	}
	return d
}

// Active reports whether any sink is configured.
func (d *Dispatcher) Active() bool {
	return d != nil && len(d.targets) > 0
}

// Dispatch waits for every target. One target failing does not stop the others; their
// errors are logged and returned joined.
func (d *Dispatcher) Dispatch(ctx context.Context, alert notify.Alert) error {
	if !d.Active() {
		return nil
	}
	if alert.Severity == "" {
		alert.Severity = defaultSeverity(alert.Stage)
	}

	errs := make([]error, len(d.targets))
	var g errgroup.Group
	for i, t := range d.targets {
		g.Go(func() error {
			if err := t.Sink.Notify(ctx, alert); err != nil {
				d.logger.ErrorContext(ctx, "failure alert not delivered",
					"sink", t.Name,
					"task_id", alert.TaskID,
					"job_id", alert.JobID,
					"stage", alert.Stage,
					"error", err,
				)
				errs[i] = fmt.Errorf("%s: %w", t.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// defaultSeverity pages for fetch and match; a stuck cleanup only holds disk space.
func defaultSeverity(stage string) notify.Severity {
	if stage == string(model.TaskTypeCleanup) {
		return notify.SeverityWarning
	}
	return notify.SeverityCritical
}
