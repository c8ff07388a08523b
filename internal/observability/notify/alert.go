// Package notify defines failure alerts for dead-lettered stage tasks and the sinks that
// carry them to on-call channels.
package notify

import (
	"context"
	"strings"
	"time"
)

// Severity is the urgency attached to an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Alert describes a stage task that used up its delivery budget.
type Alert struct {
	TaskID      string
	JobID       string
	Stage       string
	Attempt     int
	MaxAttempts int
	Reason      string
	Class       string
	Severity    Severity
	At          time.Time
	Labels      map[string]string
}

// Summary is a one-line description suitable for incident titles.
func (a Alert) Summary() string {
	return orUnknown(a.Stage) + " stage failed for job " + orUnknown(a.JobID)
}

// DedupKey groups redeliveries of one job stage into a single incident.
func (a Alert) DedupKey() string {
	return strings.Trim(a.Stage+":"+a.JobID, ":")
}

// Timestamp returns At in UTC, or now when At is unset.
func (a Alert) Timestamp() time.Time {
	if a.At.IsZero() {
		return time.Now().UTC()
	}
	return a.At.UTC()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

// Sink delivers alerts to one destination.
type Sink interface {
	Notify(ctx context.Context, alert Alert) error
}

// SinkFunc lets a plain function act as a Sink.
type SinkFunc func(ctx context.Context, alert Alert) error

func (f SinkFunc) Notify(ctx context.Context, alert Alert) error {
	if f == nil {
		return nil
	}
	return f(ctx, alert)
}
