// Package pagerduty raises failure alerts as PagerDuty Events API v2 incidents.
package pagerduty

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/target/jobmatch/internal/observability/notify"
)

// EventsURL is the Events API v2 ingest endpoint.
const EventsURL = "https://events.pagerduty.com/v2/enqueue"

type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	HTTPClient *http.Client
	// Endpoint overrides EventsURL.
	Endpoint string
}

// Events is a notify.Sink that triggers one incident per job stage.
type Events struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	poster     notify.Poster
}

var _ notify.Sink = (*Events)(nil)

type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key,omitempty"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	Component     string         `json:"component,omitempty"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details,omitempty"`
}

func NewEvents(cfg Config) (*Events, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty: routing key is required")
	}
	return &Events{
		routingKey: key,
		source:     or(cfg.Source, "jobmatch"),
		component:  or(cfg.Component, "pipeline"),
		endpoint:   or(cfg.Endpoint, EventsURL),
		poster:     notify.NewPoster("pagerduty", cfg.HTTPClient, cfg.Timeout, cfg.RetryLimit),
	}, nil
}

func (e *Events) Notify(ctx context.Context, alert notify.Alert) error {
	return e.poster.PostJSON(ctx, e.endpoint, e.trigger(alert))
}

func (e *Events) trigger(a notify.Alert) event {
	severity := strings.ToLower(string(a.Severity))
	if severity == "" {
		severity = string(notify.SeverityCritical)
	}

	details := make(map[string]any, len(a.Labels)+7)
	for k, v := range a.Labels {
		details[k] = v
	}
	// Core fields win over labels with the same key.
	details["task_id"] = a.TaskID
	details["job_id"] = a.JobID
	details["stage"] = a.Stage
	details["attempt"] = a.Attempt
	details["max_attempts"] = a.MaxAttempts
	details["error"] = a.Reason
	details["error_class"] = a.Class

	return event{
		RoutingKey:  e.routingKey,
		EventAction: "trigger",
		DedupKey:    a.DedupKey(),
		Payload: eventPayload{
			Summary:       a.Summary(),
			Severity:      severity,
			Source:        e.source,
			Component:     e.component,
			Timestamp:     a.Timestamp().Format(time.RFC3339),
			CustomDetails: details,
		},
	}
}

func or(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
