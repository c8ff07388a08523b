// Package metrics emits the pipeline's StatsD metrics with consistent names and tags.
package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/target/jobmatch/internal/observability/errors"
	"github.com/target/jobmatch/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
	ResultBusy    = "busy"
)

// TaskMetric captures one task delivery outcome.
type TaskMetric struct {
	Stage      string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitTaskLifecycle emits task.transition and task.duration for a delivery.
func EmitTaskLifecycle(sink statsd.Sink, in TaskMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"stage":      in.Stage,
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("task.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("task.duration", in.Duration, CloneTags(tags))
	}
}

// EmitCheckpoint counts a job checkpoint write.
func EmitCheckpoint(sink statsd.Sink, status string, progress int) {
	if sink == nil {
		return
	}
	sink.Count("job.checkpoint", 1, map[string]string{
		"status":   status,
		"progress": strconv.Itoa(progress),
	})
}

// EmitMatchOutcome counts how the match stage ended: structured, raw, or a degradation reason.
func EmitMatchOutcome(sink statsd.Sink, outcome string) {
	if sink == nil || outcome == "" {
		return
	}
	sink.Count("match.outcome", 1, map[string]string{"outcome": outcome})
}

// EmitQueueDepth gauges pending/running tasks for a stage.
func EmitQueueDepth(sink statsd.Sink, stage string, pending, running int) {
	if sink == nil {
		return
	}
	tags := map[string]string{"stage": stage}
	sink.Gauge("queue.pending", float64(pending), tags)
	sink.Gauge("queue.running", float64(running), CloneTags(tags))
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
