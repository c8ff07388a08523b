package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMetric struct {
	kind  string
	name  string
	value float64
	tags  map[string]string
}

type recordingSink struct {
	mu      sync.Mutex
	metrics []recordedMetric
}

func (r *recordingSink) Count(name string, value int64, tags map[string]string) {
	r.add(recordedMetric{kind: "count", name: name, value: float64(value), tags: tags})
}

func (r *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	r.add(recordedMetric{kind: "gauge", name: name, value: value, tags: tags})
}

func (r *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(recordedMetric{kind: "timing", name: name, value: float64(value), tags: tags})
}

func (r *recordingSink) add(m recordedMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

type stageTimeoutError struct{}

func (stageTimeoutError) Error() string { return "timeout" }

func TestEmitTaskLifecycle(t *testing.T) {
	sink := &recordingSink{}
	EmitTaskLifecycle(sink, TaskMetric{
		Stage:      "fetch",
		Transition: "failed",
		Result:     ResultError,
		Duration:   150 * time.Millisecond,
		Err:        stageTimeoutError{},
	})

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "task.transition", sink.metrics[0].name)
	assert.Equal(t, "fetch", sink.metrics[0].tags["stage"])
	assert.NotEmpty(t, sink.metrics[0].tags["error_class"])
	assert.Equal(t, "task.duration", sink.metrics[1].name)
}

func TestEmitTaskLifecycle_NoDurationNoError(t *testing.T) {
	sink := &recordingSink{}
	EmitTaskLifecycle(sink, TaskMetric{Stage: "cleanup", Transition: "completed", Result: ResultNoop})
	require.Len(t, sink.metrics, 1)
	_, hasClass := sink.metrics[0].tags["error_class"]
	assert.False(t, hasClass)
}

func TestEmitters_NilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitTaskLifecycle(nil, TaskMetric{})
		EmitCheckpoint(nil, "running", 25)
		EmitMatchOutcome(nil, "raw")
		EmitQueueDepth(nil, "fetch", 1, 2)
	})
}

func TestEmitCheckpointAndQueueDepth(t *testing.T) {
	sink := &recordingSink{}
	EmitCheckpoint(sink, "running", 60)
	EmitQueueDepth(sink, "match", 3, 1)
	EmitMatchOutcome(sink, "structured")

	require.Len(t, sink.metrics, 4)
	assert.Equal(t, "60", sink.metrics[0].tags["progress"])
	assert.Equal(t, "gauge", sink.metrics[1].kind)
	assert.InDelta(t, 3, sink.metrics[1].value, 0)
	assert.Equal(t, "structured", sink.metrics[3].tags["outcome"])
}
