package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/jobmatch/internal/observability/notify"
)

func TestNewEvents_RequiresRoutingKey(t *testing.T) {
	_, err := NewEvents(Config{})
	require.Error(t, err)
}

func TestTrigger(t *testing.T) {
	e, err := NewEvents(Config{RoutingKey: "key"})
	require.NoError(t, err)

	ev := e.trigger(notify.Alert{
		TaskID: "t-1",
		JobID:  "123",
		Stage:  "fetch",
		Reason: "boom",
		Class:  "transient_fetch",
		At:     time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Labels: map[string]string{"owner_kind": "guest", "stage": "ignored"},
	})

	assert.Equal(t, "key", ev.RoutingKey)
	assert.Equal(t, "trigger", ev.EventAction)
	assert.Equal(t, "fetch:123", ev.DedupKey)
	assert.Equal(t, "fetch stage failed for job 123", ev.Payload.Summary)
	assert.Equal(t, "critical", ev.Payload.Severity)
	assert.Equal(t, "jobmatch", ev.Payload.Source)
	assert.Equal(t, "pipeline", ev.Payload.Component)
	assert.Equal(t, "2026-02-03T04:05:06Z", ev.Payload.Timestamp)
	assert.Equal(t, "fetch", ev.Payload.CustomDetails["stage"])
	assert.Equal(t, "guest", ev.Payload.CustomDetails["owner_kind"])
	assert.Equal(t, "transient_fetch", ev.Payload.CustomDetails["error_class"])
}

func TestTrigger_WarningSeverity(t *testing.T) {
	e, err := NewEvents(Config{RoutingKey: "key", Source: "jm-prod"})
	require.NoError(t, err)

	ev := e.trigger(notify.Alert{Stage: "cleanup", JobID: "j", Severity: notify.SeverityWarning})
	assert.Equal(t, "warning", ev.Payload.Severity)
	assert.Equal(t, "jm-prod", ev.Payload.Source)
}

func TestNotify_PostsEvent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	e, err := NewEvents(Config{RoutingKey: "rk", Endpoint: srv.URL})
	require.NoError(t, err)
	require.NoError(t, e.Notify(context.Background(), notify.Alert{JobID: "j", Stage: "match"}))

	assert.Equal(t, "rk", got["routing_key"])
	assert.Equal(t, "match:j", got["dedup_key"])
}

func TestNotify_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad routing key", http.StatusBadRequest)
	}))
	defer srv.Close()

	e, err := NewEvents(Config{RoutingKey: "rk", Endpoint: srv.URL})
	require.NoError(t, err)
	err = e.Notify(context.Background(), notify.Alert{JobID: "j"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad routing key")
}
