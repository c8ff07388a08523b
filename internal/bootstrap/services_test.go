package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/target/jobmatch/config"
	httpx "github.com/target/jobmatch/internal/http"
)

func TestErrorBuffer(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{name: "no services enabled", want: 1},
		{name: "http only", modes: []config.ServiceMode{config.ServiceModeHTTP}, want: 2},
		{
			name:  "match and cleanup runners",
			modes: []config.ServiceMode{config.ServiceModeMatchRunner, config.ServiceModeCleanupRunner},
			want:  3,
		},
		{name: "all services enabled", modes: config.ValidServiceModes(), want: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}
			if got := errorBuffer(enabled); got != tt.want {
				t.Fatalf("errorBuffer(%v) = %d, want %d", tt.modes, got, tt.want)
			}
		})
	}
}

func TestStatusBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		baseURL  string
		want     string
	}{
		{name: "explicit wins", explicit: "https://ops.example.com/jobs", baseURL: "https://api.example.com", want: "https://ops.example.com/jobs"},
		{name: "derived from base url", baseURL: "https://api.example.com/", want: "https://api.example.com/task"},
		{name: "nothing configured", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusBaseURL(tt.explicit, tt.baseURL); got != tt.want {
				t.Fatalf("statusBaseURL(%q, %q) = %q, want %q", tt.explicit, tt.baseURL, got, tt.want)
			}
		})
	}
}

func TestBuildFailureNotifier(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	enabled := config.AlertsConfig{
		Enabled: true,
		Slack:   config.SlackAlertConfig{Enabled: true, WebhookURL: "https://hooks.example/x"},
		PagerDuty: config.PagerDutyAlertConfig{
			Enabled: true,
			// A blank key makes the PagerDuty sink fail to build; Slack must still be wired.
			RoutingKey: " ",
		},
	}
	if d := buildFailureNotifier(logger, enabled, ""); !d.Active() {
		t.Fatal("expected slack sink to be active")
	}

	enabled.Enabled = false
	if d := buildFailureNotifier(logger, enabled, ""); d.Active() {
		t.Fatal("disabled notifications must not register sinks")
	}
}

func TestStageRunnerServicesCoverEveryRunnerMode(t *testing.T) {
	seen := make(map[config.ServiceMode]bool)
	for _, svc := range stageRunnerServices {
		seen[svc.mode] = true
	}
	for _, mode := range config.ValidServiceModes() {
		if mode == config.ServiceModeHTTP || mode == config.ServiceModeReaper {
			continue
		}
		if !seen[mode] {
			t.Fatalf("no stage runner registered for %q", mode)
		}
	}
}

func TestGetEnabledServicesOrdersByMode(t *testing.T) {
	cfg := &config.AppConfig{Services: "reaper, http,fetch-runner"}
	got := GetEnabledServices(cfg)
	want := []string{"http", "fetch-runner", "reaper"}
	if len(got) != len(want) {
		t.Fatalf("GetEnabledServices() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GetEnabledServices() = %v, want %v", got, want)
		}
	}
}

func TestNewUploadLimiterFallsBackToLocal(t *testing.T) {
	limiter := newUploadLimiter(nil, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, ok := limiter.(*httpx.LocalRateLimiter); !ok {
		t.Fatalf("newUploadLimiter(nil) = %T, want *httpx.LocalRateLimiter", limiter)
	}
	ok, err := limiter.Allow(context.Background(), "client")
	if err != nil || !ok {
		t.Fatalf("first request: ok=%v err=%v", ok, err)
	}
	ok, _ = limiter.Allow(context.Background(), "client")
	if ok {
		t.Fatal("second request within the minute should be rejected")
	}
}
