package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/jobmatch/config"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewSupervisor_Validation(t *testing.T) {
	_, err := newSupervisor(nil)
	require.Error(t, err)

	_, err = newSupervisor(&ServiceOrchestrationConfig{})
	require.ErrorContains(t, err, "missing AppConfig")

	_, err = newSupervisor(&ServiceOrchestrationConfig{Config: &config.AppConfig{Services: "bogus"}})
	require.ErrorContains(t, err, "determine enabled services")

	sup, err := newSupervisor(&ServiceOrchestrationConfig{Config: &config.AppConfig{Services: "reaper"}})
	require.NoError(t, err)
	assert.True(t, sup.enabled[config.ServiceModeReaper])
	assert.Equal(t, 2, cap(sup.errs))
	assert.NotNil(t, sup.logger)
}

func TestSupervisor_WorkerFailureStopsAndReturnsCause(t *testing.T) {
	sup := &supervisor{
		cfg:    &ServiceOrchestrationConfig{Config: &config.AppConfig{}},
		logger: quietLogger(),
		errs:   make(chan error, 2),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")
	sup.spawn(ctx, worker{mode: config.ServiceModeReaper, name: "reaper", run: func(context.Context) error { return boom }})

	err := sup.wait(ctx, cancel)
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "reaper failed")
	assert.Error(t, ctx.Err(), "context must be cancelled after a failure")
}

func TestSupervisor_CancelDrainsWorkers(t *testing.T) {
	sup := &supervisor{
		cfg:    &ServiceOrchestrationConfig{Config: &config.AppConfig{}},
		logger: quietLogger(),
		errs:   make(chan error, 2),
	}
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	sup.spawn(ctx, worker{name: "loop", run: func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}})

	cancel()
	require.NoError(t, sup.wait(ctx, cancel))

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker was not drained")
	}
	select {
	case err := <-sup.errs:
		t.Fatalf("cancellation error should be dropped, got %v", err)
	default:
	}
}

func TestWorkers_CoverEveryBackgroundMode(t *testing.T) {
	got := make(map[config.ServiceMode]string)
	for _, w := range workers(&ServiceOrchestrationConfig{Config: &config.AppConfig{}}) {
		got[w.mode] = w.name
	}
	for _, mode := range config.ValidServiceModes() {
		if mode == config.ServiceModeHTTP {
			continue
		}
		assert.NotEmpty(t, got[mode], "no worker for %q", mode)
	}
}
