package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/jobmatch/internal/domain/model"
)

func TestDefaultTopology_Order(t *testing.T) {
	topo := DefaultTopology(time.Second, 7*24*time.Hour)
	require.NoError(t, topo.Validate())

	assert.Equal(t, []Stage{model.TaskTypeFetch, model.TaskTypeMatch, model.TaskTypeCleanup}, topo.Stages())
	assert.Equal(t, model.TaskTypeFetch, topo.First().Stage)
	assert.Zero(t, topo.First().Delay)

	next, ok, err := topo.Next(model.TaskTypeFetch)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Step{Stage: model.TaskTypeMatch, Delay: time.Second}, next)

	next, ok, err = topo.Next(model.TaskTypeMatch)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.TaskTypeCleanup, next.Stage)
	assert.Equal(t, 7*24*time.Hour, next.Delay)

	_, ok, err = topo.Next(model.TaskTypeCleanup)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTopology_NextUnknown(t *testing.T) {
	topo, err := New(Step{Stage: model.TaskTypeFetch})
	require.NoError(t, err)

	_, _, err = topo.Next(model.TaskTypeMatch)
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
	}{
		{name: "empty", steps: nil},
		{name: "duplicate", steps: []Step{{Stage: model.TaskTypeFetch}, {Stage: model.TaskTypeFetch}}},
		{name: "unknown", steps: []Step{{Stage: "render"}}},
		{name: "negative delay", steps: []Step{{Stage: model.TaskTypeFetch, Delay: -time.Second}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.steps...)
			assert.Error(t, err)
		})
	}
}
