package service

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/jobmatch/internal/domain/model"
	apperrors "github.com/target/jobmatch/internal/errors"
	"github.com/target/jobmatch/internal/mocks"
)

type progressFixture struct {
	reporter  *ProgressReporter
	jobs      *mocks.MockJobStore
	artifacts *mocks.MockArtifactStore
	tasks     *mocks.MockTaskRepository
}

func newProgressFixture(t *testing.T) progressFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := progressFixture{
		jobs:      mocks.NewMockJobStore(ctrl),
		artifacts: mocks.NewMockArtifactStore(ctrl),
		tasks:     mocks.NewMockTaskRepository(ctrl),
	}
	var err error
	f.reporter, err = NewProgressReporter(f.jobs, f.artifacts, f.tasks)
	require.NoError(t, err)
	return f
}

func completedJob(id string, owner model.Owner) *model.Job {
	ref := "outputs/result_" + id + ".json"
	return &model.Job{
		ID:         id,
		Owner:      owner,
		Status:     model.JobStatusCompleted,
		Progress:   model.ProgressComplete,
		ResultsRef: &ref,
	}
}

func TestNewProgressReporter_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := NewProgressReporter(nil, mocks.NewMockArtifactStore(ctrl), nil)
	require.Error(t, err)
	_, err = NewProgressReporter(mocks.NewMockJobStore(ctrl), nil, nil)
	require.Error(t, err)
}

func TestProgressReporter_Status(t *testing.T) {
	f := newProgressFixture(t)
	f.jobs.EXPECT().GetByID(gomock.Any(), "j1").
		Return(&model.Job{ID: "j1", Status: model.JobStatusRunning, Progress: model.ProgressFetched}, nil)

	st, err := f.reporter.Status(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, &JobStatus{Status: model.JobStatusRunning, Progress: 60, Message: "running..."}, st)
}

func TestProgressReporter_Status_NotFound(t *testing.T) {
	f := newProgressFixture(t)
	f.jobs.EXPECT().GetByID(gomock.Any(), "nope").Return(nil, apperrors.NotFound("job not found"))

	_, err := f.reporter.Status(context.Background(), "nope")
	require.True(t, apperrors.IsNotFound(err))
}

func TestProgressReporter_Results(t *testing.T) {
	t.Run("pending", func(t *testing.T) {
		f := newProgressFixture(t)
		f.jobs.EXPECT().GetByID(gomock.Any(), "j1").
			Return(&model.Job{ID: "j1", Status: model.JobStatusRunning, Progress: model.ProgressMatchQueued}, nil)

		view, err := f.reporter.Results(context.Background(), "j1")
		require.NoError(t, err)
		assert.False(t, view.Ready)
		assert.Equal(t, model.JobStatusRunning, view.Status)
	})

	t.Run("failed is pending too", func(t *testing.T) {
		f := newProgressFixture(t)
		f.jobs.EXPECT().GetByID(gomock.Any(), "j1").
			Return(&model.Job{ID: "j1", Status: model.JobStatusFailed}, nil)

		view, err := f.reporter.Results(context.Background(), "j1")
		require.NoError(t, err)
		assert.False(t, view.Ready)
		assert.Equal(t, model.JobStatusFailed, view.Status)
	})

	t.Run("completed", func(t *testing.T) {
		f := newProgressFixture(t)
		f.jobs.EXPECT().GetByID(gomock.Any(), "j2").Return(completedJob("j2", model.GuestOwner("g")), nil)
		f.artifacts.EXPECT().ReadResults(gomock.Any(), "outputs/result_j2.json").Return([]byte(`{"jobs":[]}`), nil)

		view, err := f.reporter.Results(context.Background(), "j2")
		require.NoError(t, err)
		assert.True(t, view.Ready)
		assert.JSONEq(t, `{"jobs":[]}`, string(view.Document))
	})

	t.Run("read error", func(t *testing.T) {
		f := newProgressFixture(t)
		f.jobs.EXPECT().GetByID(gomock.Any(), "j3").Return(completedJob("j3", model.GuestOwner("g")), nil)
		f.artifacts.EXPECT().ReadResults(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk"))

		_, err := f.reporter.Results(context.Background(), "j3")
		require.ErrorIs(t, err, ErrResultsUnavailable)
		require.ErrorContains(t, err, "disk")
	})

	t.Run("missing document", func(t *testing.T) {
		f := newProgressFixture(t)
		f.jobs.EXPECT().GetByID(gomock.Any(), "j4").Return(completedJob("j4", model.GuestOwner("g")), nil)
		f.artifacts.EXPECT().ReadResults(gomock.Any(), gomock.Any()).Return(nil, fs.ErrNotExist)

		_, err := f.reporter.Results(context.Background(), "j4")
		require.ErrorIs(t, err, ErrResultsUnavailable)
		require.ErrorIs(t, err, fs.ErrNotExist)
	})
}

func TestProgressReporter_Download(t *testing.T) {
	owner := model.RegisteredOwner("user-1")

	t.Run("owner match", func(t *testing.T) {
		f := newProgressFixture(t)
		f.jobs.EXPECT().GetByID(gomock.Any(), "j1").Return(completedJob("j1", owner), nil)
		f.artifacts.EXPECT().ReadResults(gomock.Any(), gomock.Any()).Return([]byte(`{}`), nil)

		doc, err := f.reporter.Download(context.Background(), "j1", owner)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{}`), doc)
	})

	t.Run("owner mismatch", func(t *testing.T) {
		f := newProgressFixture(t)
		f.jobs.EXPECT().GetByID(gomock.Any(), "j1").Return(completedJob("j1", model.RegisteredOwner("user-2")), nil)

		_, err := f.reporter.Download(context.Background(), "j1", owner)
		require.ErrorIs(t, err, ErrOwnerMismatch)
	})

	t.Run("guest with same id is not the owner", func(t *testing.T) {
		f := newProgressFixture(t)
		f.jobs.EXPECT().GetByID(gomock.Any(), "j1").Return(completedJob("j1", model.GuestOwner("user-1")), nil)

		_, err := f.reporter.Download(context.Background(), "j1", owner)
		require.ErrorIs(t, err, ErrOwnerMismatch)
	})

	t.Run("not ready", func(t *testing.T) {
		f := newProgressFixture(t)
		f.jobs.EXPECT().GetByID(gomock.Any(), "j1").
			Return(&model.Job{ID: "j1", Owner: owner, Status: model.JobStatusQueued}, nil)

		_, err := f.reporter.Download(context.Background(), "j1", owner)
		require.ErrorIs(t, err, ErrResultsNotReady)
	})
}

func TestProgressReporter_Overview(t *testing.T) {
	f := newProgressFixture(t)
	f.tasks.EXPECT().Stats(gomock.Any(), model.TaskTypeFetch).Return(&model.TaskStats{Pending: 1}, nil)
	f.tasks.EXPECT().Stats(gomock.Any(), model.TaskTypeMatch).Return(&model.TaskStats{Running: 2}, nil)
	f.tasks.EXPECT().Stats(gomock.Any(), model.TaskTypeCleanup).Return(&model.TaskStats{Completed: 3}, nil)
	f.jobs.EXPECT().Counts(gomock.Any()).Return(&model.JobCounts{Completed: 3, Failed: 1}, nil)

	ov, err := f.reporter.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ov.Queues[model.TaskTypeFetch].Pending)
	assert.Equal(t, 2, ov.Queues[model.TaskTypeMatch].Running)
	assert.Equal(t, 3, ov.Queues[model.TaskTypeCleanup].Completed)
	assert.Equal(t, 1, ov.Jobs.Failed)
}

func TestProgressReporter_Overview_Errors(t *testing.T) {
	f := newProgressFixture(t)
	f.tasks.EXPECT().Stats(gomock.Any(), model.TaskTypeFetch).Return(nil, errors.New("db"))

	_, err := f.reporter.Overview(context.Background())
	require.ErrorContains(t, err, "stats for fetch")

	ctrl := gomock.NewController(t)
	noTasks, err := NewProgressReporter(mocks.NewMockJobStore(ctrl), mocks.NewMockArtifactStore(ctrl), nil)
	require.NoError(t, err)
	_, err = noTasks.Overview(context.Background())
	require.Error(t, err)
}
