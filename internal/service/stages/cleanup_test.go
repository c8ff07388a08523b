package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/mocks"
)

func TestCleanup_Handle(t *testing.T) {
	tests := []struct {
		name    string
		payload model.StagePayload
		setup   func(a *mocks.MockArtifactStore)
	}{
		{
			name:    "deletes artifact",
			payload: model.StagePayload{JobID: testJobID, ArtifactPath: "uploads/r.txt"},
			setup: func(a *mocks.MockArtifactStore) {
				a.EXPECT().Delete(gomock.Any(), "uploads/r.txt").Return(nil)
			},
		},
		{
			name:    "delete failure is swallowed",
			payload: model.StagePayload{JobID: testJobID, ArtifactPath: "uploads/r.txt"},
			setup: func(a *mocks.MockArtifactStore) {
				a.EXPECT().Delete(gomock.Any(), "uploads/r.txt").Return(errors.New("permission denied"))
			},
		},
		{
			name:    "nothing to delete",
			payload: model.StagePayload{JobID: testJobID},
			setup:   func(*mocks.MockArtifactStore) {},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			artifacts := mocks.NewMockArtifactStore(ctrl)
			tt.setup(artifacts)
			c, err := NewCleanup(artifacts, discardLogger())
			require.NoError(t, err)

			require.NoError(t, c.Handle(context.Background(), stageTask(t, model.TaskTypeCleanup, tt.payload)))
		})
	}
}

func TestCleanup_RepeatedRunIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	artifacts := mocks.NewMockArtifactStore(ctrl)
	artifacts.EXPECT().Delete(gomock.Any(), "uploads/r.txt").Return(nil).Times(2)
	c, err := NewCleanup(artifacts, discardLogger())
	require.NoError(t, err)

	task := stageTask(t, model.TaskTypeCleanup, model.StagePayload{JobID: testJobID, ArtifactPath: "uploads/r.txt"})
	require.NoError(t, c.Handle(context.Background(), task))
	require.NoError(t, c.Handle(context.Background(), task))
}

func TestCleanup_UnreadablePayload(t *testing.T) {
	c, err := NewCleanup(mocks.NewMockArtifactStore(gomock.NewController(t)), discardLogger())
	require.NoError(t, err)
	require.NoError(t, c.Handle(context.Background(), &model.Task{ID: "t", Payload: []byte("not json")}))
}

func TestNewCleanup_RequiresStore(t *testing.T) {
	_, err := NewCleanup(nil, nil)
	require.Error(t, err)
}
