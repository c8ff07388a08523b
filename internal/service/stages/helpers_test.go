package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/domain/pipeline"
)

const testJobID = "6f1c2a9e-3b7d-4c0e-9a51-2d8e7f4b1c30"

var testNow = time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingQueue records enqueued tasks in order.
type recordingQueue struct {
	mu   sync.Mutex
	reqs []*model.CreateTaskRequest
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	q.reqs = append(q.reqs, req)
	return &model.Task{
		ID:      fmt.Sprintf("task-%d", len(q.reqs)),
		Type:    req.Type,
		JobID:   req.JobID,
		Payload: req.Payload,
		Status:  model.TaskStatusPending,
	}, nil
}

func (q *recordingQueue) requests() []*model.CreateTaskRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*model.CreateTaskRequest(nil), q.reqs...)
}

func newTestScheduler(t *testing.T, q *recordingQueue) *Scheduler {
	t.Helper()
	s, err := NewScheduler(SchedulerOptions{
		Queue:    q,
		Topology: pipeline.DefaultTopology(time.Second, 7*24*time.Hour),
		Now:      func() time.Time { return testNow },
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
	return s
}

func testCriteria() model.Criteria {
	return model.Criteria{JobTitles: "developer", Location: "india", Skills: []string{"go", "sql"}}
}

func jobAt(status model.JobStatus, progress model.Progress) *model.Job {
	return &model.Job{
		ID:           testJobID,
		Owner:        model.RegisteredOwner("user-1"),
		Criteria:     testCriteria(),
		ArtifactPath: "uploads/1712741400_resume.txt",
		Fingerprint:  "abc",
		Status:       status,
		Progress:     progress,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
}

func jobAtCheckpoint(cp model.Checkpoint) *model.Job {
	j := jobAt(cp.Status, cp.Progress)
	j.ResultsRef = cp.ResultsRef
	return j
}

func stageTask(t *testing.T, stage model.TaskType, p model.StagePayload) *model.Task {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return &model.Task{ID: "task-under-test", Type: stage, JobID: p.JobID, Payload: raw}
}

func testPostings() []model.Posting {
	return []model.Posting{
		{ID: 1, Title: "Software Developer", Company: "Tech Corp", Location: "india"},
		{ID: 2, Title: "Backend Engineer", Company: "Data Inc", Location: "india"},
	}
}

func decodePayload(t *testing.T, req *model.CreateTaskRequest) model.StagePayload {
	t.Helper()
	p, err := model.DecodeStagePayload(req.Payload)
	require.NoError(t, err)
	return p
}
