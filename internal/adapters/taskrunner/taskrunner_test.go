package taskrunner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/mocks"
	"github.com/target/jobmatch/internal/service"
)

type failure struct {
	id      string
	msg     string
	details service.TaskFailureDetails
}

type fakeQueue struct {
	mu         sync.Mutex
	tasks      []*model.Task
	reserveErr error
	heartbeat  func(id string) (bool, error)
	notify     chan struct{}

	completed  []string
	failures   []failure
	heartbeats int
	done       chan struct{}
}

func newFakeQueue(tasks ...*model.Task) *fakeQueue {
	return &fakeQueue{tasks: tasks, notify: make(chan struct{}), done: make(chan struct{}, 16)}
}

func (q *fakeQueue) Subscribe(model.TaskType) (func(), <-chan struct{}) {
	return func() {}, q.notify
}

func (q *fakeQueue) ReserveNext(context.Context, model.TaskType, time.Duration) (*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reserveErr != nil {
		return nil, q.reserveErr
	}
	if len(q.tasks) == 0 {
		return nil, model.ErrNoTasksAvailable
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, nil
}

func (q *fakeQueue) Heartbeat(_ context.Context, id string, _ time.Duration) (bool, error) {
	q.mu.Lock()
	q.heartbeats++
	hb := q.heartbeat
	q.mu.Unlock()
	if hb != nil {
		return hb(id)
	}
	return true, nil
}

func (q *fakeQueue) Complete(_ context.Context, id string) (bool, error) {
	q.mu.Lock()
	q.completed = append(q.completed, id)
	q.mu.Unlock()
	q.done <- struct{}{}
	return true, nil
}

func (q *fakeQueue) FailWithDetails(_ context.Context, id, msg string, d service.TaskFailureDetails) (bool, error) {
	q.mu.Lock()
	q.failures = append(q.failures, failure{id: id, msg: msg, details: d})
	q.mu.Unlock()
	q.done <- struct{}{}
	return true, nil
}

type fakeHandler struct {
	stage model.TaskType
	fn    func(ctx context.Context, task *model.Task) error
	calls int
	mu    sync.Mutex
}

func (h *fakeHandler) Stage() model.TaskType { return h.stage }

func (h *fakeHandler) Handle(ctx context.Context, task *model.Task) error {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.fn == nil {
		return nil
	}
	return h.fn(ctx, task)
}

func fetchTask(id string) *model.Task {
	return &model.Task{ID: id, JobID: "job-" + id, Type: model.TaskTypeFetch, MaxRetries: 3}
}

func newTestRunner(t *testing.T, q Queue, h *fakeHandler, claims *mocks.MockStageClaimRepository) *Runner {
	t.Helper()
	r, err := NewRunner(RunnerOptions{Queue: q, Handler: h, Claims: claims, Lease: 30 * time.Second})
	require.NoError(t, err)
	return r
}

func TestNewRunner_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	claims := mocks.NewMockStageClaimRepository(ctrl)
	q := newFakeQueue()

	_, err := NewRunner(RunnerOptions{Handler: &fakeHandler{stage: model.TaskTypeFetch}, Claims: claims})
	require.Error(t, err)
	_, err = NewRunner(RunnerOptions{Queue: q, Claims: claims})
	require.Error(t, err)
	_, err = NewRunner(RunnerOptions{Queue: q, Handler: &fakeHandler{stage: model.TaskTypeFetch}})
	require.Error(t, err)
	_, err = NewRunner(RunnerOptions{Queue: q, Handler: &fakeHandler{stage: "bogus"}, Claims: claims})
	require.Error(t, err)

	r, err := NewRunner(RunnerOptions{Queue: q, Handler: &fakeHandler{stage: model.TaskTypeMatch}, Claims: claims})
	require.NoError(t, err)
	assert.Equal(t, model.TaskTypeMatch, r.Stage())
	assert.Equal(t, 90*time.Second, r.lease)
	assert.Equal(t, 30*time.Second, r.heartbeat)
	assert.Equal(t, 1, r.workers)
}

func TestProcessTask_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	claims := mocks.NewMockStageClaimRepository(ctrl)
	q := newFakeQueue()
	h := &fakeHandler{stage: model.TaskTypeFetch}
	r := newTestRunner(t, q, h, claims)

	task := fetchTask("t1")
	claims.EXPECT().Claim(gomock.Any(), model.StageClaim{
		JobID: "job-t1", Stage: model.TaskTypeFetch, Holder: "t1", Lease: 30 * time.Second,
	}).Return(model.ClaimAcquired, nil)
	claims.EXPECT().MarkDone(gomock.Any(), "job-t1", model.TaskTypeFetch).Return(nil)

	r.processTask(context.Background(), task)

	assert.Equal(t, 1, h.calls)
	assert.Equal(t, []string{"t1"}, q.completed)
	assert.Empty(t, q.failures)
}

func TestProcessTask_HandlerErrorReleasesClaim(t *testing.T) {
	ctrl := gomock.NewController(t)
	claims := mocks.NewMockStageClaimRepository(ctrl)
	q := newFakeQueue()
	h := &fakeHandler{stage: model.TaskTypeFetch, fn: func(context.Context, *model.Task) error {
		return errors.New("source down")
	}}
	r := newTestRunner(t, q, h, claims)

	claims.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(model.ClaimAcquired, nil)
	claims.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil)

	r.processTask(context.Background(), fetchTask("t1"))

	require.Len(t, q.failures, 1)
	assert.Equal(t, "source down", q.failures[0].msg)
	assert.Equal(t, "fetch_runner", q.failures[0].details.Metadata["component"])
	assert.Equal(t, "1", q.failures[0].details.Metadata["attempt"])
	assert.NotEmpty(t, q.failures[0].details.ErrorClass)
	assert.Empty(t, q.completed)
}

func TestProcessTask_DoneClaimAcksWithoutRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	claims := mocks.NewMockStageClaimRepository(ctrl)
	q := newFakeQueue()
	h := &fakeHandler{stage: model.TaskTypeFetch}
	r := newTestRunner(t, q, h, claims)

	claims.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(model.ClaimDone, nil)

	r.processTask(context.Background(), fetchTask("t1"))

	assert.Zero(t, h.calls)
	assert.Equal(t, []string{"t1"}, q.completed)
}

func TestProcessTask_BusyClaimDefersDelivery(t *testing.T) {
	ctrl := gomock.NewController(t)
	claims := mocks.NewMockStageClaimRepository(ctrl)
	q := newFakeQueue()
	h := &fakeHandler{stage: model.TaskTypeFetch}
	r := newTestRunner(t, q, h, claims)

	claims.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(model.ClaimBusy, nil)

	r.processTask(context.Background(), fetchTask("t1"))

	assert.Zero(t, h.calls)
	require.Len(t, q.failures, 1)
	assert.Equal(t, ErrStageBusy.Error(), q.failures[0].msg)
}

func TestProcessTask_ClaimError(t *testing.T) {
	ctrl := gomock.NewController(t)
	claims := mocks.NewMockStageClaimRepository(ctrl)
	q := newFakeQueue()
	h := &fakeHandler{stage: model.TaskTypeFetch}
	r := newTestRunner(t, q, h, claims)

	claims.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(model.ClaimState(""), errors.New("db down"))

	r.processTask(context.Background(), fetchTask("t1"))

	assert.Zero(t, h.calls)
	require.Len(t, q.failures, 1)
	assert.Contains(t, q.failures[0].msg, "claim stage")
}

func TestProcessTask_PanicBecomesFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	claims := mocks.NewMockStageClaimRepository(ctrl)
	q := newFakeQueue()
	h := &fakeHandler{stage: model.TaskTypeFetch, fn: func(context.Context, *model.Task) error {
		panic("nil map")
	}}
	r := newTestRunner(t, q, h, claims)

	claims.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(model.ClaimAcquired, nil)
	claims.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil)

	r.processTask(context.Background(), fetchTask("t1"))

	require.Len(t, q.failures, 1)
	assert.Equal(t, "panic: nil map", q.failures[0].msg)
}

func TestProcessTask_LostLeaseCancelsHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	claims := mocks.NewMockStageClaimRepository(ctrl)
	q := newFakeQueue()
	q.heartbeat = func(string) (bool, error) { return false, nil }
	h := &fakeHandler{stage: model.TaskTypeFetch, fn: func(ctx context.Context, _ *model.Task) error {
		<-ctx.Done()
		return context.Cause(ctx)
	}}
	r, err := NewRunner(RunnerOptions{
		Queue: q, Handler: h, Claims: claims, Lease: time.Second, Heartbeat: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	claims.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(model.ClaimAcquired, nil)
	claims.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil)

	r.processTask(context.Background(), fetchTask("t1"))

	require.Len(t, q.failures, 1)
	assert.Equal(t, errLeaseLost.Error(), q.failures[0].msg)
}

func TestRun_ProcessesUntilCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	claims := mocks.NewMockStageClaimRepository(ctrl)
	q := newFakeQueue(fetchTask("t1"), fetchTask("t2"))
	h := &fakeHandler{stage: model.TaskTypeFetch}
	r, err := NewRunner(RunnerOptions{Queue: q, Handler: h, Claims: claims, Concurrency: 2})
	require.NoError(t, err)

	claims.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(model.ClaimAcquired, nil).Times(2)
	claims.EXPECT().MarkDone(gomock.Any(), gomock.Any(), model.TaskTypeFetch).Return(nil).Times(2)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	for range 2 {
		select {
		case <-q.done:
		case <-time.After(2 * time.Second):
			t.Fatal("tasks were not processed")
		}
	}
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.ElementsMatch(t, []string{"t1", "t2"}, q.completed)
}

func TestRun_ReserveErrorStopsRunner(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := newFakeQueue()
	q.reserveErr = errors.New("connection refused")
	r := newTestRunner(t, q, &fakeHandler{stage: model.TaskTypeCleanup}, mocks.NewMockStageClaimRepository(ctrl))

	err := r.Run(context.Background())
	require.ErrorContains(t, err, "reserve next cleanup task")
}

func TestRun_ClosedNotifyChannelStops(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := newFakeQueue()
	close(q.notify)
	r := newTestRunner(t, q, &fakeHandler{stage: model.TaskTypeMatch}, mocks.NewMockStageClaimRepository(ctrl))

	require.NoError(t, r.Run(context.Background()))
}
