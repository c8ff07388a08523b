package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/target/jobmatch/internal/domain/model"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter blocks until a task of the given type may be available.
type Waiter interface {
	WaitForNotification(ctx context.Context, taskType model.TaskType) error
}

// Notifier fans one listener per task type out to any number of idle workers.
type Notifier interface {
	Subscribe(taskType model.TaskType) (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configure the default notifier.
type NotifierOptions struct {
	Waiter     Waiter
	WaitWindow time.Duration
	Backoff    time.Duration
}

type stageGroup struct {
	cancel context.CancelFunc
	subs   map[chan struct{}]struct{}
}

// DefaultNotifier runs a wait loop per task type while that type has subscribers.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu     sync.Mutex
	groups map[model.TaskType]*stageGroup
}

// NewNotifier constructs the default notifier.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}
	n := &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: opts.WaitWindow,
		backoff:    opts.Backoff,
		groups:     make(map[model.TaskType]*stageGroup),
	}
	if n.waitWindow <= 0 {
		n.waitWindow = time.Minute
	}
	if n.backoff <= 0 {
		n.backoff = 250 * time.Millisecond
	}
	return n, nil
}

// Subscribe returns a wake-up channel for taskType and a function that releases it.
// Wake-ups coalesce: a subscriber sees at most one pending signal.
func (n *DefaultNotifier) Subscribe(taskType model.TaskType) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	g, ok := n.groups[taskType]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		g = &stageGroup{cancel: cancel, subs: make(map[chan struct{}]struct{})}
		n.groups[taskType] = g
		go n.listen(ctx, taskType)
	}

	ch := make(chan struct{}, 1)
	g.subs[ch] = struct{}{}

	var once sync.Once
	return func() { once.Do(func() { n.unsubscribe(taskType, ch) }) }, ch
}

func (n *DefaultNotifier) unsubscribe(taskType model.TaskType, ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	g, ok := n.groups[taskType]
	if !ok {
		return
	}
	if _, ok := g.subs[ch]; !ok {
		return
	}
	delete(g.subs, ch)
	drainAndClose(ch)
	if len(g.subs) == 0 {
		g.cancel()
		delete(n.groups, taskType)
	}
}

// StopAll cancels every listener and closes every subscriber channel.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for taskType, g := range n.groups {
		g.cancel()
		for ch := range g.subs {
			drainAndClose(ch)
		}
		delete(n.groups, taskType)
	}
}

func (n *DefaultNotifier) listen(ctx context.Context, taskType model.TaskType) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx, taskType)
		cancel()

		// Wake workers on timeouts too so delayed tasks that became due are picked up.
		n.broadcast(taskType)

		if err == nil || ctx.Err() != nil {
			continue
		}
		t := time.NewTimer(n.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (n *DefaultNotifier) broadcast(taskType model.TaskType) {
	n.mu.Lock()
	defer n.mu.Unlock()

	g, ok := n.groups[taskType]
	if !ok {
		return
	}
	for ch := range g.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func drainAndClose(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
	close(ch)
}

var _ Notifier = (*DefaultNotifier)(nil)
