package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/taskkit/pkg/async"
	"github.com/dmitrymomot/taskkit/pkg/broadcast"
	"github.com/dmitrymomot/taskkit/pkg/config"
	"github.com/dmitrymomot/taskkit/pkg/logger"
	"github.com/dmitrymomot/taskkit/pkg/statemachine"
)

// TaskQueue is an in-process task scheduling and execution engine: a
// priority/FIFO work queue drained by a bounded worker pool, with
// dependency-gated readiness, delayed execution, retry with backoff, periodic
// schedules, and best-effort metadata persistence.
//
// A single mutex guards the task table and every queueing structure. User work
// execution, backoff sleeps, and snapshot writes all happen outside the lock,
// so long-running tasks never block unrelated queue operations.
type TaskQueue struct {
	name            string
	mode            Mode
	workers         int
	tick            time.Duration
	log             *slog.Logger
	retry           RetryPolicy
	breaker         *gobreaker.CircuitBreaker
	snapshotFile    string
	eventBufferSize int

	chart  *statemachine.Chart
	events *broadcast.Broadcaster[Event]

	mu        sync.Mutex
	tasks     map[uuid.UUID]*Task
	futures   map[uuid.UUID]*async.Future[Result]
	completed map[uuid.UUID]struct{}
	scheduled map[uuid.UUID]struct{}
	graph     *dependencyGraph
	ready     readyQueue
	periodic  map[string]*periodicEntry

	running  bool
	wake     chan struct{}
	drain    chan struct{}
	execStop context.CancelFunc
	group    *errgroup.Group
}

// New creates a task queue. The zero configuration is a FIFO queue with 4
// workers, a 100ms scheduler tick, exponential retries, and no persistence.
// The queue does not run until Start is called or the first task is submitted.
func New(opts ...Option) (*TaskQueue, error) {
	q := &TaskQueue{
		name:            DefaultQueueName,
		mode:            ModeFIFO,
		workers:         4,
		tick:            100 * time.Millisecond,
		log:             slog.Default(),
		retry:           ExponentialRetryPolicy{},
		eventBufferSize: 16,
		chart:           newStatusChart(),
		tasks:           make(map[uuid.UUID]*Task),
		futures:         make(map[uuid.UUID]*async.Future[Result]),
		completed:       make(map[uuid.UUID]struct{}),
		scheduled:       make(map[uuid.UUID]struct{}),
		graph:           newDependencyGraph(),
		periodic:        make(map[string]*periodicEntry),
	}

	for _, opt := range opts {
		opt(q)
	}

	if _, err := ParseMode(string(q.mode)); err != nil {
		return nil, fmt.Errorf("%w: mode %q", ErrInvalidConfig, q.mode)
	}
	if q.workers < 1 {
		return nil, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, q.workers)
	}
	if q.tick <= 0 {
		return nil, fmt.Errorf("%w: tick interval must be positive, got %s", ErrInvalidConfig, q.tick)
	}
	if q.eventBufferSize < 1 {
		return nil, fmt.Errorf("%w: event buffer size must be positive, got %d", ErrInvalidConfig, q.eventBufferSize)
	}

	q.ready = newReadyQueue(q.mode)
	q.events = broadcast.New[Event](q.eventBufferSize)
	// Buffered to pool size so an enqueue burst wakes every parked worker
	q.wake = make(chan struct{}, q.workers)

	if q.snapshotFile != "" {
		q.restoreSnapshot()
	}

	return q, nil
}

// NewFromEnv creates a task queue configured from TASKQUEUE_* environment
// variables. Explicit options are applied after the environment and win.
func NewFromEnv(opts ...Option) (*TaskQueue, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	envOpts, err := cfg.options()
	if err != nil {
		return nil, err
	}

	return New(append(envOpts, opts...)...)
}

// Submit registers a new task and returns its id. The task becomes Scheduled
// when time-gated, otherwise Pending; a Pending task with no unmet
// dependencies is immediately eligible for a worker. Submitting auto-starts
// the queue.
//
// A submission whose dependencies would close a cycle is rejected with
// ErrDependencyCycle and leaves no state behind.
func (q *TaskQueue) Submit(ctx context.Context, work Invocable, opts ...SubmitOption) (uuid.UUID, error) {
	if work == nil {
		return uuid.Nil, ErrNilWork
	}

	task := &Task{
		ID:         uuid.New(),
		Status:     StatusPending,
		MaxRetries: 3,
		RetryDelay: time.Second,
		CreatedAt:  time.Now(),
		work:       work,
	}
	for _, opt := range opts {
		opt(task)
	}

	now := time.Now()
	timeGated := task.ScheduledAt != nil && task.ScheduledAt.After(now)
	if timeGated {
		task.Status = StatusScheduled
	}

	q.mu.Lock()
	unmet := make([]uuid.UUID, 0, len(task.Dependencies))
	for _, dep := range task.Dependencies {
		if _, done := q.completed[dep]; !done {
			unmet = append(unmet, dep)
		}
	}
	if q.graph.wouldCycle(task.ID, unmet) {
		q.mu.Unlock()
		return uuid.Nil, ErrDependencyCycle
	}

	q.tasks[task.ID] = task
	q.futures[task.ID] = async.NewFuture[Result]()
	q.graph.add(task.ID, unmet)

	enqueued := false
	switch {
	case timeGated:
		q.scheduled[task.ID] = struct{}{}
	case len(unmet) == 0:
		q.ready.Push(task.ID, task.Priority)
		enqueued = true
	}
	needStart := !q.running
	// Published under the lock so subscribers always see the initial status
	// before any worker-produced event for the same task
	q.publishStatus(task.ID, task.Status, nil)
	q.mu.Unlock()

	if needStart {
		if err := q.Start(); err != nil {
			return uuid.Nil, err
		}
	}
	if enqueued {
		q.signalWake()
	}

	q.log.DebugContext(ctx, "task submitted",
		logger.Queue(q.name), logger.TaskID(task.ID), logger.TaskStatus(task.Status))

	return task.ID, nil
}

// Start launches the worker pool and the scheduler loop. It is idempotent.
func (q *TaskQueue) Start() error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = true

	drain := make(chan struct{})
	q.drain = drain

	ctx, cancel := context.WithCancel(context.Background())
	q.execStop = cancel

	g := &errgroup.Group{}
	q.group = g
	workers := q.workers
	q.mu.Unlock()

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			q.workerLoop(ctx, drain)
			return nil
		})
	}
	g.Go(func() error {
		q.schedulerLoop(ctx, drain)
		return nil
	})

	q.log.Info("queue started",
		logger.Queue(q.name), slog.Int("workers", workers), slog.String("mode", string(q.mode)))
	return nil
}

// Stop shuts the queue down gracefully: in-flight and already-ready tasks run
// to completion, bounded by the context's deadline. On deadline expiry the
// remaining work is force-cancelled. Scheduled tasks are left untouched for a
// later Start.
func (q *TaskQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return ErrNotRunning
	}
	q.running = false
	drain := q.drain
	cancel := q.execStop
	group := q.group
	q.mu.Unlock()

	// Closing drain lets workers exit once the ready queue is empty
	close(drain)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		cancel()
		<-done
	}

	q.mu.Lock()
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.writeSnapshot(snap)

	q.log.Info("queue stopped", logger.Queue(q.name))
	return nil
}

// StopNow shuts the queue down immediately: every not-yet-started task
// (ready, blocked, or scheduled) becomes Cancelled, retry backoffs are
// interrupted, and only in-flight attempts are waited for.
func (q *TaskQueue) StopNow() error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return ErrNotRunning
	}
	q.running = false
	drain := q.drain
	cancel := q.execStop
	group := q.group

	type resolved struct {
		id     uuid.UUID
		fut    *async.Future[Result]
		result Result
	}
	var swept []resolved
	now := time.Now()
	for id, task := range q.tasks {
		switch task.Status {
		case StatusPending, StatusScheduled, StatusRetrying:
			if err := q.transition(context.Background(), task, eventCancel); err != nil {
				continue
			}
			at := now
			task.CompletedAt = &at
			task.Result = &Result{Success: false, Err: ErrTaskCancelled, CompletedAt: at}
			delete(q.scheduled, id)
			q.graph.remove(id)
			swept = append(swept, resolved{id: id, fut: q.futures[id], result: *task.Result})
		}
	}
	q.mu.Unlock()

	// Cancelling the execution context interrupts backoff sleeps and signals
	// running invocables; attempts already in flight are still waited for
	cancel()
	close(drain)
	_ = group.Wait()

	for _, r := range swept {
		if r.fut != nil {
			r.fut.Resolve(r.result, nil)
		}
		q.publishStatus(r.id, StatusCancelled, ErrTaskCancelled)
	}

	q.mu.Lock()
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.writeSnapshot(snap)

	q.log.Info("queue stopped immediately",
		logger.Queue(q.name), slog.Int("cancelled", len(swept)))
	return nil
}

// CancelTask cancels a task that has not started yet. It succeeds only while
// the task is Pending or Scheduled; Running and terminal tasks return
// ErrTaskNotCancellable.
func (q *TaskQueue) CancelTask(id uuid.UUID) error {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return ErrTaskNotFound
	}

	switch task.Status {
	case StatusPending, StatusScheduled:
	default:
		q.mu.Unlock()
		return ErrTaskNotCancellable
	}

	if err := q.transition(context.Background(), task, eventCancel); err != nil {
		q.mu.Unlock()
		return err
	}
	now := time.Now()
	task.CompletedAt = &now
	task.Result = &Result{Success: false, Err: ErrTaskCancelled, CompletedAt: now}
	delete(q.scheduled, id)
	q.graph.remove(id)
	fut := q.futures[id]
	result := *task.Result
	snap := q.snapshotLocked()
	q.mu.Unlock()

	if fut != nil {
		fut.Resolve(result, nil)
	}
	q.publishStatus(id, StatusCancelled, ErrTaskCancelled)
	q.writeSnapshot(snap)

	q.log.Debug("task cancelled", logger.Queue(q.name), logger.TaskID(id))
	return nil
}

// TaskStatus returns the task's current lifecycle status.
func (q *TaskQueue) TaskStatus(id uuid.UUID) (Status, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return "", ErrTaskNotFound
	}
	return task.Status, nil
}

// TaskResult returns the outcome of a finished task. A task that has not
// reached a terminal status yields ErrTaskNotDone; a cancelled task yields a
// result carrying ErrTaskCancelled.
func (q *TaskQueue) TaskResult(id uuid.UUID) (Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return Result{}, ErrTaskNotFound
	}
	if !task.Status.Terminal() || task.Result == nil {
		return Result{}, ErrTaskNotDone
	}
	return *task.Result, nil
}

// WaitForTask blocks until the task reaches a terminal status and returns its
// result. The context bounds the wait; on expiry ErrWaitTimeout is returned
// and the task is left untouched. Execution errors are reported inside the
// Result, never through the error return.
func (q *TaskQueue) WaitForTask(ctx context.Context, id uuid.UUID) (Result, error) {
	q.mu.Lock()
	fut, ok := q.futures[id]
	q.mu.Unlock()
	if !ok {
		return Result{}, ErrTaskNotFound
	}

	result, err := fut.AwaitContext(ctx)
	if err != nil {
		return Result{}, errors.Join(ErrWaitTimeout, err)
	}
	return result, nil
}

// Stats returns a point-in-time snapshot of per-status counts, ready-queue
// depth, pool size, and the running flag.
func (q *TaskQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Stats{
		Total:      len(q.tasks),
		QueueDepth: q.ready.Len(),
		Workers:    q.workers,
		IsRunning:  q.running,
	}
	for _, task := range q.tasks {
		switch task.Status {
		case StatusPending:
			stats.Pending++
		case StatusScheduled:
			stats.Scheduled++
		case StatusRunning:
			stats.Running++
		case StatusRetrying:
			stats.Retrying++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// ClearCompleted evicts every terminal task from the table and returns how
// many were removed. The completed-id set is kept so dependency checks and
// persisted history survive the eviction.
func (q *TaskQueue) ClearCompleted() int {
	q.mu.Lock()
	removed := 0
	for id, task := range q.tasks {
		if task.Status.Terminal() {
			delete(q.tasks, id)
			delete(q.futures, id)
			removed++
		}
	}
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.writeSnapshot(snap)

	if removed > 0 {
		q.log.Debug("cleared completed tasks",
			logger.Queue(q.name), slog.Int("removed", removed))
	}
	return removed
}

// Subscribe returns a live stream of lifecycle and progress events. The
// subscription ends when ctx is cancelled; slow subscribers lose events
// rather than blocking the engine.
func (q *TaskQueue) Subscribe(ctx context.Context) *broadcast.Subscription[Event] {
	return q.events.Subscribe(ctx)
}

// Close releases the event stream. It does not stop the queue; call Stop or
// StopNow first.
func (q *TaskQueue) Close() error {
	return q.events.Close()
}

// signalWake nudges one parked worker. Dropping the signal when the buffer is
// full is safe: a full buffer means every worker already has a pending wakeup.
func (q *TaskQueue) signalWake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *TaskQueue) publishStatus(id uuid.UUID, status Status, err error) {
	_ = q.events.Broadcast(Event{
		TaskID: id,
		Kind:   EventStatus,
		Status: status,
		Err:    err,
		At:     time.Now(),
	})
}
