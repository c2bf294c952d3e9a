package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/dmitrymomot/taskkit/pkg/logger"
)

// workerLoop drains the ready queue until the execution context is cancelled
// or, after a graceful stop, the queue runs dry. Workers park on the wake
// channel when there is nothing to do; spurious wakeups are harmless.
func (q *TaskQueue) workerLoop(ctx context.Context, drain <-chan struct{}) {
	for {
		task := q.nextTask()
		if task == nil {
			select {
			case <-ctx.Done():
				return
			case <-drain:
				if q.readyLen() == 0 {
					return
				}
			case <-q.wake:
			}
			continue
		}
		q.executeTask(ctx, task)
	}
}

// nextTask pops ready ids until it finds a task still eligible to run.
// Tasks cancelled while queued are skipped here rather than eagerly removed
// from the ready structure.
func (q *TaskQueue) nextTask() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		id, ok := q.ready.Pop()
		if !ok {
			return nil
		}
		task, exists := q.tasks[id]
		if !exists || task.Status != StatusPending {
			continue
		}
		return task
	}
}

func (q *TaskQueue) readyLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready.Len()
}

// executeTask runs a single task through its full attempt cycle: the retry
// loop keeps the same worker blocked through backoff sleeps, so retry state
// never leaves this frame. The sleeps are context-aware and interrupted by
// StopNow.
func (q *TaskQueue) executeTask(ctx context.Context, task *Task) {
	q.mu.Lock()
	// Pending may have flipped to Cancelled between dequeue and here
	if task.Status != StatusPending {
		q.mu.Unlock()
		return
	}
	if err := q.transition(ctx, task, eventStart); err != nil {
		q.mu.Unlock()
		q.log.Error("task start transition failed",
			logger.Queue(q.name), logger.TaskID(task.ID), logger.Error(err))
		return
	}
	now := time.Now()
	task.StartedAt = &now
	task.Attempts = 0
	q.mu.Unlock()
	q.publishStatus(task.ID, StatusRunning, nil)

	start := time.Now()
	var value any

	operation := func() error {
		q.mu.Lock()
		resumed := task.Status == StatusRetrying
		if resumed {
			if err := q.transition(ctx, task, eventResume); err != nil {
				// StopNow swept the task to Cancelled during the backoff sleep
				q.mu.Unlock()
				return backoff.Permanent(err)
			}
		}
		task.Attempts++
		attempt := task.Attempts
		q.mu.Unlock()
		if resumed {
			q.publishStatus(task.ID, StatusRunning, nil)
		}

		result, err := q.invoke(ctx, task)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			q.log.Warn("task attempt failed",
				logger.Queue(q.name), logger.TaskID(task.ID),
				logger.Attempt(attempt), logger.MaxAttempts(task.MaxRetries+1),
				logger.Error(err))
			return err
		}
		value = result
		return nil
	}

	notify := func(err error, delay time.Duration) {
		q.mu.Lock()
		terr := q.transition(ctx, task, eventRetry)
		q.mu.Unlock()
		if terr != nil {
			return
		}
		q.publishStatus(task.ID, StatusRetrying, err)
		q.log.Info("task retrying",
			logger.Queue(q.name), logger.TaskID(task.ID),
			logger.Attempt(task.Attempts), logger.Duration(delay), logger.Error(err))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(q.retry.BackOff(task), uint64(task.MaxRetries)), ctx)

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		q.failTask(task, err, time.Since(start))
		return
	}
	q.completeTask(task, value, time.Since(start))
}

// invoke performs one attempt: panic recovery, optional circuit breaker, and
// the progress reporter wired into the context.
func (q *TaskQueue) invoke(ctx context.Context, task *Task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			q.log.Error("task panicked",
				logger.Queue(q.name), logger.TaskID(task.ID),
				logger.Error(err), slog.String("stack", string(debug.Stack())))
		}
	}()

	ctx = withProgressReporter(ctx, func(p float64) {
		q.reportProgress(task, p)
	})

	if q.breaker == nil {
		return task.work.Execute(ctx, task.args)
	}

	result, err := q.breaker.Execute(func() (any, error) {
		return task.work.Execute(ctx, task.args)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrCircuitOpen, err))
		}
		return nil, err
	}
	return result, nil
}

// completeTask records the successful outcome, triggers dependents, and
// resolves the waiter future. Dependency satisfaction is event-driven: ready
// dependents hit the work queue here, without waiting for a scheduler tick.
func (q *TaskQueue) completeTask(task *Task, value any, elapsed time.Duration) {
	q.mu.Lock()
	if task.Status.Terminal() {
		q.mu.Unlock()
		return
	}
	if err := q.transition(context.Background(), task, eventComplete); err != nil {
		q.mu.Unlock()
		q.log.Error("task complete transition failed",
			logger.Queue(q.name), logger.TaskID(task.ID), logger.Error(err))
		return
	}
	now := time.Now()
	task.CompletedAt = &now
	task.Result = &Result{Success: true, Value: value, Duration: elapsed, CompletedAt: now}
	q.completed[task.ID] = struct{}{}

	woken := 0
	for _, depID := range q.graph.satisfy(task.ID) {
		dependent, ok := q.tasks[depID]
		if !ok || dependent.Status != StatusPending {
			// Scheduled dependents stay time-gated; the scheduler promotes them
			continue
		}
		q.ready.Push(depID, dependent.Priority)
		woken++
	}

	fut := q.futures[task.ID]
	result := *task.Result
	snap := q.snapshotLocked()
	q.mu.Unlock()

	for i := 0; i < woken; i++ {
		q.signalWake()
	}
	q.reportProgress(task, 1.0)
	if fut != nil {
		fut.Resolve(result, nil)
	}
	q.publishStatus(task.ID, StatusCompleted, nil)
	q.writeSnapshot(snap)

	q.log.Info("task completed",
		logger.Queue(q.name), logger.TaskID(task.ID),
		logger.Attempt(task.Attempts), logger.Duration(elapsed))
}

// failTask records a terminally failed attempt cycle. Dependents are not
// triggered; they stay blocked until explicitly cancelled or resubmitted.
func (q *TaskQueue) failTask(task *Task, cause error, elapsed time.Duration) {
	// RetryNotify unwraps Permanent before returning
	q.mu.Lock()
	if task.Status.Terminal() {
		// StopNow already swept this task
		q.mu.Unlock()
		return
	}
	if err := q.transition(context.Background(), task, eventFail); err != nil {
		q.mu.Unlock()
		q.log.Error("task fail transition failed",
			logger.Queue(q.name), logger.TaskID(task.ID), logger.Error(err))
		return
	}
	now := time.Now()
	task.CompletedAt = &now
	task.Result = &Result{Success: false, Err: cause, Duration: elapsed, CompletedAt: now}

	fut := q.futures[task.ID]
	result := *task.Result
	snap := q.snapshotLocked()
	q.mu.Unlock()

	if fut != nil {
		fut.Resolve(result, nil)
	}
	q.publishStatus(task.ID, StatusFailed, cause)
	q.writeSnapshot(snap)

	q.log.Error("task failed",
		logger.Queue(q.name), logger.TaskID(task.ID),
		logger.Attempt(task.Attempts), logger.Duration(elapsed), logger.Error(cause))
}
