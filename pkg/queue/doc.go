// Package queue provides an in-process task scheduling and execution engine:
// a priority/FIFO work queue drained by a bounded worker pool, with
// dependency-gated readiness, delayed execution, retry with backoff, periodic
// schedules, and best-effort metadata persistence.
//
// Work items are opaque Invocable values; the engine knows nothing about the
// caller's domain. Everything runs inside the calling process: there is no
// broker, no network protocol, and no storage beyond an optional JSON
// metadata snapshot.
//
// # Architecture
//
//  1. Submit assigns an id, validates dependencies (cyclic submissions are
//     rejected), and places the task in the ready queue, the scheduled set
//     (time-gated), or leaves it blocked until its dependencies complete.
//  2. A fixed pool of workers drains the ready queue, parking on a wake
//     channel when it is empty. Retries happen in place: the same worker
//     blocks through the backoff delay and re-executes.
//  3. A scheduler goroutine ticks every ~100ms, promoting due scheduled
//     tasks and materializing instances of registered periodic schedules.
//  4. Every status mutation goes through a transition chart, so illegal
//     lifecycle edges are structurally impossible.
//  5. Completion triggers dependents immediately through the dependency
//     graph; waiters block on per-task futures rather than polling.
//
// # Usage
//
// Basic one-time task:
//
//	q, err := queue.New(queue.WithWorkers(8), queue.WithMode(queue.ModePriority))
//	if err != nil {
//	    return err
//	}
//	defer q.Stop(context.Background())
//
//	id, err := q.Submit(ctx, queue.Func(func(ctx context.Context) (any, error) {
//	    return fetchReport(ctx)
//	}), queue.WithPriority(queue.PriorityHigh), queue.WithMaxRetries(5))
//	if err != nil {
//	    return err
//	}
//
//	result, err := q.WaitForTask(ctx, id)
//
// Dependent and delayed work:
//
//	first, _ := q.Submit(ctx, extract)
//	_, _ = q.Submit(ctx, transform, queue.WithDependencies(first))
//	_, _ = q.Submit(ctx, cleanup, queue.WithDelay(10*time.Minute))
//
// Periodic job:
//
//	_ = q.RegisterPeriodic("cleanup_sessions", queue.DailyAt(2, 0), cleanup,
//	    queue.WithPriority(queue.PriorityLow))
//
// # Error Handling
//
// Package-level sentinel errors (ErrTaskNotFound, ErrDependencyCycle,
// ErrWaitTimeout, ...) signal invariant violations and can be checked with
// errors.Is. Execution errors never escape to the submitter: after the retry
// budget is exhausted they are recorded in the task's Result.
//
// # Examples
//
// Additional runnable examples live in the package's example_test.go files.
package queue
