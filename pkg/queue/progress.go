package queue

import (
	"context"
	"time"

	"github.com/dmitrymomot/taskkit/pkg/logger"
)

type progressKey struct{}

// withProgressReporter wires the task's reporter into the execution context
// handed to the invocable.
func withProgressReporter(ctx context.Context, report func(float64)) context.Context {
	return context.WithValue(ctx, progressKey{}, report)
}

// Progress reports completion of the currently running task from inside its
// invocable. The fraction is clamped to [0.0, 1.0]. Calling it outside a task
// execution is a no-op.
func Progress(ctx context.Context, fraction float64) {
	report, ok := ctx.Value(progressKey{}).(func(float64))
	if !ok {
		return
	}
	report(fraction)
}

// reportProgress clamps the fraction, invokes the task's observer, and
// publishes a progress event. Observer panics are contained here.
func (q *TaskQueue) reportProgress(task *Task, fraction float64) {
	fraction = min(max(fraction, 0), 1)

	if task.progress != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					q.log.Error("progress callback panicked",
						logger.Queue(q.name), logger.TaskID(task.ID))
				}
			}()
			task.progress(task.ID, fraction)
		}()
	}

	_ = q.events.Broadcast(Event{
		TaskID:   task.ID,
		Kind:     EventProgress,
		Progress: fraction,
		At:       time.Now(),
	})
}
