package queue

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// Option configures a queue during construction.
type Option func(*TaskQueue)

// WithName sets the queue name used in log lines and stats. Default "default".
func WithName(name string) Option {
	return func(q *TaskQueue) {
		if name != "" {
			q.name = name
		}
	}
}

// WithMode selects the dequeue discipline. Default ModeFIFO.
func WithMode(mode Mode) Option {
	return func(q *TaskQueue) {
		q.mode = mode
	}
}

// WithWorkers sets the worker pool size. Default 4.
func WithWorkers(n int) Option {
	return func(q *TaskQueue) {
		q.workers = n
	}
}

// WithTickInterval sets the scheduler loop tick. Default 100ms.
func WithTickInterval(d time.Duration) Option {
	return func(q *TaskQueue) {
		q.tick = d
	}
}

// WithLogger injects the logger used for lifecycle events. Default
// slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(q *TaskQueue) {
		if log != nil {
			q.log = log
		}
	}
}

// WithRetryPolicy replaces the default exponential retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(q *TaskQueue) {
		if policy != nil {
			q.retry = policy
		}
	}
}

// WithSnapshotFile enables best-effort metadata persistence to the given JSON
// file. Persistence is disabled by default.
func WithSnapshotFile(path string) Option {
	return func(q *TaskQueue) {
		q.snapshotFile = path
	}
}

// WithBreaker attaches a circuit breaker that every execution flows through.
// An open breaker fails attempts fast with a permanent error. Disabled by
// default.
func WithBreaker(settings gobreaker.Settings) Option {
	return func(q *TaskQueue) {
		q.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// WithEventBufferSize sets the per-subscriber event channel buffer. Default 16.
func WithEventBufferSize(n int) Option {
	return func(q *TaskQueue) {
		q.eventBufferSize = n
	}
}

// SubmitOption configures a single task at submission time.
type SubmitOption func(*Task)

// WithArgs sets the positional arguments handed to the invocable's Execute.
func WithArgs(args ...any) SubmitOption {
	return func(t *Task) {
		t.args = args
	}
}

// WithPriority sets the task priority; a lower value dequeues first in
// priority mode. Default PriorityCritical (0).
func WithPriority(p Priority) SubmitOption {
	return func(t *Task) {
		t.Priority = p
	}
}

// WithMaxRetries sets how many times a failed task is re-attempted. Default 3.
// Negative values are treated as zero.
func WithMaxRetries(n int) SubmitOption {
	return func(t *Task) {
		t.MaxRetries = max(n, 0)
	}
}

// WithTaskRetryDelay sets the base delay between attempts. Default 1s.
func WithTaskRetryDelay(d time.Duration) SubmitOption {
	return func(t *Task) {
		if d > 0 {
			t.RetryDelay = d
		}
	}
}

// WithScheduledAt gates the task until the given absolute time.
func WithScheduledAt(at time.Time) SubmitOption {
	return func(t *Task) {
		t.ScheduledAt = &at
	}
}

// WithDelay gates the task for the given duration from now.
func WithDelay(d time.Duration) SubmitOption {
	return func(t *Task) {
		at := time.Now().Add(d)
		t.ScheduledAt = &at
	}
}

// WithDependencies gates the task until every listed task has completed
// successfully. Unknown ids are allowed and simply keep the task blocked.
func WithDependencies(ids ...uuid.UUID) SubmitOption {
	return func(t *Task) {
		t.Dependencies = append(t.Dependencies, ids...)
	}
}

// WithMetadata attaches an opaque key/value bag to the task.
func WithMetadata(meta map[string]any) SubmitOption {
	return func(t *Task) {
		if t.Metadata == nil {
			t.Metadata = make(map[string]any, len(meta))
		}
		for k, v := range meta {
			t.Metadata[k] = v
		}
	}
}

// WithProgress registers an observer for the task's progress updates.
func WithProgress(fn ProgressFunc) SubmitOption {
	return func(t *Task) {
		t.progress = fn
	}
}

// withScheduleName tags a periodic instance with the schedule it came from.
func withScheduleName(name string) SubmitOption {
	return func(t *Task) {
		if t.Metadata == nil {
			t.Metadata = make(map[string]any, 1)
		}
		t.Metadata["schedule"] = name
	}
}
