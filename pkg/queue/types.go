package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the default queue name used when no name is specified
const DefaultQueueName = "default"

// Status represents the lifecycle status of a task
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRetrying  Status = "retrying"
)

// Name implements statemachine.State so the status chart can validate
// transitions directly on Status values.
func (s Status) Name() string {
	return string(s)
}

// Terminal reports whether no further transitions can occur from this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts a string into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusScheduled, StatusRunning, StatusCompleted,
		StatusFailed, StatusCancelled, StatusRetrying:
		return Status(s), nil
	}
	return "", ErrUnknownStatus
}

// Mode represents the ordering discipline of the ready queue
type Mode string

const (
	// ModeFIFO dequeues tasks in submission order
	ModeFIFO Mode = "fifo"
	// ModePriority dequeues tasks by ascending priority value, FIFO within equal priority
	ModePriority Mode = "priority"
)

// ParseMode converts a string into a Mode, rejecting unknown values.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFIFO, ModePriority:
		return Mode(s), nil
	}
	return "", ErrUnknownMode
}

// Priority orders tasks in priority mode; a lower value dequeues first
type Priority int

// Named priority levels. The zero value is the most urgent, matching the
// lower-is-first ordering rule.
const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 1
	PriorityNormal   Priority = 5
	PriorityLow      Priority = 10
)

// Task represents a schedulable unit of work. Exported fields are metadata
// snapshots; the invocable itself is owned exclusively by the queue and never
// exposed or serialized.
type Task struct {
	ID           uuid.UUID      `json:"id"`
	Priority     Priority       `json:"priority"`
	Status       Status         `json:"status"`
	MaxRetries   int            `json:"max_retries"`
	Attempts     int            `json:"attempts"`
	RetryDelay   time.Duration  `json:"retry_delay"`
	ScheduledAt  *time.Time     `json:"scheduled_at,omitempty"`
	Dependencies []uuid.UUID    `json:"dependencies,omitempty"`
	Result       *Result        `json:"result,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	work     Invocable
	args     []any
	progress ProgressFunc
}

// Result records the outcome of a task execution. For a failed task Err holds
// the last attempt's error; it is surfaced only here and never re-raised to
// the submitter.
type Result struct {
	Success     bool          `json:"success"`
	Value       any           `json:"-"`
	Err         error         `json:"-"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Stats aggregates per-status task counts and queue runtime information.
type Stats struct {
	Total      int  `json:"total"`
	Pending    int  `json:"pending"`
	Scheduled  int  `json:"scheduled"`
	Running    int  `json:"running"`
	Retrying   int  `json:"retrying"`
	Completed  int  `json:"completed"`
	Failed     int  `json:"failed"`
	Cancelled  int  `json:"cancelled"`
	QueueDepth int  `json:"queue_depth"`
	Workers    int  `json:"workers"`
	IsRunning  bool `json:"is_running"`
}

// EventKind distinguishes lifecycle events from progress updates
type EventKind string

const (
	EventStatus   EventKind = "status"
	EventProgress EventKind = "progress"
)

// Event is published to subscribers on every status transition and progress
// update. Delivery is best-effort: slow subscribers lose events rather than
// blocking the engine.
type Event struct {
	TaskID   uuid.UUID `json:"task_id"`
	Kind     EventKind `json:"kind"`
	Status   Status    `json:"status,omitempty"`
	Progress float64   `json:"progress,omitempty"`
	Err      error     `json:"-"`
	At       time.Time `json:"at"`
}
