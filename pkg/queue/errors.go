package queue

import "errors"

// Package-specific errors
var (
	// ErrNilWork is returned when a task is submitted without an invocable
	ErrNilWork = errors.New("task work function is nil")

	// ErrTaskNotFound is returned when the referenced task id is unknown
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotCancellable is returned when cancelling a task that already started or finished
	ErrTaskNotCancellable = errors.New("task cannot be cancelled in its current status")

	// ErrTaskNotDone is returned when a result is requested before the task reached a terminal status
	ErrTaskNotDone = errors.New("task has not finished yet")

	// ErrTaskCancelled is recorded as the result error of a cancelled task
	ErrTaskCancelled = errors.New("task cancelled")

	// ErrTaskPanicked is recorded when a task's work function panicked
	ErrTaskPanicked = errors.New("task panicked")

	// ErrWaitTimeout is returned when WaitForTask exceeds its timeout
	ErrWaitTimeout = errors.New("timed out waiting for task")

	// ErrDependencyCycle is returned when a submission would create a dependency cycle
	ErrDependencyCycle = errors.New("task dependencies form a cycle")

	// ErrNotRunning is returned when an operation requires a started queue
	ErrNotRunning = errors.New("queue is not running")

	// ErrInvalidConfig is returned when queue construction options are invalid
	ErrInvalidConfig = errors.New("invalid queue configuration")

	// ErrScheduleExists is returned when registering a periodic schedule under a taken name
	ErrScheduleExists = errors.New("schedule already registered")

	// ErrScheduleNotFound is returned when removing an unknown periodic schedule
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrNilSchedule is returned when a periodic registration has no schedule
	ErrNilSchedule = errors.New("schedule is nil")

	// ErrCircuitOpen is recorded when the failure breaker rejects an execution
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrUnknownMode is returned when parsing an unrecognized queue mode
	ErrUnknownMode = errors.New("unknown queue mode")

	// ErrUnknownStatus is returned when parsing an unrecognized task status
	ErrUnknownStatus = errors.New("unknown task status")
)
