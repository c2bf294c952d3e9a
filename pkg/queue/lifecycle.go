package queue

import (
	"context"

	"github.com/dmitrymomot/taskkit/pkg/statemachine"
)

// Lifecycle events. Each status change in the engine goes through the chart;
// an unknown edge surfaces as a transition error instead of silently
// corrupting a task record.
const (
	eventPromote  = statemachine.StringEvent("promote")
	eventStart    = statemachine.StringEvent("start")
	eventComplete = statemachine.StringEvent("complete")
	eventRetry    = statemachine.StringEvent("retry")
	eventResume   = statemachine.StringEvent("resume")
	eventFail     = statemachine.StringEvent("fail")
	eventCancel   = statemachine.StringEvent("cancel")
)

// newStatusChart builds the task lifecycle chart.
//
//	scheduled --promote--> pending
//	scheduled --cancel---> cancelled
//	pending   --start----> running
//	pending   --cancel---> cancelled
//	running   --complete-> completed
//	running   --retry----> retrying
//	running   --fail-----> failed
//	retrying  --resume---> running
//	retrying  --fail-----> failed
//	retrying  --cancel---> cancelled
func newStatusChart() *statemachine.Chart {
	return statemachine.MustNew(
		statemachine.WithTransitions([]statemachine.TransitionDef{
			{From: StatusScheduled, To: StatusPending, Event: eventPromote},
			{From: StatusScheduled, To: StatusCancelled, Event: eventCancel},
			{From: StatusPending, To: StatusRunning, Event: eventStart},
			{From: StatusPending, To: StatusCancelled, Event: eventCancel},
			{From: StatusRunning, To: StatusCompleted, Event: eventComplete},
			{From: StatusRunning, To: StatusRetrying, Event: eventRetry},
			{From: StatusRunning, To: StatusFailed, Event: eventFail},
			{From: StatusRetrying, To: StatusRunning, Event: eventResume},
			{From: StatusRetrying, To: StatusFailed, Event: eventFail},
			{From: StatusRetrying, To: StatusCancelled, Event: eventCancel},
		}),
	)
}

// transition fires event against the task's current status and applies the
// resulting status to the task. Caller must hold the queue mutex.
func (q *TaskQueue) transition(ctx context.Context, task *Task, event statemachine.Event) error {
	next, err := q.chart.Fire(ctx, task.Status, event, task)
	if err != nil {
		return err
	}
	task.Status = next.(Status)
	return nil
}
