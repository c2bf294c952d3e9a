package queue

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskkit/pkg/logger"
)

// schedulerLoop promotes time-gated tasks and fires due periodic schedules on
// a fixed tick. It exits on StopNow (context) and on graceful Stop (drain):
// a draining queue finishes ready work but promotes nothing new.
func (q *TaskQueue) schedulerLoop(ctx context.Context, drain <-chan struct{}) {
	ticker := time.NewTicker(q.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-drain:
			return
		case <-ticker.C:
			q.tickOnce(ctx, time.Now())
		}
	}
}

// tickOnce runs a single scheduler pass. Panics are recovered so one bad tick
// never kills the control plane.
func (q *TaskQueue) tickOnce(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("scheduler tick panicked",
				logger.Queue(q.name), slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	q.promoteDue(ctx, now)
	q.firePeriodic(ctx, now)
}

// promoteDue moves Scheduled tasks whose time has elapsed and whose
// dependencies are satisfied into the ready queue.
func (q *TaskQueue) promoteDue(ctx context.Context, now time.Time) {
	q.mu.Lock()
	var promoted []uuid.UUID
	for id := range q.scheduled {
		task, ok := q.tasks[id]
		if !ok || task.Status != StatusScheduled {
			delete(q.scheduled, id)
			continue
		}
		if task.ScheduledAt != nil && now.Before(*task.ScheduledAt) {
			continue
		}
		if q.graph.blocked(id) {
			continue
		}
		if err := q.transition(ctx, task, eventPromote); err != nil {
			continue
		}
		delete(q.scheduled, id)
		q.ready.Push(id, task.Priority)
		// Under the lock so the Pending event precedes the worker's Running
		q.publishStatus(id, StatusPending, nil)
		promoted = append(promoted, id)
	}
	q.mu.Unlock()

	for _, id := range promoted {
		q.signalWake()
		q.log.Debug("scheduled task promoted", logger.Queue(q.name), logger.TaskID(id))
	}
}
