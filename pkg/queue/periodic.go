package queue

import (
	"context"
	"time"

	"github.com/dmitrymomot/taskkit/pkg/logger"
)

// periodicEntry is a named recurring submission. The scheduler loop
// materializes a fresh task instance whenever nextRun comes due.
type periodicEntry struct {
	name    string
	sched   Schedule
	work    Invocable
	opts    []SubmitOption
	nextRun time.Time
}

// RegisterPeriodic stores a named recurring submission. Every time the
// schedule comes due, a fresh task instance is submitted with the given
// options plus a "schedule" metadata entry carrying the name. Names are
// unique per queue.
//
// Registration alone does not start the queue; entries fire only while the
// scheduler loop runs.
func (q *TaskQueue) RegisterPeriodic(name string, sched Schedule, work Invocable, opts ...SubmitOption) error {
	if work == nil {
		return ErrNilWork
	}
	if sched == nil {
		return ErrNilSchedule
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.periodic[name]; exists {
		return ErrScheduleExists
	}
	q.periodic[name] = &periodicEntry{
		name:    name,
		sched:   sched,
		work:    work,
		opts:    opts,
		nextRun: sched.Next(time.Now()),
	}

	q.log.Info("periodic schedule registered",
		logger.Queue(q.name), logger.Schedule(name),
		logger.Event(sched.String()))
	return nil
}

// RemovePeriodic deletes a recurring submission by name. Task instances
// already submitted are unaffected.
func (q *TaskQueue) RemovePeriodic(name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.periodic[name]; !exists {
		return ErrScheduleNotFound
	}
	delete(q.periodic, name)

	q.log.Info("periodic schedule removed", logger.Queue(q.name), logger.Schedule(name))
	return nil
}

// firePeriodic submits a task instance for every due entry and advances its
// next-run time. Submission happens outside the lock since Submit takes it.
func (q *TaskQueue) firePeriodic(ctx context.Context, now time.Time) {
	q.mu.Lock()
	var due []*periodicEntry
	for _, entry := range q.periodic {
		if entry.nextRun.After(now) {
			continue
		}
		entry.nextRun = entry.sched.Next(now)
		due = append(due, entry)
	}
	q.mu.Unlock()

	for _, entry := range due {
		opts := append(append([]SubmitOption{}, entry.opts...), withScheduleName(entry.name))
		id, err := q.Submit(ctx, entry.work, opts...)
		if err != nil {
			q.log.Error("periodic submission failed",
				logger.Queue(q.name), logger.Schedule(entry.name), logger.Error(err))
			continue
		}
		q.log.Debug("periodic task submitted",
			logger.Queue(q.name), logger.Schedule(entry.name), logger.TaskID(id))
	}
}
