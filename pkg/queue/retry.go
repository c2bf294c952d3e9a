package queue

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy produces the wait strategy applied between a task's attempts.
// The returned backoff is used for a single task execution and never shared,
// so implementations are free to return stateful backoffs.
type RetryPolicy interface {
	BackOff(task *Task) backoff.BackOff
}

// ExponentialRetryPolicy grows the delay between attempts geometrically,
// starting from the task's retry delay. This is the default policy.
type ExponentialRetryPolicy struct {
	// Multiplier applied after each attempt. Zero means the backoff default.
	Multiplier float64
	// MaxInterval caps the delay between attempts. Zero means no cap beyond
	// the backoff default.
	MaxInterval time.Duration
	// RandomizationFactor jitters each delay. Zero means deterministic delays.
	RandomizationFactor float64
}

func (p ExponentialRetryPolicy) BackOff(task *Task) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = task.RetryDelay
	// The retry budget is attempt-count based, never time based
	b.MaxElapsedTime = 0
	b.RandomizationFactor = p.RandomizationFactor
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.Reset()
	return b
}

// ConstantRetryPolicy waits the task's retry delay between every pair of
// attempts, with no growth and no jitter.
type ConstantRetryPolicy struct{}

func (ConstantRetryPolicy) BackOff(task *Task) backoff.BackOff {
	return backoff.NewConstantBackOff(task.RetryDelay)
}
