package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskkit/pkg/queue"
)

func TestRetry(t *testing.T) {
	t.Parallel()

	t.Run("fail twice then succeed", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		var attempts atomic.Int32
		id, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
			if attempts.Add(1) < 3 {
				return nil, errors.New("transient")
			}
			return "done", nil
		}),
			queue.WithMaxRetries(2),
			queue.WithTaskRetryDelay(5*time.Millisecond),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		result, err := q.WaitForTask(ctx, id)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "done", result.Value)
		assert.Equal(t, int32(3), attempts.Load())

		status, err := q.TaskStatus(id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusCompleted, status)
	})

	t.Run("attempts bounded by retry budget", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		var attempts atomic.Int32
		boom := errors.New("always broken")
		id, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
			attempts.Add(1)
			return nil, boom
		}),
			queue.WithMaxRetries(2),
			queue.WithTaskRetryDelay(5*time.Millisecond),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		result, err := q.WaitForTask(ctx, id)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, boom)
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("permanent errors are never retried", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		var attempts atomic.Int32
		boom := errors.New("not recoverable")
		id, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
			attempts.Add(1)
			return nil, queue.Permanent(boom)
		}),
			queue.WithMaxRetries(5),
			queue.WithTaskRetryDelay(5*time.Millisecond),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		result, err := q.WaitForTask(ctx, id)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, boom)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("zero retries fail on first error", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		var attempts atomic.Int32
		id, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
			attempts.Add(1)
			return nil, errors.New("nope")
		}), queue.WithMaxRetries(0))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		result, err := q.WaitForTask(ctx, id)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("panicking invocable fails the attempt and retries", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		var attempts atomic.Int32
		id, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
			attempts.Add(1)
			panic("kaboom")
		}),
			queue.WithMaxRetries(1),
			queue.WithTaskRetryDelay(5*time.Millisecond),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		result, err := q.WaitForTask(ctx, id)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, queue.ErrTaskPanicked)
		assert.Equal(t, int32(2), attempts.Load())

		// The worker survived the panic and keeps serving tasks
		next, err := q.Submit(context.Background(), noop())
		require.NoError(t, err)
		waitStatus(t, q, next, queue.StatusCompleted)
	})
}

func TestRetryEventSequence(t *testing.T) {
	t.Parallel()

	q, err := queue.New()
	require.NoError(t, err)
	defer func() { _ = q.Stop(context.Background()) }()
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub := q.Subscribe(ctx)

	var attempts atomic.Int32
	id, err := q.Submit(ctx, queue.Func(func(ctx context.Context) (any, error) {
		if attempts.Add(1) < 2 {
			return nil, errors.New("flaky")
		}
		return nil, nil
	}),
		queue.WithMaxRetries(2),
		queue.WithTaskRetryDelay(5*time.Millisecond),
	)
	require.NoError(t, err)

	var statuses []queue.Status
	for event := range sub.Receive() {
		if event.TaskID != id || event.Kind != queue.EventStatus {
			continue
		}
		statuses = append(statuses, event.Status)
		if event.Status == queue.StatusCompleted {
			break
		}
	}

	assert.Equal(t, []queue.Status{
		queue.StatusPending,
		queue.StatusRunning,
		queue.StatusRetrying,
		queue.StatusRunning,
		queue.StatusCompleted,
	}, statuses)
}

func TestRetryPolicies(t *testing.T) {
	t.Parallel()

	task := &queue.Task{RetryDelay: 100 * time.Millisecond}

	t.Run("exponential starts at the task delay", func(t *testing.T) {
		t.Parallel()

		b := queue.ExponentialRetryPolicy{}.BackOff(task)
		assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
		assert.Greater(t, b.NextBackOff(), 100*time.Millisecond)
	})

	t.Run("exponential honors the interval cap", func(t *testing.T) {
		t.Parallel()

		b := queue.ExponentialRetryPolicy{MaxInterval: 150 * time.Millisecond}.BackOff(task)
		for n := 0; n < 10; n++ {
			assert.LessOrEqual(t, b.NextBackOff(), 150*time.Millisecond)
		}
	})

	t.Run("constant never grows", func(t *testing.T) {
		t.Parallel()

		b := queue.ConstantRetryPolicy{}.BackOff(task)
		for n := 0; n < 5; n++ {
			assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
		}
	})
}

func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	q, err := queue.New(
		queue.WithWorkers(1),
		queue.WithBreaker(gobreaker.Settings{
			Name:    "tasks",
			Timeout: time.Hour,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 1
			},
		}),
	)
	require.NoError(t, err)
	defer func() { _ = q.Stop(context.Background()) }()

	// Trip the breaker with a failing task
	tripID, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
		return nil, errors.New("backend down")
	}), queue.WithMaxRetries(0))
	require.NoError(t, err)
	waitStatus(t, q, tripID, queue.StatusFailed)

	// The open breaker rejects the next task immediately, bypassing retries
	var attempts atomic.Int32
	id, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
		attempts.Add(1)
		return nil, nil
	}),
		queue.WithMaxRetries(5),
		queue.WithTaskRetryDelay(5*time.Millisecond),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := q.WaitForTask(ctx, id)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, queue.ErrCircuitOpen)
	assert.Equal(t, int32(0), attempts.Load())
}
