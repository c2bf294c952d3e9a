package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskkit/pkg/queue"
)

func noop() queue.Invocable {
	return queue.Func(func(ctx context.Context) (any, error) {
		return nil, nil
	})
}

// blocker returns an invocable that parks until release is closed, honoring
// context cancellation.
func blocker(release <-chan struct{}) queue.Invocable {
	return queue.Func(func(ctx context.Context) (any, error) {
		select {
		case <-release:
			return "released", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func waitStatus(t *testing.T, q *queue.TaskQueue, id uuid.UUID, want queue.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		status, err := q.TaskStatus(id)
		return err == nil && status == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	t.Run("executes submitted work", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		id, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
			return 42, nil
		}))
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, id)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		result, err := q.WaitForTask(ctx, id)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 42, result.Value)
		assert.NoError(t, result.Err)
	})

	t.Run("passes arguments to the invocable", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		id, err := q.Submit(context.Background(),
			queue.FuncArgs(func(ctx context.Context, args []any) (any, error) {
				return args[0].(int) + args[1].(int), nil
			}),
			queue.WithArgs(2, 3),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		result, err := q.WaitForTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 5, result.Value)
	})

	t.Run("nil work rejected", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)

		_, err = q.Submit(context.Background(), nil)
		assert.ErrorIs(t, err, queue.ErrNilWork)
	})

	t.Run("metadata is preserved", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		id, err := q.Submit(context.Background(), noop(),
			queue.WithMetadata(map[string]any{"source": "api"}))
		require.NoError(t, err)

		status, err := q.TaskStatus(id)
		require.NoError(t, err)
		assert.Contains(t, []queue.Status{queue.StatusPending, queue.StatusRunning, queue.StatusCompleted}, status)
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid workers", func(t *testing.T) {
		t.Parallel()
		_, err := queue.New(queue.WithWorkers(0))
		assert.ErrorIs(t, err, queue.ErrInvalidConfig)
	})

	t.Run("rejects invalid mode", func(t *testing.T) {
		t.Parallel()
		_, err := queue.New(queue.WithMode(queue.Mode("lifo")))
		assert.ErrorIs(t, err, queue.ErrInvalidConfig)
	})

	t.Run("rejects invalid tick", func(t *testing.T) {
		t.Parallel()
		_, err := queue.New(queue.WithTickInterval(0))
		assert.ErrorIs(t, err, queue.ErrInvalidConfig)
	})
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("TASKQUEUE_MODE", "priority")
	t.Setenv("TASKQUEUE_WORKERS", "2")
	t.Setenv("TASKQUEUE_NAME", "env-queue")

	q, err := queue.NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2, q.Stats().Workers)

	t.Run("explicit options win", func(t *testing.T) {
		q, err := queue.NewFromEnv(queue.WithWorkers(7))
		require.NoError(t, err)
		assert.Equal(t, 7, q.Stats().Workers)
	})

	t.Run("invalid mode fails", func(t *testing.T) {
		t.Setenv("TASKQUEUE_MODE", "bogus")
		_, err := queue.NewFromEnv()
		assert.ErrorIs(t, err, queue.ErrUnknownMode)
	})
}

func TestPriorityOrdering(t *testing.T) {
	t.Parallel()

	q, err := queue.New(queue.WithMode(queue.ModePriority), queue.WithWorkers(1))
	require.NoError(t, err)
	defer func() { _ = q.Stop(context.Background()) }()

	// Occupy the single worker so the remaining submissions pile up
	gate := make(chan struct{})
	_, err = q.Submit(context.Background(), blocker(gate))
	require.NoError(t, err)

	var mu sync.Mutex
	var order []queue.Priority
	record := func(p queue.Priority) queue.Invocable {
		return queue.Func(func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
			return nil, nil
		})
	}

	var last uuid.UUID
	for _, p := range []queue.Priority{5, 1, 3} {
		id, err := q.Submit(context.Background(), record(p), queue.WithPriority(p))
		require.NoError(t, err)
		if p == 5 {
			last = id
		}
	}

	close(gate)
	waitStatus(t, q, last, queue.StatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []queue.Priority{1, 3, 5}, order)
}

func TestFIFOOrdering(t *testing.T) {
	t.Parallel()

	q, err := queue.New(queue.WithWorkers(1))
	require.NoError(t, err)
	defer func() { _ = q.Stop(context.Background()) }()

	gate := make(chan struct{})
	_, err = q.Submit(context.Background(), blocker(gate))
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var last uuid.UUID
	for i := 0; i < 3; i++ {
		i := i
		id, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil, nil
		}), queue.WithPriority(queue.Priority(10-i))) // priorities must be ignored in FIFO mode
		require.NoError(t, err)
		last = id
	}

	close(gate)
	waitStatus(t, q, last, queue.StatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestCancelTask(t *testing.T) {
	t.Parallel()

	t.Run("pending task never executes", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New(queue.WithWorkers(1))
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		gate := make(chan struct{})
		blockerID, err := q.Submit(context.Background(), blocker(gate))
		require.NoError(t, err)
		waitStatus(t, q, blockerID, queue.StatusRunning)

		var executed bool
		id, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
			executed = true
			return nil, nil
		}))
		require.NoError(t, err)

		require.NoError(t, q.CancelTask(id))
		close(gate)
		waitStatus(t, q, blockerID, queue.StatusCompleted)

		status, err := q.TaskStatus(id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusCancelled, status)

		result, err := q.TaskResult(id)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, queue.ErrTaskCancelled)
		assert.False(t, executed)
	})

	t.Run("running task cannot be cancelled and still completes", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		gate := make(chan struct{})
		id, err := q.Submit(context.Background(), blocker(gate))
		require.NoError(t, err)
		waitStatus(t, q, id, queue.StatusRunning)

		assert.ErrorIs(t, q.CancelTask(id), queue.ErrTaskNotCancellable)

		close(gate)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		result, err := q.WaitForTask(ctx, id)
		require.NoError(t, err)
		assert.True(t, result.Success)
	})

	t.Run("terminal task cannot be cancelled", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		id, err := q.Submit(context.Background(), noop())
		require.NoError(t, err)
		waitStatus(t, q, id, queue.StatusCompleted)

		assert.ErrorIs(t, q.CancelTask(id), queue.ErrTaskNotCancellable)
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		assert.ErrorIs(t, q.CancelTask(uuid.New()), queue.ErrTaskNotFound)
	})
}

func TestTaskResult(t *testing.T) {
	t.Parallel()

	t.Run("not done before terminal status", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		gate := make(chan struct{})
		id, err := q.Submit(context.Background(), blocker(gate))
		require.NoError(t, err)

		_, err = q.TaskResult(id)
		assert.ErrorIs(t, err, queue.ErrTaskNotDone)
		close(gate)
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		_, err = q.TaskResult(uuid.New())
		assert.ErrorIs(t, err, queue.ErrTaskNotFound)
	})
}

func TestWaitForTask(t *testing.T) {
	t.Parallel()

	t.Run("timeout leaves the task untouched", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		gate := make(chan struct{})
		id, err := q.Submit(context.Background(), blocker(gate))
		require.NoError(t, err)
		waitStatus(t, q, id, queue.StatusRunning)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = q.WaitForTask(ctx, id)
		assert.ErrorIs(t, err, queue.ErrWaitTimeout)

		status, err := q.TaskStatus(id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusRunning, status)
		close(gate)
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		_, err = q.WaitForTask(context.Background(), uuid.New())
		assert.ErrorIs(t, err, queue.ErrTaskNotFound)
	})

	t.Run("failed task reports the error inside the result", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		defer func() { _ = q.Stop(context.Background()) }()

		boom := errors.New("boom")
		id, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
			return nil, queue.Permanent(boom)
		}))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		result, err := q.WaitForTask(ctx, id)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, boom)
	})
}

func TestClearCompleted(t *testing.T) {
	t.Parallel()

	q, err := queue.New()
	require.NoError(t, err)
	defer func() { _ = q.Stop(context.Background()) }()

	for n := 0; n < 2; n++ {
		id, err := q.Submit(context.Background(), noop())
		require.NoError(t, err)
		waitStatus(t, q, id, queue.StatusCompleted)
	}

	gate := make(chan struct{})
	runningID, err := q.Submit(context.Background(), blocker(gate))
	require.NoError(t, err)
	waitStatus(t, q, runningID, queue.StatusRunning)

	assert.Equal(t, 2, q.ClearCompleted())

	stats := q.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Running)

	// The surviving task is untouched and still finishes
	close(gate)
	waitStatus(t, q, runningID, queue.StatusCompleted)
}

func TestStats(t *testing.T) {
	t.Parallel()

	q, err := queue.New(queue.WithWorkers(2))
	require.NoError(t, err)
	defer func() { _ = q.Stop(context.Background()) }()

	assert.Equal(t, 2, q.Stats().Workers)
	assert.False(t, q.Stats().IsRunning)

	gate := make(chan struct{})
	id, err := q.Submit(context.Background(), blocker(gate))
	require.NoError(t, err)
	waitStatus(t, q, id, queue.StatusRunning)

	stats := q.Stats()
	assert.True(t, stats.IsRunning)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Running)

	close(gate)
	waitStatus(t, q, id, queue.StatusCompleted)
	assert.Equal(t, 1, q.Stats().Completed)
}

func TestStop(t *testing.T) {
	t.Parallel()

	t.Run("graceful stop finishes ready tasks", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New(queue.WithWorkers(2))
		require.NoError(t, err)

		ids := make([]uuid.UUID, 0, 10)
		for n := 0; n < 10; n++ {
			id, err := q.Submit(context.Background(), queue.Func(func(ctx context.Context) (any, error) {
				time.Sleep(5 * time.Millisecond)
				return nil, nil
			}))
			require.NoError(t, err)
			ids = append(ids, id)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, q.Stop(ctx))

		for _, id := range ids {
			status, err := q.TaskStatus(id)
			require.NoError(t, err)
			assert.Equal(t, queue.StatusCompleted, status)
		}
		assert.False(t, q.Stats().IsRunning)
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New()
		require.NoError(t, err)
		assert.ErrorIs(t, q.Stop(context.Background()), queue.ErrNotRunning)
	})

	t.Run("stop now cancels queued work", func(t *testing.T) {
		t.Parallel()

		q, err := queue.New(queue.WithWorkers(1))
		require.NoError(t, err)

		gate := make(chan struct{})
		defer close(gate)
		runningID, err := q.Submit(context.Background(), blocker(gate))
		require.NoError(t, err)
		waitStatus(t, q, runningID, queue.StatusRunning)

		pendingID, err := q.Submit(context.Background(), noop())
		require.NoError(t, err)
		scheduledID, err := q.Submit(context.Background(), noop(), queue.WithDelay(time.Hour))
		require.NoError(t, err)

		require.NoError(t, q.StopNow())

		for _, id := range []uuid.UUID{pendingID, scheduledID} {
			status, err := q.TaskStatus(id)
			require.NoError(t, err)
			assert.Equal(t, queue.StatusCancelled, status)
		}

		// The in-flight task saw its context cancelled and failed
		status, err := q.TaskStatus(runningID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, status)
	})
}
