package queue

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskkit/pkg/statemachine"
)

func TestFifoReady(t *testing.T) {
	t.Parallel()

	rq := newReadyQueue(ModeFIFO)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	// Priorities are ignored in FIFO mode
	rq.Push(ids[0], PriorityLow)
	rq.Push(ids[1], PriorityCritical)
	rq.Push(ids[2], PriorityNormal)

	require.Equal(t, 3, rq.Len())
	for _, want := range ids {
		got, ok := rq.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := rq.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, rq.Len())
}

func TestPriorityReady(t *testing.T) {
	t.Parallel()

	t.Run("lower value dequeues first", func(t *testing.T) {
		t.Parallel()

		rq := newReadyQueue(ModePriority)
		low, high, normal := uuid.New(), uuid.New(), uuid.New()
		rq.Push(low, PriorityLow)
		rq.Push(high, PriorityHigh)
		rq.Push(normal, PriorityNormal)

		var got []uuid.UUID
		for {
			id, ok := rq.Pop()
			if !ok {
				break
			}
			got = append(got, id)
		}
		assert.Equal(t, []uuid.UUID{high, normal, low}, got)
	})

	t.Run("equal priority keeps submission order", func(t *testing.T) {
		t.Parallel()

		rq := newReadyQueue(ModePriority)
		ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
		for _, id := range ids {
			rq.Push(id, PriorityNormal)
		}

		for _, want := range ids {
			got, ok := rq.Pop()
			require.True(t, ok)
			assert.Equal(t, want, got)
		}
	})
}

func TestStatusChart(t *testing.T) {
	t.Parallel()

	chart := newStatusChart()
	ctx := context.Background()

	t.Run("allowed edges", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			from  Status
			event string
			to    Status
		}{
			{StatusScheduled, "promote", StatusPending},
			{StatusScheduled, "cancel", StatusCancelled},
			{StatusPending, "start", StatusRunning},
			{StatusPending, "cancel", StatusCancelled},
			{StatusRunning, "complete", StatusCompleted},
			{StatusRunning, "retry", StatusRetrying},
			{StatusRunning, "fail", StatusFailed},
			{StatusRetrying, "resume", StatusRunning},
			{StatusRetrying, "fail", StatusFailed},
			{StatusRetrying, "cancel", StatusCancelled},
		}
		for _, tc := range cases {
			next, err := chart.Fire(ctx, tc.from, statemachine.StringEvent(tc.event), nil)
			require.NoError(t, err, "%s --%s-->", tc.from, tc.event)
			assert.Equal(t, tc.to, next)
		}
	})

	t.Run("terminal statuses have no edges", func(t *testing.T) {
		t.Parallel()

		for _, terminal := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
			for _, event := range []string{"promote", "start", "complete", "retry", "resume", "fail", "cancel"} {
				assert.False(t, chart.CanFire(ctx, terminal, statemachine.StringEvent(event), nil),
					"%s --%s--> must not exist", terminal, event)
			}
		}
	})

	t.Run("running cannot be cancelled through the chart", func(t *testing.T) {
		t.Parallel()
		assert.False(t, chart.CanFire(ctx, StatusRunning, statemachine.StringEvent("cancel"), nil))
	})
}

func TestStatusHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.False(t, StatusRetrying.Terminal())

	_, err := ParseStatus("running")
	assert.NoError(t, err)
	_, err = ParseStatus("limbo")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = ParseMode("priority")
	assert.NoError(t, err)
	_, err = ParseMode("lifo")
	assert.ErrorIs(t, err, ErrUnknownMode)
}
