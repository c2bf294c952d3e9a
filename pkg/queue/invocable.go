package queue

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Invocable is the unit of work a task executes. Execute receives the
// submission arguments and returns the task's result value. A returned error
// triggers the retry policy unless it is marked permanent.
type Invocable interface {
	Execute(ctx context.Context, args []any) (any, error)
}

// Func adapts an argument-free function to the Invocable interface.
type Func func(ctx context.Context) (any, error)

func (f Func) Execute(ctx context.Context, _ []any) (any, error) {
	return f(ctx)
}

// FuncArgs adapts a function taking submission arguments to the Invocable
// interface.
type FuncArgs func(ctx context.Context, args []any) (any, error)

func (f FuncArgs) Execute(ctx context.Context, args []any) (any, error) {
	return f(ctx, args)
}

// Permanent marks an error as non-retryable. A task whose work returns a
// permanent error fails immediately regardless of remaining retry budget.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// ProgressFunc observes a task's completion fraction in the range [0.0, 1.0].
// Values outside the range are clamped before delivery. Panics inside the
// callback are recovered and logged; they never fail the task.
type ProgressFunc func(id uuid.UUID, progress float64)
