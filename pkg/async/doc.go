// Package async provides simple, generic helpers for running computations asynchronously and
// waiting for their completion.
//
// The package is centred around the generic type Future that represents the eventual result of an
// asynchronous operation. A Future can be obtained two ways: by calling Async, which starts the
// supplied function in its own goroutine and immediately returns a *Future instance, or by calling
// NewFuture, which creates an unresolved promise that some other component completes later through
// Resolve. The promise form is what the taskkit queue uses to wake waiters on task completion:
// the engine resolves the future when a task reaches a terminal status, and callers block on it
// with Await, AwaitWithTimeout, or AwaitContext.
//
// In addition to operating on a single Future, the helpers WaitAll and WaitAny make it easy to
// coordinate multiple concurrent tasks – either collecting every result or returning the first one
// to finish.
//
// # Usage
//
//	import (
//	    "context"
//	    "time"
//	    "github.com/dmitrymomot/taskkit/pkg/async"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    future := async.Async(ctx, 42, func(_ context.Context, v int) (string, error) {
//	        time.Sleep(100 * time.Millisecond)
//	        return fmt.Sprintf("value is %d", v), nil
//	    })
//
//	    // do other work …
//	    res, err := future.Await()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res)
//	}
//
// Promise style:
//
//	f := async.NewFuture[string]()
//	go func() { f.Resolve("done", nil) }()
//	res, err := f.AwaitContext(ctx)
//
// # Error Handling
//
// Await returns the error produced by the user callback or Resolve caller. AwaitWithTimeout
// returns ErrTimeout when the deadline passes first; AwaitContext returns the context's error.
//
// # Performance Considerations
//
// Futures are lightweight wrappers around channels. The overhead is minimal but you should avoid
// spawning an excessive number of goroutines if the workload could be better handled by a worker
// pool or other means of limiting concurrency.
package async
