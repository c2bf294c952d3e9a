// Package broadcast provides a generic, non-blocking, in-memory pub/sub
// primitive.
//
// A Broadcaster[T] fans values out to any number of Subscription[T] consumers.
// Publishing never blocks: each subscription has a bounded buffer, and a
// subscriber that falls behind loses the value and is dropped. This makes the
// broadcaster safe to call from latency-sensitive paths such as the taskkit
// queue's worker loop, which publishes task lifecycle events through it.
//
// # Usage
//
//	import "github.com/dmitrymomot/taskkit/pkg/broadcast"
//
//	b := broadcast.New[string](16)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	go func() {
//	    for msg := range sub.Receive() {
//	        fmt.Println(msg)
//	    }
//	}()
//
//	_ = b.Broadcast("hello")
//
// Subscriptions are scoped to the context passed to Subscribe: cancelling the
// context tears the subscription down and closes the receive channel, so
// for-range consumers exit naturally.
//
// # Delivery Semantics
//
// Delivery is at-most-once per subscriber with no ordering guarantees across
// subscribers. Slow consumers lose messages rather than slowing the producer.
// If lossless delivery matters more than producer latency, this is the wrong
// primitive.
package broadcast
