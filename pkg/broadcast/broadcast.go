package broadcast

import (
	"context"
	"sync"
)

// Broadcaster fans values of type T out to any number of subscribers without
// ever blocking the publisher: when a subscriber's buffer is full the value is
// dropped for that subscriber and the subscription is closed. All methods are
// safe for concurrent use.
type Broadcaster[T any] struct {
	subscribers map[*Subscription[T]]struct{}
	bufferSize  int
	closed      bool
	mu          sync.RWMutex
	cleanupWg   sync.WaitGroup // tracks context-cancellation cleanup goroutines
}

// New creates a broadcaster whose subscribers each get a channel buffered to
// bufferSize. A minimum buffer size of 1 is enforced: zero-buffer channels
// would make every send blocking and defeat the non-blocking design.
func New[T any](bufferSize int) *Broadcaster[T] {
	return &Broadcaster[T]{
		subscribers: make(map[*Subscription[T]]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe registers a new subscriber that will receive all subsequent
// broadcasts. The subscription is automatically cleaned up when the provided
// context is cancelled. If the broadcaster is already closed, the returned
// subscription is already closed too.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscription[T](b.bufferSize)
	if b.closed {
		_ = sub.Close()
		return sub
	}

	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			<-ctx.Done()
			b.unsubscribe(sub)
		}()
	}

	return sub
}

// Broadcast delivers v to every active subscriber. Delivery is non-blocking:
// a subscriber whose buffer is full misses the value and is dropped from the
// broadcaster. Returns nil even if some subscribers missed the value.
func (b *Broadcaster[T]) Broadcast(v T) error {
	// RLock because broadcasts are frequent while subscriber churn is not
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	for sub := range b.subscribers {
		if !sub.send(v) {
			// Removing asynchronously avoids write-lock contention mid-broadcast
			go b.unsubscribe(sub)
		}
	}

	return nil
}

// Close shuts down the broadcaster and closes all subscriptions. It is
// idempotent; after Close, Broadcast returns ErrClosed and Subscribe hands out
// closed subscriptions.
func (b *Broadcaster[T]) Close() error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return nil
	}

	b.closed = true

	for sub := range b.subscribers {
		_ = sub.Close()
	}

	clear(b.subscribers)
	b.mu.Unlock()

	// Wait for cleanup goroutines so no unsubscribe races a closed broadcaster
	b.cleanupWg.Wait()

	return nil
}

func (b *Broadcaster[T]) unsubscribe(sub *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	_ = sub.Close()
}

// Subscription is a single subscriber's view of a Broadcaster. Values arrive
// on the channel returned by Receive; the channel is closed when the
// subscription ends.
type Subscription[T any] struct {
	ch     chan T
	closed bool
	mu     sync.RWMutex
}

func newSubscription[T any](bufferSize int) *Subscription[T] {
	return &Subscription[T]{
		ch: make(chan T, bufferSize),
	}
}

// Receive returns the channel values are delivered on. The channel is closed
// once the subscription is closed, so plain for-range consumption terminates
// cleanly.
func (s *Subscription[T]) Receive() <-chan T {
	return s.ch
}

// Close ends the subscription and closes the receive channel. It is idempotent
// and safe to call concurrently with deliveries.
func (s *Subscription[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

func (s *Subscription[T]) send(v T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- v:
		return true
	default:
		return false
	}
}
