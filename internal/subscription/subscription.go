// Package subscription implements the bounded/unbounded multi-producer,
// multi-consumer broadcast primitive described in spec.md §4.1. It is the
// leaf dependency of the whole module: the per-contributor discontinuity
// streams and the lifecycle manager's room-status stream are built on top
// of it. The contributor adapter's state-change stream is not; it comes
// straight from the transport channel.
//
// The shape is grounded on the teacher's in-memory event bus
// (modules/eventbus/memory.go): each subscriber owns a delivery channel
// and a dedicated pump goroutine, cancellation closes a `done` channel
// that the pump selects on (producers check the cancelled flag instead),
// and delivery mode is a config knob rather than a hardcoded choice.
package subscription

import (
	"sync"

	"github.com/google/uuid"
)

// BufferPolicy controls what a subscriber does when events arrive faster
// than they are consumed.
type BufferPolicy struct {
	// Bounded indicates a fixed-capacity queue; when true, Limit must be
	// positive and the oldest queued event is dropped on overflow.
	Bounded bool
	Limit   int
}

// Unbounded returns a policy with no queue limit.
func Unbounded() BufferPolicy { return BufferPolicy{} }

// Bounded returns a policy that drops the oldest queued event once more
// than n events are waiting to be delivered.
func Bounded(n int) BufferPolicy {
	if n <= 0 {
		n = 1
	}
	return BufferPolicy{Bounded: true, Limit: n}
}

// Handle is a live subscription: it exposes the event stream via C, and
// Unsubscribe stops further deliveries. Unsubscribe is idempotent.
type Handle[T any] struct {
	ID string
	C  <-chan T

	sub *subscriber[T]
}

// Unsubscribe cancels the subscription. Events emitted after this call
// returns are guaranteed not to be delivered; events emitted concurrently
// with the call may or may not be delivered.
func (h *Handle[T]) Unsubscribe() {
	h.sub.cancel()
}

type subscriber[T any] struct {
	id     string
	policy BufferPolicy
	out    chan T

	mu        sync.Mutex
	queue     []T
	cancelled bool
	wake      chan struct{}
	done      chan struct{}
}

func (s *subscriber[T]) cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.mu.Unlock()
	close(s.done)
}

func (s *subscriber[T]) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// enqueue appends an event for delivery, applying the drop-oldest policy
// for bounded subscribers. It returns false if the subscriber is already
// cancelled, in which case the caller must not count the event as
// delivered.
func (s *subscriber[T]) enqueue(event T) bool {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, event)
	if s.policy.Bounded && len(s.queue) > s.policy.Limit {
		// Drop the oldest entry by re-slicing past it; nothing is copied.
		s.queue = s.queue[len(s.queue)-s.policy.Limit:]
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// pump is the subscriber's dedicated goroutine. It owns delivery order:
// a single producer lock (subscriber.mu) guarantees events are queued in
// emission order, and the pump drains the queue strictly FIFO.
func (s *subscriber[T]) pump() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.done:
				return
			case <-s.wake:
				continue
			}
		}
		event := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- event:
		case <-s.done:
			return
		}
	}
}

// Broadcaster is a multi-producer, multi-consumer event stream. The zero
// value is not usable; construct with New.
type Broadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber[T]
}

// New creates an empty broadcaster.
func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subscribers: make(map[string]*subscriber[T])}
}

// Subscribe creates a new subscription under the given buffering policy.
// The returned handle receives every event emitted after this call
// returns, in emission order, until Unsubscribe is called.
func (b *Broadcaster[T]) Subscribe(policy BufferPolicy) *Handle[T] {
	sub := &subscriber[T]{
		id:     uuid.New().String(),
		policy: policy,
		out:    make(chan T),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.subscribers[sub.id] = sub
	b.mu.Unlock()

	go sub.pump()

	return &Handle[T]{ID: sub.id, C: sub.out, sub: sub}
}

// Emit delivers event to every live subscriber. Emissions from a single
// call to Emit are observed by each subscriber in the order Emit was
// called (i.e. emission order, per spec.md §4.1), because queuing onto a
// subscriber's buffer happens synchronously within Emit.
func (b *Broadcaster[T]) Emit(event T) {
	b.mu.RLock()
	subs := make([]*subscriber[T], 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	var stale []string
	for _, s := range subs {
		if !s.enqueue(event) {
			stale = append(stale, s.id)
		}
	}
	if len(stale) > 0 {
		b.mu.Lock()
		for _, id := range stale {
			delete(b.subscribers, id)
		}
		b.mu.Unlock()
	}
}

// SubscriberCount reports the number of live subscriptions, for tests and
// diagnostics.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
