package libwsrx

import (
	"sync"
	"sync/atomic"
)

type (
	// Stream is a read-only source of values. done is invoked at most once when the stream
	// terminates: with nil when it completed normally, with the failure otherwise.
	Stream[T any] interface {
		Subscribe(next func(T), done func(error)) Subscription
	}

	// Subscription detaches an observer. Unsubscribe only stops observation and is idempotent.
	Subscription interface {
		Unsubscribe()
	}

	SubscriptionFunc func()
)

func (f SubscriptionFunc) Unsubscribe() { f() }

var noopSubscription = SubscriptionFunc(func() {})

type observer[T any] struct {
	next     func(T)
	done     func(error)
	detached atomic.Bool
}

func (o *observer[T]) onNext(v T) {
	if o.detached.Load() || o.next == nil {
		return
	}
	o.next(v)
}

func (o *observer[T]) onDone(err error) {
	if o.detached.Swap(true) || o.done == nil {
		return
	}
	o.done(err)
}

// subject is a hot multicast stream. Publication is serialized so that every observer sees
// values in the same order; values are delivered synchronously and never buffered, so an observer
// subscribed after a value was published does not see it.
// Observers may subscribe and unsubscribe from within a callback, but must not publish.
type subject[T any] struct {
	publishMu sync.Mutex

	mu        sync.RWMutex
	observers map[uint64]*observer[T]
	order     []uint64
	nextID    uint64
	closed    bool
	closeErr  error
}

func newSubject[T any]() *subject[T] {
	return &subject[T]{
		observers: make(map[uint64]*observer[T]),
	}
}

func (s *subject[T]) Subscribe(next func(T), done func(error)) Subscription {
	o := &observer[T]{next: next, done: done}

	s.mu.Lock()
	if s.closed {
		err := s.closeErr
		s.mu.Unlock()

		o.onDone(err)
		return noopSubscription
	}

	s.nextID++
	id := s.nextID
	s.observers[id] = o
	s.order = append(s.order, id)
	s.mu.Unlock()

	return SubscriptionFunc(func() {
		o.detached.Store(true)
		s.remove(id)
	})
}

func (s *subject[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.observers[id]; !ok {
		return
	}
	delete(s.observers, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *subject[T]) snapshot() []*observer[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*observer[T], 0, len(s.order))
	for _, id := range s.order {
		res = append(res, s.observers[id])
	}
	return res
}

// Next publishes v to every current observer, in subscription order, and returns once all of
// them have been called. It is a no-op after the subject terminated.
func (s *subject[T]) Next(v T) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if s.isClosed() {
		return
	}

	for _, o := range s.snapshot() {
		o.onNext(v)
	}
}

// Complete terminates the subject normally.
func (s *subject[T]) Complete() {
	s.terminate(nil)
}

// Fail terminates the subject with err.
func (s *subject[T]) Fail(err error) {
	s.terminate(err)
}

func (s *subject[T]) terminate(err error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.closeErr = err
	observers := make([]*observer[T], 0, len(s.order))
	for _, id := range s.order {
		observers = append(observers, s.observers[id])
	}
	s.observers = make(map[uint64]*observer[T])
	s.order = nil
	s.mu.Unlock()

	for _, o := range observers {
		o.onDone(err)
	}
}

func (s *subject[T]) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.closed
}
