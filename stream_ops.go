package libwsrx

import (
	"context"
	"sync"
)

type StreamFunc[T any] func(next func(T), done func(error)) Subscription

func (f StreamFunc[T]) Subscribe(next func(T), done func(error)) Subscription {
	return f(next, done)
}

// Filter returns a stream of the values of src satisfying keep. Termination is passed through.
func Filter[T any](src Stream[T], keep func(T) bool) Stream[T] {
	return StreamFunc[T](func(next func(T), done func(error)) Subscription {
		return src.Subscribe(func(v T) {
			if next != nil && keep(v) {
				next(v)
			}
		}, done)
	})
}

// Map returns a stream of the values of src transformed by fn. Termination is passed through.
func Map[T, U any](src Stream[T], fn func(T) U) Stream[U] {
	return StreamFunc[U](func(next func(U), done func(error)) Subscription {
		return src.Subscribe(func(v T) {
			if next != nil {
				next(fn(v))
			}
		}, done)
	})
}

type firstResult[T any] struct {
	value T
	err   error
}

// pendingFirst is a single-shot subscription: it keeps the first value matching a predicate and
// detaches from the source immediately after.
type pendingFirst[T any] struct {
	once   sync.Once
	result chan firstResult[T]

	mu       sync.Mutex
	sub      Subscription
	resolved bool
}

// first subscribes to src right away. The subscription must be established before triggering
// whatever action produces the awaited value, so the result cannot be missed.
func first[T any](src Stream[T], match func(T) bool) *pendingFirst[T] {
	p := &pendingFirst[T]{result: make(chan firstResult[T], 1)}

	sub := src.Subscribe(func(v T) {
		if match(v) {
			p.resolve(firstResult[T]{value: v})
		}
	}, func(err error) {
		if err == nil {
			err = ErrStreamCompleted
		}
		p.resolve(firstResult[T]{err: err})
	})

	p.mu.Lock()
	p.sub = sub
	resolved := p.resolved
	p.mu.Unlock()

	if resolved {
		sub.Unsubscribe()
	}

	return p
}

func (p *pendingFirst[T]) resolve(r firstResult[T]) {
	p.once.Do(func() {
		p.result <- r

		p.mu.Lock()
		p.resolved = true
		sub := p.sub
		p.mu.Unlock()

		if sub != nil {
			sub.Unsubscribe()
		}
	})
}

// Wait blocks until the first match, the termination of the source or ctx being done. Giving up
// on ctx detaches the observer but has no effect on whatever produces the values.
func (p *pendingFirst[T]) Wait(ctx context.Context) (T, error) {
	select {
	case r := <-p.result:
		return r.value, r.err
	case <-ctx.Done():
		p.cancel()
		var zero T
		return zero, ctx.Err()
	}
}

func (p *pendingFirst[T]) cancel() {
	p.mu.Lock()
	p.resolved = true
	sub := p.sub
	p.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
