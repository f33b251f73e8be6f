package libwsrx

import (
	"sync"
)

type dispatchItem[T any] struct {
	value    T
	terminal bool
	err      error
	attach   *attachment[T]
	flushed  chan struct{}
}

// dispatcher delivers values to a subject from a goroutine of its own, in the order they were
// pushed. The goroutine only lives while there is something to deliver, so pushing never waits
// for observers.
type dispatcher[T any] struct {
	target *subject[T]

	mu      sync.Mutex
	queue   []dispatchItem[T]
	running bool
}

func newDispatcher[T any](target *subject[T]) *dispatcher[T] {
	return &dispatcher[T]{target: target}
}

func (d *dispatcher[T]) Next(v T) {
	d.push(dispatchItem[T]{value: v})
}

func (d *dispatcher[T]) Complete() {
	d.push(dispatchItem[T]{terminal: true})
}

func (d *dispatcher[T]) Fail(err error) {
	d.push(dispatchItem[T]{terminal: true, err: err})
}

// Attach subscribes to the target once every value pushed so far has been delivered, so the
// observer sees exactly the values pushed after this call.
func (d *dispatcher[T]) Attach(next func(T), done func(error)) Subscription {
	a := &attachment[T]{next: next, done: done}
	d.push(dispatchItem[T]{attach: a})
	return SubscriptionFunc(a.cancel)
}

// flush returns once everything pushed before the call has been delivered. It must not be called
// from an observer of the target.
func (d *dispatcher[T]) flush() {
	c := make(chan struct{})
	d.push(dispatchItem[T]{flushed: c})
	<-c
}

func (d *dispatcher[T]) push(item dispatchItem[T]) {
	d.mu.Lock()
	d.queue = append(d.queue, item)
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	go d.drain()
}

func (d *dispatcher[T]) drain() {
	for {
		d.mu.Lock()
		items := d.queue
		d.queue = nil
		if len(items) == 0 {
			d.running = false
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		for _, item := range items {
			d.deliver(item)
		}
	}
}

func (d *dispatcher[T]) deliver(item dispatchItem[T]) {
	switch {
	case item.flushed != nil:
		close(item.flushed)
	case item.attach != nil:
		item.attach.subscribe(d.target)
	case item.terminal:
		d.target.terminate(item.err)
	default:
		d.target.Next(item.value)
	}
}

type attachment[T any] struct {
	next func(T)
	done func(error)

	mu        sync.Mutex
	sub       Subscription
	cancelled bool
}

func (a *attachment[T]) subscribe(target *subject[T]) {
	a.mu.Lock()
	cancelled := a.cancelled
	a.mu.Unlock()

	if cancelled {
		return
	}

	sub := target.Subscribe(a.next, a.done)

	a.mu.Lock()
	if a.cancelled {
		a.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	a.sub = sub
	a.mu.Unlock()
}

func (a *attachment[T]) cancel() {
	a.mu.Lock()
	a.cancelled = true
	sub := a.sub
	a.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
