package libwsrx

import (
	"runtime"
	"sync"
	"sync/atomic"
	"weak"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// eventHub carries the events of one socket. Single-shot operations observe signals, which is
// published synchronously from the transport callbacks. Everything else observes events, which
// is fed by a dispatcher so that observers never run on the transport's goroutines and may
// therefore await operations from within their callbacks.
type eventHub struct {
	mu       sync.Mutex
	signals  *subject[Event]
	events   *subject[Event]
	dispatch *dispatcher[Event]
}

func newEventHub() *eventHub {
	events := newSubject[Event]()
	return &eventHub{
		signals:  newSubject[Event](),
		events:   events,
		dispatch: newDispatcher(events),
	}
}

func (h *eventHub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.signals.Next(e)
	h.dispatch.Next(e)
}

// attach observes events from the current position on.
func (h *eventHub) attach(next func(Event), done func(error)) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.dispatch.Attach(next, done)
}

func (h *eventHub) complete() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.signals.Complete()
	h.dispatch.Complete()
}

func (h *eventHub) flush() {
	h.dispatch.flush()
}

// bridge is installed as the delegate of a Socket and republishes every callback as an Event.
// The delegate installed before it keeps receiving the original callbacks.
// Disconnections are ordinary events: the stream only terminates when the socket is collected.
type bridge struct {
	hub     *eventHub
	forward Delegate
	state   atomic.Int32
	logger  logger
}

func newBridge(logger logger, forward Delegate) *bridge {
	return &bridge{
		hub:     newEventHub(),
		forward: forward,
		logger:  logger.WithField("type", "bridge"),
	}
}

func (b *bridge) State() State {
	return State(b.state.Load())
}

func (b *bridge) setState(s State) {
	b.state.Store(int32(s))
}

// restoreState moves back to state to when an operation gave up while the state was still from.
func (b *bridge) restoreState(from, to State) {
	b.state.CompareAndSwap(int32(from), int32(to))
}

func (b *bridge) OnConnect(s Socket) {
	b.setState(StateConnected)
	b.hub.publish(ConnectedEvent())

	if b.forward != nil {
		b.forward.OnConnect(s)
	}
}

func (b *bridge) OnDisconnect(s Socket, err error) {
	if err != nil {
		b.logger.Debugf("disconnected due to %s", err)
	}

	b.setState(StateIdle)
	b.hub.publish(DisconnectedEvent(err))

	if b.forward != nil {
		b.forward.OnDisconnect(s, err)
	}
}

func (b *bridge) OnReceiveMessage(s Socket, text string) {
	b.hub.publish(MessageEvent(text))

	if b.forward != nil {
		b.forward.OnReceiveMessage(s, text)
	}
}

func (b *bridge) OnReceiveData(s Socket, data []byte) {
	b.hub.publish(DataEvent(data))

	if b.forward != nil {
		b.forward.OnReceiveData(s, data)
	}
}

func (b *bridge) OnReceivePong(s Socket, payload []byte) {
	b.hub.publish(PongEvent(payload))

	if pd, ok := b.forward.(PongDelegate); ok {
		pd.OnReceivePong(s, payload)
	}
}

// bridgeRegistry maps sockets to their bridge without keeping either alive. The socket owns its
// bridge through SetDelegate; once the socket is collected its bridge stream is completed.
type bridgeRegistry struct {
	mu      sync.Mutex
	bridges map[any]weak.Pointer[bridge]
}

type bridgeCleanup struct {
	key any
	hub *eventHub
}

var bridges = &bridgeRegistry{bridges: make(map[any]weak.Pointer[bridge])}

// bridgeFor returns the bridge of socket, installing a new one if the socket has none yet.
// Observers keeping a reference to the socket keep it, and therefore its bridge, alive.
func bridgeFor[S any, P interface {
	*S
	Socket
}](logger logger, socket P) *bridge {
	return registerBridge(bridges, logger, (*S)(socket), socket)
}

func registerBridge[S any](r *bridgeRegistry, logger logger, ptr *S, socket Socket) *bridge {
	key := weak.Make(ptr)

	r.mu.Lock()
	defer r.mu.Unlock()

	if wb, ok := r.bridges[key]; ok {
		if b := wb.Value(); b != nil {
			return b
		}
	}

	b := newBridge(logger, socket.Delegate())
	socket.SetDelegate(b)
	r.bridges[key] = weak.Make(b)

	runtime.AddCleanup(ptr, r.release, bridgeCleanup{key: key, hub: b.hub})

	return b
}

func (r *bridgeRegistry) release(c bridgeCleanup) {
	r.mu.Lock()
	delete(r.bridges, c.key)
	r.mu.Unlock()

	c.hub.complete()
}
