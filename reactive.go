package libwsrx

import (
	"context"
	"sync"
	"weak"
)

// Reactive exposes a Socket as event streams and blocking operations derived from them.
// Every Reactive built for the same socket shares one bridge, so all of them observe the same
// ordered sequence of events.
type Reactive struct {
	socket    Socket
	socketRef func() Socket
	bridge    *bridge
	logger    logger
}

// New installs the event bridge on socket, unless it already has one, and returns its façade.
// The delegate set on socket beforehand keeps receiving every callback.
func New[S any, P interface {
	*S
	Socket
}](logger logger, socket P) *Reactive {
	return &Reactive{
		socket:    socket,
		socketRef: weakSocket[S, P](socket),
		bridge:    bridgeFor[S, P](logger, socket),
		logger:    logger.WithField("type", "reactive"),
	}
}

// weakSocket returns a getter for socket that does not keep it alive. The getter returns nil
// once the socket was collected.
func weakSocket[S any, P interface {
	*S
	Socket
}](socket P) func() Socket {
	ref := weak.Make((*S)(socket))
	return func() Socket {
		if p := ref.Value(); p != nil {
			return P(p)
		}
		return nil
	}
}

// Socket returns the bridged socket.
func (r *Reactive) Socket() Socket {
	return r.socket
}

// State returns the connection state as tracked from the socket callbacks and the operations
// issued through any façade of this socket.
func (r *Reactive) State() State {
	return r.bridge.State()
}

// Response returns every event of the socket in callback order. Disconnections are regular
// events; the stream completes when the socket is garbage collected.
// Observers are called from a goroutine owned by the bridge, one event at a time, and may await
// Connect, Disconnect or writes from within their callbacks.
func (r *Reactive) Response() Stream[Event] {
	return r.bridge.hub.events
}

// Text returns the content of the text messages received.
func (r *Reactive) Text() Stream[string] {
	return textOf(r.Response())
}

// Connected emits true on every connection and false on every disconnection.
func (r *Reactive) Connected() Stream[bool] {
	return Map(
		Filter(r.Response(), isConnectionOutcome),
		func(e Event) bool {
			return e.Type.IsConnected()
		},
	)
}

func textOf(events Stream[Event]) Stream[string] {
	return Map(
		Filter(events, func(e Event) bool { return e.Type.IsMessage() }),
		func(e Event) string { return e.Text },
	)
}

func isConnectionOutcome(e Event) bool {
	return e.Type.IsConnected() || e.Type.IsDisconnected()
}

// Connect asks the socket to connect and waits for the outcome. It fails with the disconnection
// error, or ErrUnknown when none was given, if the socket disconnects before connecting.
// The socket is not touched when it already reports being connected.
// Returning because ctx is done does not abort the connection attempt.
func (r *Reactive) Connect(ctx context.Context) error {
	if r.socket.IsConnected() {
		r.logger.Debugln("already connected")
		r.bridge.setState(StateConnected)
		return nil
	}

	pending := first(r.bridge.hub.signals, isConnectionOutcome)

	r.bridge.setState(StateConnecting)
	r.logger.Debugln("connecting")
	r.socket.Connect()

	e, err := pending.Wait(ctx)
	if err != nil {
		r.bridge.restoreState(StateConnecting, StateIdle)
		return err
	}

	return connectionOutcome(e)
}

func connectionOutcome(e Event) error {
	if e.Type.IsConnected() {
		return nil
	}
	if e.Err != nil {
		return e.Err
	}
	return ErrUnknown
}

// Disconnect asks the socket to disconnect and waits until it has. The socket is not touched
// when it already reports being disconnected. A disconnection carrying an error still counts as
// success.
func (r *Reactive) Disconnect(ctx context.Context) error {
	if !r.socket.IsConnected() {
		r.logger.Debugln("already disconnected")
		return nil
	}

	pending := first(r.bridge.hub.signals, func(e Event) bool {
		return e.Type.IsDisconnected()
	})

	r.bridge.setState(StateDisconnecting)
	r.logger.Debugln("disconnecting")
	r.socket.Disconnect()

	if _, err := pending.Wait(ctx); err != nil {
		r.bridge.restoreState(StateDisconnecting, StateConnected)
		return err
	}

	return nil
}

// WriteData writes a binary frame and waits for the socket to report completion.
func (r *Reactive) WriteData(ctx context.Context, data []byte) error {
	return r.write(ctx, func(completion func()) {
		r.socket.WriteData(data, completion)
	})
}

// WritePing writes a ping frame and waits for the socket to report completion.
func (r *Reactive) WritePing(ctx context.Context, payload []byte) error {
	return r.write(ctx, func(completion func()) {
		r.socket.WritePing(payload, completion)
	})
}

// WriteString writes a text frame and waits for the socket to report completion.
func (r *Reactive) WriteString(ctx context.Context, text string) error {
	return r.write(ctx, func(completion func()) {
		r.socket.WriteString(text, completion)
	})
}

// write resolves once, on the first completion. Abandoning it through ctx does not cancel the
// write itself.
func (r *Reactive) write(ctx context.Context, issue func(completion func())) error {
	var (
		once sync.Once
		done = make(chan struct{})
	)

	issue(func() {
		once.Do(func() { close(done) })
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
