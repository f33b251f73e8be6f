package libwsrx

import (
	"context"
	"sync"
)

// Connection is a validated handle on one connected session of a Socket. Its streams carry the
// events following the connection and terminate with the session: they complete after a clean
// disconnection and fail with the disconnection error otherwise.
type Connection struct {
	socket func() Socket
	events *subject[Event]
	doneC  CloseChan

	mu  sync.Mutex
	err error
}

// Socket returns the connected socket, or nil once it was garbage collected. A Connection does
// not keep its socket alive.
func (c *Connection) Socket() Socket {
	return c.socket()
}

// Events returns the events of the session, ending with its Disconnected event.
func (c *Connection) Events() Stream[Event] {
	return c.events
}

// Text returns the text messages of the session.
func (c *Connection) Text() Stream[string] {
	return textOf(c.events)
}

// Done is closed once the session is over.
func (c *Connection) Done() CloseChan {
	return c.doneC
}

// Err returns the error the session ended with, nil while it is open or after a clean
// disconnection.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func (c *Connection) end(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	close(c.doneC)

	if err != nil {
		c.events.Fail(err)
	} else {
		c.events.Complete()
	}
}

type sessionPhase int

const (
	sessionPending sessionPhase = iota
	sessionOpen
	sessionOver
)

// session feeds a Connection from Response. It is attached before the connect action is issued,
// so that neither the connection nor the end of the session can be missed. Its callbacks run on
// the dispatching goroutine only, hence phase needs no lock.
type session struct {
	conn  *Connection
	phase sessionPhase

	mu      sync.Mutex
	sub     Subscription
	stopped bool
}

// ConnectSession asks the socket to connect like Connect does, and returns a Connection scoped
// to the session that starts. When the socket is already connected, the Connection covers the
// current session from now on.
func (r *Reactive) ConnectSession(ctx context.Context) (*Connection, error) {
	s := &session{
		conn: &Connection{
			socket: r.socketRef,
			events: newSubject[Event](),
			doneC:  make(CloseChan),
		},
	}

	if r.socket.IsConnected() {
		s.phase = sessionOpen
		s.setSubscription(r.bridge.hub.attach(s.handle, s.abort))
		r.bridge.setState(StateConnected)
		return s.conn, nil
	}

	pending := first(r.bridge.hub.signals, isConnectionOutcome)
	s.setSubscription(r.bridge.hub.attach(s.handle, s.abort))

	r.bridge.setState(StateConnecting)
	r.logger.Debugln("connecting session")
	r.socket.Connect()

	e, err := pending.Wait(ctx)
	if err == nil {
		err = connectionOutcome(e)
	}
	if err != nil {
		r.bridge.restoreState(StateConnecting, StateIdle)
		s.stop()
		return nil, err
	}

	return s.conn, nil
}

func (s *session) handle(e Event) {
	switch s.phase {
	case sessionPending:
		switch {
		case e.Type.IsConnected():
			s.phase = sessionOpen
		case e.Type.IsDisconnected():
			s.phase = sessionOver
			s.stop()
		}
	case sessionOpen:
		s.conn.events.Next(e)

		if e.Type.IsDisconnected() {
			s.phase = sessionOver
			s.stop()
			s.conn.end(e.Err)
		}
	}
}

// abort handles the termination of Response itself.
func (s *session) abort(err error) {
	if s.phase == sessionOpen {
		s.conn.end(err)
	}
	s.phase = sessionOver
}

func (s *session) setSubscription(sub Subscription) {
	s.mu.Lock()
	s.sub = sub
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		sub.Unsubscribe()
	}
}

func (s *session) stop() {
	s.mu.Lock()
	s.stopped = true
	sub := s.sub
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
