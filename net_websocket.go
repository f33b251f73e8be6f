package libwsrx

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
)

var ErrRateLimit = errors.New("rate limit exceeded")

type (
	openConnectionParamsRepo interface {
		Get(ctx context.Context) (OpenConnectionParams, error)
	}

	ErrAdapter func(*websocket.Conn, *http.Response, error) error

	ErrorAdapters struct {
		OnDial ErrAdapter
	}

	outbound struct {
		messageType int
		data        []byte
		completion  func()
	}

	// wsSession is one open connection. Its loops stop when closeC is closed.
	wsSession struct {
		conn       *websocket.Conn
		send       chan outbound
		closeC     CloseChan
		closeOnce  sync.Once
		closing    atomic.Bool
		notified   atomic.Bool
		reason     error
		reasonOnce sync.Once
	}

	// WsSocket is a Socket over github.com/fasthttp/websocket. Actions run in the background and
	// report through the installed Delegate; frames are written by a single goroutine per session.
	WsSocket struct {
		errAdapters              ErrorAdapters
		openConnectionParamsRepo openConnectionParamsRepo
		logger                   logger
		dialer                   *websocket.Dialer
		writeTimeout             time.Duration
		closeGracePeriod         time.Duration

		mu       sync.Mutex
		delegate Delegate
		session  *wsSession
		dialing  bool
	}
)

func NewWsSocket(
	logger logger,
	dialer *websocket.Dialer,
	openParamsRepo openConnectionParamsRepo,
	errorHandlers ErrorAdapters,
) *WsSocket {
	return &WsSocket{
		errAdapters:              errorHandlers,
		dialer:                   dialer,
		openConnectionParamsRepo: openParamsRepo,
		writeTimeout:             defaultWriteTimeout,
		closeGracePeriod:         defaultCloseGracePeriod,
		logger:                   logger.WithField("net", "ws_socket"),
	}
}

// NewWsSocketFromConfig builds a WsSocket dialing the endpoint described by cfg.
func NewWsSocketFromConfig(logger logger, cfg *SocketConfig) (*WsSocket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	params, err := cfg.OpenConnectionParams()
	if err != nil {
		return nil, err
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	w := NewWsSocket(
		logger,
		dialer,
		NewOpenConnectionParamsRepo(logger, StaticOpenConnectionParams(params)),
		ErrorAdapters{},
	)
	if cfg.WriteTimeout > 0 {
		w.writeTimeout = cfg.WriteTimeout
	}
	if cfg.CloseGracePeriod > 0 {
		w.closeGracePeriod = cfg.CloseGracePeriod
	}

	return w, nil
}

func (w *WsSocket) Delegate() Delegate {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.delegate
}

func (w *WsSocket) SetDelegate(d Delegate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.delegate = d
}

func (w *WsSocket) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.session != nil
}

// Connect dials in the background. Calls made while dialing or connected are ignored: every
// OnConnect matches one established connection.
func (w *WsSocket) Connect() {
	w.mu.Lock()
	switch {
	case w.dialing:
		w.mu.Unlock()
		w.logger.Debugln("connect ignored, already dialing")
		return
	case w.session != nil:
		w.mu.Unlock()
		w.logger.Warnln("connect ignored, connection already open")
		return
	}
	w.dialing = true
	w.mu.Unlock()

	go w.open()
}

// Disconnect sends a close frame and closes the connection once the peer acknowledged it, or
// after the close grace period.
func (w *WsSocket) Disconnect() {
	w.mu.Lock()
	s := w.session
	w.mu.Unlock()

	if s == nil || !s.closing.CompareAndSwap(false, true) {
		return
	}

	w.logger.Infoln("closing connection from our side")

	deadline := time.Now().Add(w.writeTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		w.logger.Debugf("cannot write close frame: %s", err)
		s.shutdown()
		return
	}

	time.AfterFunc(w.closeGracePeriod, s.shutdown)
}

func (w *WsSocket) WriteData(data []byte, completion func()) {
	w.enqueue(outbound{messageType: websocket.BinaryMessage, data: data, completion: completion})
}

func (w *WsSocket) WritePing(payload []byte, completion func()) {
	w.enqueue(outbound{messageType: websocket.PingMessage, data: payload, completion: completion})
}

func (w *WsSocket) WriteString(text string, completion func()) {
	w.enqueue(outbound{messageType: websocket.TextMessage, data: []byte(text), completion: completion})
}

// enqueue hands the frame to the write loop. Without an open session nothing is written and
// the completion fires right away.
func (w *WsSocket) enqueue(out outbound) {
	w.mu.Lock()
	s := w.session
	w.mu.Unlock()

	if s == nil {
		w.logger.Warnln("write dropped, not connected")
		out.complete()
		return
	}

	select {
	case s.send <- out:
	case <-s.closeC:
		w.logger.Warnln("write dropped, connection closed")
		out.complete()
	}
}

func (o outbound) complete() {
	if o.completion != nil {
		o.completion()
	}
}

func (w *WsSocket) currentDelegate() Delegate {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.delegate
}

func (w *WsSocket) open() {
	s, err := w.dial()

	w.mu.Lock()
	w.dialing = false
	if err == nil {
		w.session = s
	}
	d := w.delegate
	w.mu.Unlock()

	if err != nil {
		if d != nil {
			d.OnDisconnect(w, err)
		}
		return
	}

	// Connected is notified before the read loop starts, so it precedes every frame.
	if d != nil {
		d.OnConnect(w)
	}

	go w.read(s)
	go w.write(s)
}

func (w *WsSocket) dial() (*wsSession, error) {
	ctx := context.Background()
	if w.dialer.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.dialer.HandshakeTimeout)
		defer cancel()
	}

	p, err := w.openConnectionParamsRepo.Get(ctx)
	if err != nil {
		return nil, NewTransportError(CategoryDial, 0, errors.Wrap(ErrCannotConnect, err.Error()))
	}

	conn, resp, err := w.dialer.DialContext(ctx, p.URL.String(), p.Header)
	if err = w.handleDialError(conn, resp, err); err != nil {
		w.logger.Errorf("connection err to %s: %s", p.URL.String(), err)
		if conn != nil {
			_ = conn.Close()
		}
		return nil, err
	}

	w.logger.Debugf("success opening connection to %s", p.URL.String())

	s := &wsSession{
		conn:   conn,
		send:   make(chan outbound),
		closeC: make(CloseChan),
	}

	conn.SetPongHandler(func(appData string) error {
		w.logger.Debugln("<= [PONG]")
		if pd, ok := w.currentDelegate().(PongDelegate); ok {
			pd.OnReceivePong(w, []byte(appData))
		}
		return nil
	})

	return s, nil
}

func (w *WsSocket) read(s *wsSession) {
	for {
		messageType, bts, err := s.conn.ReadMessage()
		if err != nil {
			w.finish(s, w.readError(s, err))
			return
		}

		d := w.currentDelegate()
		if d == nil {
			continue
		}

		switch messageType {
		case websocket.BinaryMessage:
			w.logger.Debugln("<= [BIN]")
			d.OnReceiveData(w, bts)
		default:
			w.logger.Debugf("<= [DATA] %s", string(bts))
			d.OnReceiveMessage(w, string(bts))
		}
	}
}

func (w *WsSocket) readError(s *wsSession, err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Code == websocket.CloseNormalClosure {
			return nil
		}
		return NewTransportError(CategoryClose, ce.Code, ce)
	}

	if s.closing.Load() {
		return nil
	}

	w.logger.Errorf("error occurred on websocket read: %s", err)
	return errors.Wrap(ErrConnectionClosed, "error occurred on websocket read: "+err.Error())
}

func (w *WsSocket) write(s *wsSession) {
	for {
		select {
		case <-s.closeC:
			return
		case out := <-s.send:
			err := w.writeFrame(s, out)
			out.complete()

			if err != nil {
				w.logger.Errorf("error occurred on websocket write: %s", err)
				if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.setReason(ErrConnectionClosed)
				} else {
					s.setReason(errors.Wrap(ErrConnectionClosed, err.Error()))
				}
				s.shutdown()
				return
			}
		}
	}
}

func (w *WsSocket) writeFrame(s *wsSession, out outbound) error {
	deadline := time.Now().Add(w.writeTimeout)

	switch out.messageType {
	case websocket.PingMessage:
		w.logger.Debugln("=> [PING]")
		return s.conn.WriteControl(websocket.PingMessage, out.data, deadline)
	case websocket.BinaryMessage:
		w.logger.Debugln("=> [BIN]")
	default:
		w.logger.Debugf("=> [DATA] %s", out.data)
	}

	_ = s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteMessage(out.messageType, out.data)
}

// finish releases the session and notifies the disconnection exactly once. A reason recorded by
// the write loop wins over the read error it caused.
func (w *WsSocket) finish(s *wsSession, readErr error) {
	s.setReason(readErr)
	s.shutdown()

	if s.notified.Swap(true) {
		return
	}

	w.mu.Lock()
	if w.session == s {
		w.session = nil
	}
	d := w.delegate
	w.mu.Unlock()

	if d != nil {
		d.OnDisconnect(w, s.reason)
	}
}

func (w *WsSocket) handleDialError(conn *websocket.Conn, resp *http.Response, err error) error {
	if w.errAdapters.OnDial != nil {
		return w.errAdapters.OnDial(conn, resp, err)
	}

	var (
		msg  string
		code int
	)

	if resp != nil {
		code = resp.StatusCode
		if resp.Body != nil {
			bts, rerr := io.ReadAll(resp.Body)
			if rerr == nil {
				msg = string(bts)
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return NewTransportError(CategoryDial, code, errors.Wrap(ErrRateLimit, msg))
		}
	}

	if err != nil {
		return NewTransportError(CategoryDial, code, errors.Wrap(ErrCannotConnect, err.Error()))
	}

	return nil
}

func (s *wsSession) setReason(err error) {
	s.reasonOnce.Do(func() {
		s.reason = err
	})
}

func (s *wsSession) shutdown() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		close(s.closeC)
	})
}
