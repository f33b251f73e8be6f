package libwsrx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const closeMeCode = 4000

// newEchoServer echoes every frame back. The text "close-me" makes it close the connection
// with closeMeCode.
func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			if mt == websocket.TextMessage && string(data) == "close-me" {
				msg := websocket.FormatCloseMessage(closeMeCode, "bye")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return
			}

			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestWsSocket(t *testing.T, url string) *WsSocket {
	t.Helper()

	sock, err := NewWsSocketFromConfig(NoopLogger, &SocketConfig{
		URL:              url,
		HandshakeTimeout: time.Second,
		WriteTimeout:     time.Second,
		CloseGracePeriod: 500 * time.Millisecond,
	})
	require.NoError(t, err)
	return sock
}

func waitEvent(t *testing.T, ch <-chan Event, match func(Event) bool) Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("event not received in time")
			return Event{}
		}
	}
}

func TestWsSocket_RoundTrip(t *testing.T) {
	srv := newEchoServer(t)
	logger := NewWriterLogger(io.Discard, "debug")

	sock, err := NewWsSocketFromConfig(logger, &SocketConfig{URL: wsURL(srv)})
	require.NoError(t, err)
	r := New(logger, sock)

	events := make(chan Event, 64)
	r.Response().Subscribe(func(e Event) { events <- e }, nil)

	ctx := testContext(t)

	assert.False(t, sock.IsConnected())
	require.NoError(t, r.Connect(ctx))
	assert.True(t, sock.IsConnected())

	require.NoError(t, r.WriteString(ctx, "hello"))
	e := waitEvent(t, events, func(e Event) bool { return e.Type.IsMessage() })
	assert.Equal(t, "hello", e.Text)

	require.NoError(t, r.WriteData(ctx, []byte{1, 2, 3}))
	e = waitEvent(t, events, func(e Event) bool { return e.Type.IsData() })
	assert.Equal(t, []byte{1, 2, 3}, e.Data)

	require.NoError(t, r.WritePing(ctx, []byte("ping")))
	e = waitEvent(t, events, func(e Event) bool { return e.Type.IsPong() })
	assert.Equal(t, []byte("ping"), e.Data)

	require.NoError(t, r.Disconnect(ctx))
	assert.False(t, sock.IsConnected())
	assert.Equal(t, StateIdle, r.State())

	e = waitEvent(t, events, func(e Event) bool { return e.Type.IsDisconnected() })
	assert.NoError(t, e.Err)

	// Already closed: resolves without touching the socket.
	require.NoError(t, r.Disconnect(ctx))
}

func TestWsSocket_Reconnect(t *testing.T) {
	srv := newEchoServer(t)
	sock := newTestWsSocket(t, wsURL(srv))
	r := New(NoopLogger, sock)
	ctx := testContext(t)

	var states []bool
	statesC := make(chan bool, 8)
	r.Connected().Subscribe(func(v bool) { statesC <- v }, nil)

	for i := 0; i < 2; i++ {
		require.NoError(t, r.Connect(ctx))
		require.NoError(t, r.Disconnect(ctx))
	}

	for i := 0; i < 4; i++ {
		select {
		case v := <-statesC:
			states = append(states, v)
		case <-time.After(2 * time.Second):
			t.Fatal("connection state not received in time")
		}
	}

	assert.Equal(t, []bool{true, false, true, false}, states)
}

func TestWsSocket_ServerCloseEndsSession(t *testing.T) {
	srv := newEchoServer(t)
	sock := newTestWsSocket(t, wsURL(srv))
	r := New(NoopLogger, sock)
	ctx := testContext(t)

	conn, err := r.ConnectSession(ctx)
	require.NoError(t, err)

	require.NoError(t, r.WriteString(ctx, "close-me"))

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}

	var te *TransportError
	require.True(t, errors.As(conn.Err(), &te))
	assert.Equal(t, CategoryClose, te.Category)
	assert.Equal(t, closeMeCode, te.Code)

	expected := DisconnectedEvent(NewTransportError(CategoryClose, closeMeCode, nil))
	assert.True(t, expected.Equal(DisconnectedEvent(conn.Err())))
	assert.False(t, sock.IsConnected())
}

func TestWsSocket_DisconnectFromTextCallback(t *testing.T) {
	srv := newEchoServer(t)
	sock := newTestWsSocket(t, wsURL(srv))
	r := New(NoopLogger, sock)
	ctx := testContext(t)

	result := make(chan error, 1)
	r.Text().Subscribe(func(text string) {
		if text == "bye" {
			result <- r.Disconnect(ctx)
		}
	}, nil)

	require.NoError(t, r.Connect(ctx))
	require.NoError(t, r.WriteString(ctx, "bye"))

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("disconnect awaited from a text callback did not resolve")
	}
	assert.False(t, sock.IsConnected())
	assert.Equal(t, StateIdle, r.State())
}

func TestWsSocket_ConnectWhileConnected(t *testing.T) {
	srv := newEchoServer(t)
	sock := newTestWsSocket(t, wsURL(srv))
	r := New(NoopLogger, sock)
	ctx := testContext(t)

	var connections atomic.Int32
	r.Connected().Subscribe(func(v bool) {
		if v {
			connections.Add(1)
		}
	}, nil)

	require.NoError(t, r.Connect(ctx))
	require.NoError(t, r.Connect(ctx))

	// The socket itself ignores the second call as well.
	sock.Connect()

	require.NoError(t, r.Disconnect(ctx))
	flush(r)

	assert.Equal(t, int32(1), connections.Load())
}

func TestWsSocket_DialErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"forbidden", http.StatusForbidden, ErrCannotConnect},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			sock := newTestWsSocket(t, wsURL(srv))
			r := New(NoopLogger, sock)

			err := r.Connect(testContext(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, CategoryDial, te.Category)
			assert.Equal(t, tt.status, te.Code)
			assert.False(t, sock.IsConnected())
		})
	}
}

func TestWsSocket_WriteWithoutConnection(t *testing.T) {
	sock := newTestWsSocket(t, "ws://127.0.0.1:1/ws")

	var completed bool
	sock.WriteString("dropped", func() { completed = true })

	assert.True(t, completed)
}

func TestWsSocket_ForwardsToPreviousDelegate(t *testing.T) {
	srv := newEchoServer(t)
	sock := newTestWsSocket(t, wsURL(srv))

	messages := make(chan string, 1)
	sock.SetDelegate(&mockDelegate{
		OnReceiveMessageFunc: func(_ Socket, text string) { messages <- text },
	})

	r := New(NoopLogger, sock)
	ctx := testContext(t)

	require.NoError(t, r.Connect(ctx))
	require.NoError(t, r.WriteString(ctx, "both"))

	select {
	case text := <-messages:
		assert.Equal(t, "both", text)
	case <-time.After(2 * time.Second):
		t.Fatal("previous delegate not notified")
	}

	require.NoError(t, r.Disconnect(ctx))
}
