package libwsrx

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestKeepAlive_PingsWhileConnected(t *testing.T) {
	sock := &mockSocket{}
	r := New(NoopLogger, sock)

	var pings atomic.Int32
	sock.fireConnect()
	sock.On("WritePing", []byte("hb"), mock.Anything).Run(func(args mock.Arguments) {
		pings.Add(1)
		completeWith(1)(args)
	})

	ka := NewKeepAlive(NoopLogger, r, 5*time.Millisecond, func() []byte { return []byte("hb") })
	ka.Start(context.Background())
	ka.Start(context.Background())
	defer ka.Close()

	assert.Eventually(t, func() bool { return pings.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestKeepAlive_SkipsWhileDisconnected(t *testing.T) {
	sock := &mockSocket{}
	r := New(NoopLogger, sock)

	ka := NewKeepAlive(NoopLogger, r, 5*time.Millisecond, nil)
	ka.Start(context.Background())

	time.Sleep(30 * time.Millisecond)
	ka.Close()
	ka.Close()

	sock.AssertNotCalled(t, "WritePing", mock.Anything, mock.Anything)
}

func TestKeepAlive_StopsWithContext(t *testing.T) {
	sock := &mockSocket{}
	r := New(NoopLogger, sock)

	var pings atomic.Int32
	sock.fireConnect()
	sock.On("WritePing", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		pings.Add(1)
		completeWith(1)(args)
	})

	ctx, cancel := context.WithCancel(context.Background())
	ka := NewKeepAlive(NoopLogger, r, 5*time.Millisecond, NewTimestampPingPayloadFactory())
	ka.Start(ctx)

	assert.Eventually(t, func() bool { return pings.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	stopped := pings.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, pings.Load())
}

func TestNewKeepAliveFromConfig(t *testing.T) {
	sock := &mockSocket{}
	r := New(NoopLogger, sock)

	_, ok := NewKeepAliveFromConfig(NoopLogger, r, &SocketConfig{URL: "ws://localhost/ws"})
	assert.False(t, ok, "zero interval disables keep-alive")

	var pings atomic.Int32
	sock.fireConnect()
	sock.On("WritePing", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		assert.NotEmpty(t, args.Get(0).([]byte))
		pings.Add(1)
		completeWith(1)(args)
	})

	ka, ok := NewKeepAliveFromConfig(NoopLogger, r, &SocketConfig{
		URL:          "ws://localhost/ws",
		PingInterval: 5 * time.Millisecond,
	})
	assert.True(t, ok)
	ka.Start(context.Background())
	defer ka.Close()

	assert.Eventually(t, func() bool { return pings.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
