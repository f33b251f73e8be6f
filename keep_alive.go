package libwsrx

import (
	"context"
	"sync"
	"time"
)

type PingPayloadFactory func() []byte

// KeepAlive periodically pings the peer through a Reactive while its socket is connected.
type KeepAlive struct {
	reactive       *Reactive
	pingInterval   time.Duration
	payloadFactory PingPayloadFactory
	logger         logger

	runOnce   sync.Once
	closeOnce sync.Once
	closeC    CloseChan
}

// NewKeepAlive returns a KeepAlive pinging every interval. A nil payloadFactory sends empty pings.
func NewKeepAlive(
	logger logger,
	r *Reactive,
	interval time.Duration,
	payloadFactory PingPayloadFactory,
) *KeepAlive {
	if payloadFactory == nil {
		payloadFactory = func() []byte { return nil }
	}

	return &KeepAlive{
		reactive:       r,
		pingInterval:   interval,
		payloadFactory: payloadFactory,
		logger:         logger.WithField("type", "keepAlive"),
		closeC:         make(CloseChan),
	}
}

// NewKeepAliveFromConfig returns a KeepAlive pinging every cfg.PingInterval with timestamp
// payloads. It reports false when the interval disables keep-alive.
func NewKeepAliveFromConfig(logger logger, r *Reactive, cfg *SocketConfig) (*KeepAlive, bool) {
	if cfg.PingInterval <= 0 {
		return nil, false
	}
	return NewKeepAlive(logger, r, cfg.PingInterval, NewTimestampPingPayloadFactory()), true
}

// Start runs the ping routine in the background. It only executes once, subsequent calls have
// no effect.
func (k *KeepAlive) Start(ctx context.Context) {
	k.runOnce.Do(func() {
		go k.run(ctx)
	})
}

// Close stops the ping routine. It only executes once, subsequent calls have no effect.
func (k *KeepAlive) Close() {
	k.closeOnce.Do(func() {
		close(k.closeC)
	})
}

func (k *KeepAlive) run(ctx context.Context) {
	ticker := time.NewTicker(k.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-k.closeC:
			return
		case <-ticker.C:
			if !k.reactive.Socket().IsConnected() {
				continue
			}

			if err := k.ping(ctx); err != nil {
				k.logger.Warnf("ping not completed: %s", err)
			}
		}
	}
}

func (k *KeepAlive) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, k.pingInterval)
	defer cancel()

	return k.reactive.WritePing(ctx, k.payloadFactory())
}

// NewTimestampPingPayloadFactory returns pings carrying the current UTC time.
func NewTimestampPingPayloadFactory() PingPayloadFactory {
	return func() []byte {
		return []byte(time.Now().UTC().Format(time.RFC3339Nano))
	}
}
