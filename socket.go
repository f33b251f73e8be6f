package libwsrx

type (
	// Socket is the callback-based websocket client being bridged. Actions are fire-and-forget:
	// their outcome is reported later through the installed Delegate or the completion func.
	Socket interface {
		// Connect starts opening the connection. Delegate.OnConnect or Delegate.OnDisconnect
		// reports the outcome.
		Connect()
		// Disconnect starts closing the connection. Delegate.OnDisconnect reports the outcome.
		Disconnect()
		// IsConnected reports whether the connection is open.
		IsConnected() bool
		// WriteData writes a binary frame and invokes completion once done.
		WriteData(data []byte, completion func())
		// WritePing writes a ping control frame and invokes completion once done.
		WritePing(payload []byte, completion func())
		// WriteString writes a text frame and invokes completion once done.
		WriteString(text string, completion func())
		// Delegate returns the delegate currently notified by the socket, if any.
		Delegate() Delegate
		// SetDelegate replaces the delegate notified by the socket.
		SetDelegate(d Delegate)
	}

	// Delegate receives the notifications of a Socket. Each callback kind is invoked serially by
	// the socket, although different kinds may be invoked concurrently.
	Delegate interface {
		OnConnect(s Socket)
		OnDisconnect(s Socket, err error)
		OnReceiveMessage(s Socket, text string)
		OnReceiveData(s Socket, data []byte)
	}

	// PongDelegate is an optional capability of a Delegate. Sockets notify pongs only to
	// delegates implementing it.
	PongDelegate interface {
		OnReceivePong(s Socket, payload []byte)
	}

	CloseChan chan struct{}
)
