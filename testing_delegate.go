package libwsrx

type mockDelegate struct {
	OnConnectFunc        func(s Socket)
	OnDisconnectFunc     func(s Socket, err error)
	OnReceiveMessageFunc func(s Socket, text string)
	OnReceiveDataFunc    func(s Socket, data []byte)
}

func (m *mockDelegate) OnConnect(s Socket) {
	if m.OnConnectFunc != nil {
		m.OnConnectFunc(s)
	}
}

func (m *mockDelegate) OnDisconnect(s Socket, err error) {
	if m.OnDisconnectFunc != nil {
		m.OnDisconnectFunc(s, err)
	}
}

func (m *mockDelegate) OnReceiveMessage(s Socket, text string) {
	if m.OnReceiveMessageFunc != nil {
		m.OnReceiveMessageFunc(s, text)
	}
}

func (m *mockDelegate) OnReceiveData(s Socket, data []byte) {
	if m.OnReceiveDataFunc != nil {
		m.OnReceiveDataFunc(s, data)
	}
}

type mockPongDelegate struct {
	mockDelegate
	OnReceivePongFunc func(s Socket, payload []byte)
}

func (m *mockPongDelegate) OnReceivePong(s Socket, payload []byte) {
	if m.OnReceivePongFunc != nil {
		m.OnReceivePongFunc(s, payload)
	}
}
