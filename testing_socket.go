package libwsrx

import (
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"
)

// mockSocket records actions through mock.Mock. The fire* helpers play the role of the
// transport invoking the installed delegate; IsConnected follows fireConnect and fireDisconnect.
type mockSocket struct {
	mock.Mock

	mu        sync.Mutex
	delegate  Delegate
	connected atomic.Bool
}

func (m *mockSocket) Connect() {
	m.Called()
}

func (m *mockSocket) Disconnect() {
	m.Called()
}

func (m *mockSocket) IsConnected() bool {
	return m.connected.Load()
}

func (m *mockSocket) WriteData(data []byte, completion func()) {
	m.Called(data, completion)
}

func (m *mockSocket) WritePing(payload []byte, completion func()) {
	m.Called(payload, completion)
}

func (m *mockSocket) WriteString(text string, completion func()) {
	m.Called(text, completion)
}

func (m *mockSocket) Delegate() Delegate {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.delegate
}

func (m *mockSocket) SetDelegate(d Delegate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.delegate = d
}

func (m *mockSocket) fireConnect() {
	m.connected.Store(true)
	m.Delegate().OnConnect(m)
}

func (m *mockSocket) fireDisconnect(err error) {
	m.connected.Store(false)
	m.Delegate().OnDisconnect(m, err)
}

func (m *mockSocket) fireMessage(text string) {
	m.Delegate().OnReceiveMessage(m, text)
}

func (m *mockSocket) fireData(data []byte) {
	m.Delegate().OnReceiveData(m, data)
}

func (m *mockSocket) firePong(payload []byte) {
	if pd, ok := m.Delegate().(PongDelegate); ok {
		pd.OnReceivePong(m, payload)
	}
}

// completeWith is a mock Run func invoking the completion argument found at index i.
func completeWith(i int) func(mock.Arguments) {
	return func(args mock.Arguments) {
		args.Get(i).(func())()
	}
}
