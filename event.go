package libwsrx

import (
	"bytes"
	"fmt"
)

type EventType byte

const (
	EventConnected EventType = iota + 1
	EventDisconnected
	EventMessage
	EventData
	EventPong
)

func (t EventType) Is(other EventType) bool {
	return t == other
}

func (t EventType) IsConnected() bool {
	return t.Is(EventConnected)
}

func (t EventType) IsDisconnected() bool {
	return t.Is(EventDisconnected)
}

func (t EventType) IsMessage() bool {
	return t.Is(EventMessage)
}

func (t EventType) IsData() bool {
	return t.Is(EventData)
}

func (t EventType) IsPong() bool {
	return t.Is(EventPong)
}

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventMessage:
		return "message"
	case EventData:
		return "data"
	case EventPong:
		return "pong"
	default:
		return "unknown"
	}
}

// Event is one notification surfaced by a Socket. Only the fields relevant to Type are set:
// Err for disconnections, Text for messages, Data for binary frames and pong payloads.
type Event struct {
	Type EventType
	Err  error
	Text string
	Data []byte
}

func ConnectedEvent() Event {
	return Event{Type: EventConnected}
}

func DisconnectedEvent(err error) Event {
	return Event{Type: EventDisconnected, Err: err}
}

func MessageEvent(text string) Event {
	return Event{Type: EventMessage, Text: text}
}

func DataEvent(data []byte) Event {
	return Event{Type: EventData, Data: data}
}

func PongEvent(payload []byte) Event {
	return Event{Type: EventPong, Data: payload}
}

// Equal reports whether both events are structurally the same. Disconnection errors are compared
// through DefaultErrorKinds and pong payloads are ignored.
func (e Event) Equal(other Event) bool {
	if e.Type != other.Type {
		return false
	}

	switch e.Type {
	case EventConnected, EventPong:
		return true
	case EventDisconnected:
		return DefaultErrorKinds.Equal(e.Err, other.Err)
	case EventMessage:
		return e.Text == other.Text
	case EventData:
		return bytes.Equal(e.Data, other.Data)
	default:
		return false
	}
}

func (e Event) String() string {
	switch e.Type {
	case EventDisconnected:
		return fmt.Sprintf("Event{type=%s,err=%v}", e.Type, e.Err)
	case EventMessage:
		return fmt.Sprintf("Event{type=%s,text=%s}", e.Type, e.Text)
	case EventData, EventPong:
		return fmt.Sprintf("Event{type=%s,len=%d}", e.Type, len(e.Data))
	default:
		return fmt.Sprintf("Event{type=%s}", e.Type)
	}
}
