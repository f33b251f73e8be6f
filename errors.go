package libwsrx

import (
	"fmt"
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
)

var (
	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrUnknown          = errors.New("connection ended for an unknown reason")
	ErrStreamCompleted  = errors.New("event stream completed before the operation resolved")
	ErrInvalidConfig    = errors.New("invalid socket config")
)

const (
	CategoryDial  = "dial"
	CategoryClose = "close"
)

// TransportError is the error kind surfaced by a Socket on disconnection. Two transport errors are
// considered the same when they share Code and Category, whatever their cause.
type TransportError struct {
	Code     int
	Category string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: category=%s code=%d: %v", e.Category, e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransportError(category string, code int, err error) *TransportError {
	return &TransportError{Code: code, Category: category, Err: err}
}

type (
	// ErrorEqualFunc compares two errors of a known kind. recognized must be false whenever either
	// error does not belong to the kind, in which case equal is ignored.
	ErrorEqualFunc func(a, b error) (equal, recognized bool)

	// ErrorKinds is an ordered registry of known error kinds used to compare disconnection errors.
	ErrorKinds struct {
		mu    sync.RWMutex
		kinds []ErrorEqualFunc
	}
)

// DefaultErrorKinds is used by Event.Equal.
var DefaultErrorKinds = NewErrorKinds(TransportErrorKind, CloseErrorKind)

func NewErrorKinds(kinds ...ErrorEqualFunc) *ErrorKinds {
	return &ErrorKinds{kinds: kinds}
}

// Register appends a kind. Kinds registered earlier take precedence.
func (k *ErrorKinds) Register(kind ErrorEqualFunc) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.kinds = append(k.kinds, kind)
}

// Equal compares a and b with the first kind recognizing both. Otherwise they are equal when
// each one is found in the chain of the other, which keeps the comparison symmetric.
func (k *ErrorKinds) Equal(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	k.mu.RLock()
	kinds := k.kinds
	k.mu.RUnlock()

	for _, kind := range kinds {
		if equal, recognized := kind(a, b); recognized {
			return equal
		}
	}

	return errors.Is(a, b) && errors.Is(b, a)
}

func TransportErrorKind(a, b error) (bool, bool) {
	var ta, tb *TransportError
	if !errors.As(a, &ta) || !errors.As(b, &tb) {
		return false, false
	}
	return ta.Code == tb.Code && ta.Category == tb.Category, true
}

func CloseErrorKind(a, b error) (bool, bool) {
	var ca, cb *websocket.CloseError
	if !errors.As(a, &ca) || !errors.As(b, &cb) {
		return false, false
	}
	return ca.Code == cb.Code, true
}
