package libwsrx

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type codedError struct {
	code int
	msg  string
}

func (e codedError) Error() string { return e.msg }

func codedErrorKind(a, b error) (bool, bool) {
	var ca, cb codedError
	if !errors.As(a, &ca) || !errors.As(b, &cb) {
		return false, false
	}
	return ca.code == cb.code, true
}

func TestErrorKinds_Register(t *testing.T) {
	kinds := NewErrorKinds()

	a := codedError{code: 1, msg: "a"}
	b := codedError{code: 1, msg: "b"}

	assert.False(t, kinds.Equal(a, b), "unregistered kind compares by identity")

	kinds.Register(codedErrorKind)

	assert.True(t, kinds.Equal(a, b))
	assert.False(t, kinds.Equal(a, codedError{code: 2, msg: "a"}))
}

func TestErrorKinds_FirstRecognizingKindWins(t *testing.T) {
	alwaysEqual := func(a, b error) (bool, bool) { return true, true }
	kinds := NewErrorKinds(TransportErrorKind, alwaysEqual)

	assert.False(t, kinds.Equal(
		NewTransportError(CategoryClose, 1, nil),
		NewTransportError(CategoryClose, 2, nil),
	))
	assert.True(t, kinds.Equal(errors.New("a"), errors.New("b")))
}

func TestErrorKinds_Nil(t *testing.T) {
	kinds := NewErrorKinds()

	assert.True(t, kinds.Equal(nil, nil))
	assert.False(t, kinds.Equal(ErrUnknown, nil))
	assert.False(t, kinds.Equal(nil, ErrUnknown))
}

func TestTransportError_Unwrap(t *testing.T) {
	err := NewTransportError(CategoryDial, 429, errors.Wrap(ErrRateLimit, "slow down"))

	assert.True(t, errors.Is(err, ErrRateLimit))
	assert.Contains(t, err.Error(), "category=dial code=429")
}
