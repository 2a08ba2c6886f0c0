// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubTransport struct {
	sent     int
	sendErr  error
	closeErr error
	closed   bool
}

func (s *stubTransport) Send(Reading) error {
	s.sent++
	return s.sendErr
}

func (s *stubTransport) Close() error {
	s.closed = true
	return s.closeErr
}

func TestMultiSendTriesEveryTransport(t *testing.T) {
	first := errors.New("first")
	a := &stubTransport{}
	b := &stubTransport{sendErr: first}
	c := &stubTransport{sendErr: errors.New("second")}

	err := Multi{a, b, c}.Send(Reading{})
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 1, a.sent)
	assert.Equal(t, 1, b.sent)
	assert.Equal(t, 1, c.sent)
}

func TestMultiCloseJoinsErrors(t *testing.T) {
	e1 := errors.New("e1")
	e2 := errors.New("e2")
	a := &stubTransport{closeErr: e1}
	b := &stubTransport{}
	c := &stubTransport{closeErr: e2}

	err := Multi{a, b, c}.Close()
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
	assert.True(t, a.closed && b.closed && c.closed)

	assert.NoError(t, Multi{}.Close())
	assert.NoError(t, Multi{NewLoggingTransport()}.Send(Reading{}))
}
