package loom

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitListenerAcceptConsumesAndReleasesSlot(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer ln.Close()

	limited := newLimitListener(ln, 1).(*limitListener)

	clientDone := make(chan struct{})
	go func() {
		c, derr := net.Dial("tcp", ln.Addr().String())
		assert.NoError(t, derr)
		<-clientDone
		c.Close()
	}()

	conn, err := limited.Accept()
	assert.NoError(t, err)
	assert.Len(t, limited.sem, 1)

	close(clientDone)
	assert.NoError(t, conn.Close())
	assert.Len(t, limited.sem, 0)
}

func TestLimitListenerWrapsAcceptedConn(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer ln.Close()

	limited := newLimitListener(ln, 4)

	clientDone := make(chan struct{})
	go func() {
		c, derr := net.Dial("tcp", ln.Addr().String())
		assert.NoError(t, derr)
		<-clientDone
		c.Close()
	}()

	conn, err := limited.Accept()
	assert.NoError(t, err)
	_, ok := conn.(*limitConn)
	assert.True(t, ok)

	close(clientDone)
	assert.NoError(t, conn.Close())
}

func TestLimitConnCloseIsIdempotent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer ln.Close()

	limited := newLimitListener(ln, 2).(*limitListener)

	clientDone := make(chan struct{})
	go func() {
		c, derr := net.Dial("tcp", ln.Addr().String())
		assert.NoError(t, derr)
		<-clientDone
		c.Close()
	}()

	conn, err := limited.Accept()
	assert.NoError(t, err)

	close(clientDone)
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
	assert.Len(t, limited.sem, 0)
}
