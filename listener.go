package loom

import (
	"net"
	"time"
)

// limitListener wraps a net.Listener and bounds the number of
// simultaneously open connections it has handed out, releasing one slot
// per connection Close. Grounded on the teacher's listener.go TCP
// keep-alive wrapper, generalized into a counting semaphore.
type limitListener struct {
	net.Listener
	sem chan struct{}
}

func newLimitListener(ln net.Listener, max int) net.Listener {
	return &limitListener{Listener: ln, sem: make(chan struct{}, max)}
}

func (l *limitListener) Accept() (net.Conn, error) {
	l.sem <- struct{}{}
	c, err := l.Listener.Accept()
	if err != nil {
		<-l.sem
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(3 * time.Minute)
	}
	return &limitConn{Conn: c, release: func() { <-l.sem }}, nil
}

type limitConn struct {
	net.Conn
	release  func()
	released bool
}

func (c *limitConn) Close() error {
	err := c.Conn.Close()
	if !c.released {
		c.released = true
		c.release()
	}
	return err
}
