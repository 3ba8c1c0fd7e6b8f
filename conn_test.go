package loom

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// pipeServer wires a serverConn over one end of a net.Pipe and returns the
// other end for the test to write a raw request into and read the raw
// response back from.
func pipeServer(t *testing.T, s *Server) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	c := newConn(s, server)
	go c.serve(context.Background())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnServesSizedResponse(t *testing.T) {
	s := NewServer("localhost:0")
	assert.NoError(t, s.GET("/hello", func(req *Request, res *Response) error {
		return res.SetPlaintext("world")
	}))
	assert.NoError(t, s.Build())

	conn := pipeServer(t, s)
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	_, err := conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	assert.NoError(t, err)

	br := bufio.NewReader(conn)
	status, _, _, err := readStatusLine(br)
	assert.NoError(t, err)
	assert.Equal(t, 200, status)

	header, err := readResponseHeader(br)
	assert.NoError(t, err)
	assert.Equal(t, "5", header.Get("Content-Length"))

	body := make([]byte, 5)
	_, err = readFull(br, body)
	assert.NoError(t, err)
	assert.Equal(t, "world", string(body))
}

func TestConnReadsChunkedRequestBody(t *testing.T) {
	s := NewServer("localhost:0")
	assert.NoError(t, s.POST("/echo", func(req *Request, res *Response) error {
		b, err := ReadAllLimited(req.Body, 1<<20)
		if err != nil {
			return err
		}
		return res.SetBody(b)
	}))
	assert.NoError(t, s.Build())

	conn := pipeServer(t, s)
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	req := "POST /echo HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\nConnection: close\r\n\r\n" +
		"5\r\nhello\r\n0\r\n\r\n"
	_, err := conn.Write([]byte(req))
	assert.NoError(t, err)

	br := bufio.NewReader(conn)
	status, _, _, err := readStatusLine(br)
	assert.NoError(t, err)
	assert.Equal(t, 200, status)

	header, err := readResponseHeader(br)
	assert.NoError(t, err)
	assert.Equal(t, "5", header.Get("Content-Length"))

	body := make([]byte, 5)
	_, err = readFull(br, body)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestConnKeepAliveServesSecondRequestOnSameConnection(t *testing.T) {
	s := NewServer("localhost:0")
	hits := 0
	assert.NoError(t, s.GET("/ping", func(req *Request, res *Response) error {
		hits++
		return res.SetPlaintext("pong")
	}))
	assert.NoError(t, s.Build())

	conn := pipeServer(t, s)
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	for i := 0; i < 2; i++ {
		_, err := conn.Write([]byte("GET /ping HTTP/1.1\r\nHost: x\r\n\r\n"))
		assert.NoError(t, err)

		br := bufio.NewReader(conn)
		status, _, _, err := readStatusLine(br)
		assert.NoError(t, err)
		assert.Equal(t, 200, status)
		header, err := readResponseHeader(br)
		assert.NoError(t, err)
		body := make([]byte, 4)
		_, err = readFull(br, body)
		assert.NoError(t, err)
		assert.Equal(t, "pong", string(body))
		_ = header
	}
	assert.Equal(t, 2, hits)
}

func TestConnNotFoundResponse(t *testing.T) {
	s := NewServer("localhost:0")
	assert.NoError(t, s.Build())

	conn := pipeServer(t, s)
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	_, err := conn.Write([]byte("GET /nope HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	assert.NoError(t, err)

	br := bufio.NewReader(conn)
	status, _, _, err := readStatusLine(br)
	assert.NoError(t, err)
	assert.Equal(t, 404, status)
}

func TestConnWrites100ContinueBeforeReadingBody(t *testing.T) {
	s := NewServer("localhost:0")
	assert.NoError(t, s.POST("/echo", func(req *Request, res *Response) error {
		b, err := ReadAllLimited(req.Body, 1<<20)
		if err != nil {
			return err
		}
		return res.SetBody(b)
	}))
	assert.NoError(t, s.Build())

	conn := pipeServer(t, s)
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	head := "POST /echo HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n" +
		"Expect: 100-continue\r\nConnection: close\r\n\r\n"
	_, err := conn.Write([]byte(head))
	assert.NoError(t, err)

	br := bufio.NewReader(conn)
	status, _, _, err := readStatusLine(br)
	assert.NoError(t, err)
	assert.Equal(t, 100, status)

	header, err := readResponseHeader(br)
	assert.NoError(t, err)
	assert.Empty(t, header.Get("Content-Length"))

	_, err = conn.Write([]byte("hello"))
	assert.NoError(t, err)

	status, _, _, err = readStatusLine(br)
	assert.NoError(t, err)
	assert.Equal(t, 200, status)

	header, err = readResponseHeader(br)
	assert.NoError(t, err)
	assert.Equal(t, "5", header.Get("Content-Length"))

	body := make([]byte, 5)
	_, err = readFull(br, body)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func readFull(br *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := br.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
