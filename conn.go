package loom

import (
	"bufio"
	"context"
	"io"
	"io/ioutil"
	"net"
	"strconv"
	"strings"
	"time"
)

// serverConn drives the per-phase deadline state machine for one accepted
// connection: parse a request head, dispatch it through the route tree,
// serialize the response, drain any unread body, then either loop for the
// next request (keep-alive) or close.
type serverConn struct {
	server   *Server
	nc       net.Conn
	br       *bufio.Reader
	hijacked bool
}

func newConn(s *Server, nc net.Conn) *serverConn {
	return &serverConn{server: s, nc: nc, br: bufio.NewReaderSize(nc, 4096)}
}

func (c *serverConn) serve(ctx context.Context) {
	defer func() {
		if !c.hijacked {
			c.nc.Close()
		}
	}()

	local := c.nc.LocalAddr().String()
	remote := c.nc.RemoteAddr().String()

	c.nc.SetReadDeadline(time.Now().Add(c.server.readHeaderTimeout()))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Wait for the first byte of the next head under the deadline
		// already set (header timeout first, idle timeout between requests).
		if _, err := c.br.Peek(1); err != nil {
			return
		}
		c.nc.SetReadDeadline(time.Now().Add(c.server.readHeaderTimeout()))
		req, err := c.readHead(local, remote)
		if err != nil {
			if k, ok := KindOf(err); ok && (k == KindParseError || k == KindBadRequest) {
				c.nc.SetWriteDeadline(time.Now().Add(c.server.writeTimeout()))
				io.WriteString(c.nc, "HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\nConnection: close\r\n\r\n")
			}
			if err == io.EOF {
				return
			}
			return
		}

		req = req.WithContext(ctx)
		req.hijack = c.doHijack

		if req.expectContinue {
			c.nc.SetWriteDeadline(time.Now().Add(c.server.writeTimeout()))
			if _, werr := io.WriteString(c.nc, "HTTP/1.1 100 Continue\r\n\r\n"); werr != nil {
				return
			}
		}

		res := NewResponse()
		c.dispatch(req, res)

		if c.hijacked {
			return
		}

		c.nc.SetWriteDeadline(time.Now().Add(c.server.writeTimeout()))
		if err := c.writeResponse(res); err != nil {
			return
		}

		c.nc.SetReadDeadline(time.Now().Add(c.server.readBodyTimeout()))
		if err := c.drainBody(req); err != nil {
			return
		}

		if !c.keepAlive(req, res) {
			return
		}

		idle := c.server.IdleTimeout
		if idle <= 0 {
			idle = c.server.readHeaderTimeout()
		}
		c.nc.SetReadDeadline(time.Now().Add(idle))
	}
}

// doHijack hands the raw connection to the caller and marks it so the
// connection's own serve loop stops managing it once the current
// dispatch returns.
func (c *serverConn) doHijack() (net.Conn, *bufio.Reader, error) {
	if c.hijacked {
		return nil, nil, NewError(KindInternal, "loom: connection already hijacked", nil)
	}
	c.hijacked = true
	return c.nc, c.br, nil
}

func (c *serverConn) dispatch(req *Request, res *Response) {
	defer func() {
		if r := recover(); r != nil {
			c.server.Logger.Error("loom: panic recovered in handler", "panic", r)
			if !res.Committed {
				res.Status = 500
				res.Body = NullBody()
				res.Header.Del("Content-Length")
			}
		}
	}()

	dispatched, err := c.server.Dispatch(req)
	if err != nil {
		c.server.ExceptionHandler(err, req, res)
		return
	}
	*res = *dispatched
}

// readHead parses one request-line + header block off the connection.
func (c *serverConn) readHead(local, remote string) (*Request, error) {
	line, err := c.readHeadLine()
	if err != nil {
		return nil, err
	}
	total := len(line) + 2
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, NewError(KindParseError, "loom: malformed request line", nil)
	}
	method, target, version := parts[0], parts[1], parts[2]

	path, rawQuery := target, ""
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		path, rawQuery = target[:idx], target[idx+1:]
	}
	if path == "" {
		path = "/"
	}

	header := NewHeader()
	for {
		hl, err := c.readHeadLine()
		if err != nil {
			return nil, err
		}
		if hl == "" {
			break
		}
		total += len(hl) + 2
		if max := c.server.MaxHeaderBytes; max > 0 && total > max {
			return nil, NewError(KindBadRequest, "loom: request head too large", nil)
		}
		idx := strings.IndexByte(hl, ':')
		if idx < 0 {
			return nil, NewError(KindParseError, "loom: malformed header line", nil)
		}
		name := hl[:idx]
		value := strings.TrimSpace(hl[idx+1:])
		header.Add(name, value)
	}

	req := &Request{
		Method:   method,
		Version:  version,
		Path:     path,
		RawQuery: rawQuery,
		Header:   header,
		Conn:     ConnectInfo{LocalAddr: local, RemoteAddr: remote},
		State:    newState(),
	}

	if header.HasToken("Expect", "100-continue") {
		req.expectContinue = true
	}

	req.Body = c.bodyFor(header)

	return req, nil
}

func (c *serverConn) bodyFor(header *Header) Body {
	if header.HasToken("Transfer-Encoding", "chunked") {
		return ChunkedBody(newChunkReader(c.br))
	}
	if cl := header.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err == nil && n > 0 {
			return SizedBody(io.LimitReader(c.br, n), n)
		}
	}
	return NullBody()
}

const maxHeadLineLength = 1 << 16

func (c *serverConn) readHeadLine() (string, error) {
	line, err := c.br.ReadString('\n')
	if err != nil {
		if len(line) == 0 {
			return "", err
		}
		return "", NewError(KindParseError, "loom: truncated request head", err)
	}
	if len(line) > maxHeadLineLength {
		return "", NewError(KindBadRequest, "loom: request head line too long", nil)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *serverConn) writeResponse(res *Response) error {
	res.Committed = true

	var statusLine string
	if res.Version == "" {
		res.Version = "HTTP/1.1"
	}
	statusLine = res.Version + " " + strconv.Itoa(res.Status) + " " + statusText(res.Status) + "\r\n"
	if _, err := io.WriteString(c.nc, statusLine); err != nil {
		return err
	}

	switch res.Body.Kind {
	case BodySized:
		res.Header.Set("Content-Length", strconv.FormatInt(res.Body.Length, 10))
		res.Header.Del("Transfer-Encoding")
	case BodyChunked:
		res.Header.Set("Transfer-Encoding", "chunked")
		res.Header.Del("Content-Length")
	default:
		res.Header.Set("Content-Length", "0")
		res.Header.Del("Transfer-Encoding")
	}

	if _, err := res.Header.WriteTo(c.nc); err != nil {
		return err
	}
	if _, err := io.WriteString(c.nc, "\r\n"); err != nil {
		return err
	}

	switch res.Body.Kind {
	case BodySized:
		if res.Body.Reader != nil {
			if _, err := io.CopyN(c.nc, res.Body, res.Body.Length); err != nil && err != io.EOF {
				return err
			}
		}
	case BodyChunked:
		cw := newChunkWriter(c.nc)
		if res.Body.Reader != nil {
			if _, err := io.Copy(cw, res.Body); err != nil {
				return err
			}
		}
		if err := cw.Close(); err != nil {
			return err
		}
	}
	return nil
}

// drainBody reads any bytes of req's body the handler left unread, so the
// next request head on this connection starts at the right offset.
func (c *serverConn) drainBody(req *Request) error {
	if req.Body.Kind == BodyNull {
		return nil
	}
	_, err := io.Copy(ioutil.Discard, req.Body)
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (c *serverConn) keepAlive(req *Request, res *Response) bool {
	if res.Header.HasToken("Connection", "close") {
		return false
	}
	if req.Version == "HTTP/1.0" {
		return req.Header.HasToken("Connection", "keep-alive")
	}
	return !req.Header.HasToken("Connection", "close")
}

func statusText(code int) string {
	if t, ok := statusTexts[code]; ok {
		return t
	}
	return "Status"
}

var statusTexts = map[int]string{
	100: "Continue",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	409: "Conflict",
	413: "Payload Too Large",
	415: "Unsupported Media Type",
	416: "Range Not Satisfiable",
	500: "Internal Server Error",
	502: "Bad Gateway",
	503: "Service Unavailable",
}
