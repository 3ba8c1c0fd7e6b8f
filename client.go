package loom

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// Client holds the transport policy used by (*Request).Send: dial/TLS
// timeouts and an optional shared TLS configuration. The zero Client is
// usable and matches DefaultClient.
type Client struct {
	// DialTimeout bounds the connect phase.
	//
	// Default value: 10s
	DialTimeout time.Duration

	// HandshakeTimeout bounds the TLS handshake phase, which runs only
	// when the URL scheme is "https".
	//
	// Default value: 10s
	HandshakeTimeout time.Duration

	// RequestTimeout bounds writing the request head and body.
	//
	// Default value: 30s
	RequestTimeout time.Duration

	// ResponseHeaderTimeout bounds reading the response head.
	//
	// Default value: 30s
	ResponseHeaderTimeout time.Duration

	// TLSConfig, when non-nil, is used for "https" requests instead of a
	// default crypto/tls.Config.
	TLSConfig *tls.Config
}

// DefaultClient is used by (*Request).Send when the caller has no custom
// Client policy to apply.
var DefaultClient = &Client{
	DialTimeout:           10 * time.Second,
	HandshakeTimeout:      10 * time.Second,
	RequestTimeout:        30 * time.Second,
	ResponseHeaderTimeout: 30 * time.Second,
}

// Send executes req against its target host over a fresh connection:
// resolve, connect, optionally TLS-handshake, serialize the request head
// and body (honoring Expect: 100-continue if set), then parse and return
// the response. The returned Response's Body streams directly off the
// connection; closing it (or draining to io.EOF) releases the connection.
func (req *Request) Send(ctx context.Context) (*Response, error) {
	return DefaultClient.Send(ctx, req)
}

// Send is the Client-bound form of (*Request).Send, letting callers share
// one dial/timeout policy across many requests.
func (cl *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	if req.host == "" {
		return nil, NewError(KindBadRequest, "loom: request has no host; build it with NewRequest", nil)
	}

	addr := req.host
	if !strings.Contains(addr, ":") {
		if req.scheme == "https" {
			addr += ":443"
		} else {
			addr += ":80"
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, cl.dialTimeout())
	defer cancel()

	var d net.Dialer
	nc, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, NewError(KindNetwork, "loom: dial failed", err)
	}

	if req.scheme == "https" {
		nc.SetDeadline(time.Now().Add(cl.handshakeTimeout()))
		tlsConf := cl.TLSConfig
		if tlsConf == nil {
			tlsConf = &tls.Config{ServerName: hostOnly(req.host)}
		}
		tc := tls.Client(nc, tlsConf)
		if err := tc.HandshakeContext(ctx); err != nil {
			nc.Close()
			return nil, NewError(KindNetwork, "loom: TLS handshake failed", err)
		}
		nc = tc
	}

	nc.SetWriteDeadline(time.Now().Add(cl.requestTimeout()))
	if err := writeRequestHead(nc, req); err != nil {
		nc.Close()
		return nil, err
	}

	if req.expectContinue {
		br := bufio.NewReader(nc)
		nc.SetReadDeadline(time.Now().Add(cl.responseHeaderTimeout()))
		status, _, _, err := readStatusLine(br)
		if err != nil {
			if !isTimeout(err) {
				nc.Close()
				return nil, err
			}
			// The 100 Continue deadline elapsed without a reply; per the
			// Expect: 100-continue contract the client proceeds to send
			// the body anyway rather than aborting the request.
		} else if status != 100 {
			// Server rejected the body up front; parse the final
			// response starting from the status line we already read.
			return finishResponse(nc, br, status)
		} else if _, err := readResponseHeader(br); err != nil {
			// Consume the interim 100 response's (empty) header block so
			// the final status line is read next.
			nc.Close()
			return nil, err
		}
		nc.SetWriteDeadline(time.Now().Add(cl.requestTimeout()))
		if err := writeRequestBody(nc, req); err != nil {
			nc.Close()
			return nil, err
		}
		nc.SetReadDeadline(time.Now().Add(cl.responseHeaderTimeout()))
		return parseResponse(nc, br)
	}

	if err := writeRequestBody(nc, req); err != nil {
		nc.Close()
		return nil, err
	}

	nc.SetReadDeadline(time.Now().Add(cl.responseHeaderTimeout()))
	br := bufio.NewReader(nc)
	return parseResponse(nc, br)
}

func (cl *Client) dialTimeout() time.Duration {
	if cl.DialTimeout > 0 {
		return cl.DialTimeout
	}
	return DefaultClient.DialTimeout
}

func (cl *Client) handshakeTimeout() time.Duration {
	if cl.HandshakeTimeout > 0 {
		return cl.HandshakeTimeout
	}
	return DefaultClient.HandshakeTimeout
}

func (cl *Client) requestTimeout() time.Duration {
	if cl.RequestTimeout > 0 {
		return cl.RequestTimeout
	}
	return DefaultClient.RequestTimeout
}

func (cl *Client) responseHeaderTimeout() time.Duration {
	if cl.ResponseHeaderTimeout > 0 {
		return cl.ResponseHeaderTimeout
	}
	return DefaultClient.ResponseHeaderTimeout
}

// isTimeout reports whether err (possibly wrapped in an *Error) was caused
// by a deadline elapsing, as opposed to a genuine connection failure.
func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

func writeRequestHead(w io.Writer, req *Request) error {
	target := req.Path
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}
	line := req.Method + " " + target + " " + req.Version + "\r\n"
	if _, err := io.WriteString(w, line); err != nil {
		return NewError(KindNetwork, "loom: writing request line failed", err)
	}

	switch req.Body.Kind {
	case BodySized:
		req.Header.Set("Content-Length", strconv.FormatInt(req.Body.Length, 10))
		req.Header.Del("Transfer-Encoding")
	case BodyChunked:
		req.Header.Set("Transfer-Encoding", "chunked")
		req.Header.Del("Content-Length")
	}

	if _, err := req.Header.WriteTo(w); err != nil {
		return NewError(KindNetwork, "loom: writing request headers failed", err)
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return NewError(KindNetwork, "loom: writing request headers failed", err)
	}
	return nil
}

func writeRequestBody(w io.Writer, req *Request) error {
	switch req.Body.Kind {
	case BodySized:
		if req.Body.Reader == nil {
			return nil
		}
		_, err := io.CopyN(w, req.Body, req.Body.Length)
		if err != nil && err != io.EOF {
			return NewError(KindNetwork, "loom: writing request body failed", err)
		}
	case BodyChunked:
		cw := newChunkWriter(w)
		if req.Body.Reader != nil {
			if _, err := io.Copy(cw, req.Body); err != nil {
				return NewError(KindNetwork, "loom: writing request body failed", err)
			}
		}
		return cw.Close()
	}
	return nil
}

// readStatusLine reads and parses one "HTTP/x.y NNN Reason" line.
func readStatusLine(br *bufio.Reader) (status int, version string, reason string, err error) {
	line, rerr := br.ReadString('\n')
	if rerr != nil && line == "" {
		return 0, "", "", NewError(KindNetwork, "loom: reading status line failed", rerr)
	}
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0, "", "", NewError(KindParseError, "loom: malformed status line", nil)
	}
	n, cerr := strconv.Atoi(parts[1])
	if cerr != nil {
		return 0, "", "", NewError(KindParseError, "loom: malformed status code", cerr)
	}
	r := ""
	if len(parts) == 3 {
		r = parts[2]
	}
	return n, parts[0], r, nil
}

func readResponseHeader(br *bufio.Reader) (*Header, error) {
	h := NewHeader()
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, NewError(KindNetwork, "loom: reading response headers failed", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, NewError(KindParseError, "loom: malformed response header line", nil)
		}
		h.Add(line[:idx], strings.TrimSpace(line[idx+1:]))
	}
	return h, nil
}

func parseResponse(nc net.Conn, br *bufio.Reader) (*Response, error) {
	status, version, _, err := readStatusLine(br)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return finishResponseHead(nc, br, status, version)
}

// finishResponse resumes parsing a response whose status line has already
// been consumed (the Expect: 100-continue rejection path).
func finishResponse(nc net.Conn, br *bufio.Reader, status int) (*Response, error) {
	return finishResponseHead(nc, br, status, "HTTP/1.1")
}

func finishResponseHead(nc net.Conn, br *bufio.Reader, status int, version string) (*Response, error) {
	header, err := readResponseHeader(br)
	if err != nil {
		nc.Close()
		return nil, err
	}

	res := &Response{Status: status, Version: version, Header: header, Committed: true}

	switch {
	case header.HasToken("Transfer-Encoding", "chunked"):
		res.Body = ChunkedBody(&connClosingReader{r: newChunkReader(br), c: nc})
	case header.Get("Content-Length") != "":
		n, _ := strconv.ParseInt(header.Get("Content-Length"), 10, 64)
		res.Body = SizedBody(&connClosingReader{r: io.LimitReader(br, n), c: nc}, n)
	default:
		res.Body = SizedBody(&connClosingReader{r: br, c: nc}, -1)
	}

	return res, nil
}

// connClosingReader closes the underlying connection once its wrapped
// Reader reports io.EOF, so a caller that simply drains a response Body to
// completion releases the connection without an explicit Close call.
type connClosingReader struct {
	r      io.Reader
	c      net.Conn
	closed bool
}

func (cr *connClosingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if err != nil && !cr.closed {
		cr.closed = true
		cr.c.Close()
	}
	return n, err
}

func (cr *connClosingReader) Close() error {
	if cr.closed {
		return nil
	}
	cr.closed = true
	return cr.c.Close()
}
