package loom

import (
	"bufio"
	"context"
	"net"
	"net/url"
	"strconv"
)

// Request is an HTTP request. The server builds one per parsed request
// head; a client builds one to describe an outbound request.
type Request struct {
	// Method is the request method ("GET", "POST", ...); see net/http's
	// Method constants.
	Method string

	// Version is the protocol version of the request, e.g. "HTTP/1.1".
	Version string

	// Path is the request target's path component as it appears on the
	// wire; it is not percent-decoded.
	Path string

	// RawQuery is the undecoded query string (without the leading '?').
	RawQuery string

	// Header is the request's header map.
	Header *Header

	// Body is the request's message body. For a server-side Request it
	// is a lazily-read stream backed by the connection's parser; reading
	// it pulls bytes off the wire on demand.
	Body Body

	// Conn describes the connection the request arrived on. It is set
	// by the server; Send leaves it unset on a client-built Request.
	Conn ConnectInfo

	// PathInfo holds the matched route pattern and captured path
	// parameters. It is populated by the router before dispatch.
	PathInfo PathInfo

	// State is the merged state map of the route (and its enclosing
	// scopes) that matched this request.
	State *State

	// ctx carries the per-phase deadline and cancellation for this
	// request/response exchange.
	ctx context.Context

	// expectContinue records whether the request carries
	// "Expect: 100-continue": set by SetExpectContinue on a client-built
	// Request, or by the server when the parsed head has that header.
	expectContinue bool

	// host is the target host:port for a client Request (derived from
	// the URL given to NewRequest).
	host   string
	scheme string

	// hijack, when set by the server connection, lets a handler take
	// over the raw transport (used by the WebSocket handshake handoff).
	hijack func() (net.Conn, *bufio.Reader, error)
}

// Hijack takes ownership of the underlying connection away from the
// server's request/response loop, returning the raw net.Conn and any
// already-buffered bytes. After a successful Hijack, the connection's
// state machine no longer reads, writes, or closes on this Request's
// behalf; the caller is responsible for the connection's entire
// lifecycle. Hijack returns an error if r was not built by a server (e.g.
// a client-built Request, or one already hijacked).
func (r *Request) Hijack() (net.Conn, *bufio.Reader, error) {
	if r.hijack == nil {
		return nil, nil, NewError(KindInternal, "loom: request does not support hijacking", nil)
	}
	return r.hijack()
}

// NewRequest returns a Request ready to be sent by a Client, built from a
// method and an absolute URL.
func NewRequest(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, NewError(KindParseError, "loom: invalid request URL", err)
	}

	req := &Request{
		Method:   method,
		Version:  "HTTP/1.1",
		Path:     u.EscapedPath(),
		RawQuery: u.RawQuery,
		Header:   NewHeader(),
		Body:     NullBody(),
		State:    newState(),
		host:     u.Host,
		scheme:   u.Scheme,
		ctx:      context.Background(),
	}
	if req.Path == "" {
		req.Path = "/"
	}
	req.Header.Set("Host", u.Hostname())
	return req, nil
}

// Context returns the context carrying this exchange's deadline and
// cancellation signal.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a shallow copy of r with its context replaced by ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	r2 := *r
	r2.ctx = ctx
	return &r2
}

// Query parses RawQuery into a map of the first value per key, mirroring
// the spec's QueryMap extractor. Repeated keys keep only their first
// value; use QueryValues for the full multi-value form.
func (r *Request) Query() map[string]string {
	vs, _ := url.ParseQuery(r.RawQuery)
	m := make(map[string]string, len(vs))
	for k, v := range vs {
		if len(v) > 0 {
			m[k] = v[0]
		}
	}
	return m
}

// QueryValues parses RawQuery into its full multi-value form.
func (r *Request) QueryValues() url.Values {
	vs, _ := url.ParseQuery(r.RawQuery)
	return vs
}

// SetHeader sets a single-valued request header. It returns r for chaining.
func (r *Request) SetHeader(name, value string) *Request {
	r.Header.Set(name, value)
	return r
}

// SetQuery sets q as the request's raw query string. It returns r for
// chaining.
func (r *Request) SetQuery(q url.Values) *Request {
	r.RawQuery = q.Encode()
	return r
}

// SetBody sets r's body to a sized body of exactly len(b) bytes.
func (r *Request) SetBody(b []byte) *Request {
	r.Body = BytesBody(b)
	r.Header.Set("Content-Length", strconv.FormatInt(int64(len(b)), 10))
	return r
}

// SetJSON marshals v as JSON and sets it as r's body, also setting
// Content-Type.
func (r *Request) SetJSON(v interface{}) error {
	b, err := jsonBody(v, false)
	if err != nil {
		return err
	}
	r.Body = b
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Content-Length", strconv.FormatInt(b.Length, 10))
	return nil
}

// SetProtobuf marshals v (which must implement proto.Message) and sets it
// as r's body, also setting Content-Type.
func (r *Request) SetProtobuf(v interface{}) error {
	b, err := protobufBody(v)
	if err != nil {
		return err
	}
	r.Body = b
	r.Header.Set("Content-Type", "application/protobuf")
	r.Header.Set("Content-Length", strconv.FormatInt(b.Length, 10))
	return nil
}

// SetMsgpack marshals v as MessagePack and sets it as r's body, also
// setting Content-Type.
func (r *Request) SetMsgpack(v interface{}) error {
	b, err := msgpackBody(v)
	if err != nil {
		return err
	}
	r.Body = b
	r.Header.Set("Content-Type", "application/msgpack")
	r.Header.Set("Content-Length", strconv.FormatInt(b.Length, 10))
	return nil
}

// SetYAML marshals v as YAML and sets it as r's body, also setting
// Content-Type.
func (r *Request) SetYAML(v interface{}) error {
	b, err := yamlBody(v)
	if err != nil {
		return err
	}
	r.Body = b
	r.Header.Set("Content-Type", "application/yaml")
	r.Header.Set("Content-Length", strconv.FormatInt(b.Length, 10))
	return nil
}

// SetTOML marshals v as TOML and sets it as r's body, also setting
// Content-Type.
func (r *Request) SetTOML(v interface{}) error {
	b, err := tomlBody(v)
	if err != nil {
		return err
	}
	r.Body = b
	r.Header.Set("Content-Type", "application/toml")
	r.Header.Set("Content-Length", strconv.FormatInt(b.Length, 10))
	return nil
}

// SetExpectContinue marks r to send "Expect: 100-continue" with its head,
// per §4.4 of the spec.
func (r *Request) SetExpectContinue() *Request {
	r.expectContinue = true
	r.Header.Set("Expect", "100-continue")
	return r
}

