package loom

import "strconv"

// Response is an HTTP response, built by a handler (or by middleware) and
// moved into the serializer. Once the serializer has started writing it,
// the Response is committed: Committed flips to true and further mutation
// has no effect on the wire.
type Response struct {
	// Status is the response's status code, e.g. 200.
	Status int

	// Version is the protocol version to report, e.g. "HTTP/1.1".
	Version string

	// Header is the response's header map.
	Header *Header

	// Body is the response's message body.
	Body Body

	// Committed is true once the serializer has begun writing this
	// response to the transport.
	Committed bool
}

// NewResponse returns a Response with status 200 and an empty header map,
// ready for a handler to populate.
func NewResponse() *Response {
	return &Response{Status: 200, Version: "HTTP/1.1", Header: NewHeader(), Body: NullBody()}
}

// SetBody sets a sized body of exactly len(b) bytes. It always returns
// nil, so a handler can return its result directly.
func (r *Response) SetBody(b []byte) error {
	r.Body = BytesBody(b)
	r.Header.Set("Content-Length", strconv.FormatInt(int64(len(b)), 10))
	return nil
}

// SetPlaintext sets a "text/plain" sized body. It always returns nil.
func (r *Response) SetPlaintext(s string) error {
	r.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return r.SetBody([]byte(s))
}

// SetJSON marshals v as JSON, sets it as the body, and sets Content-Type to
// "application/json".
func (r *Response) SetJSON(v interface{}) error {
	b, err := jsonBody(v, false)
	if err != nil {
		return err
	}
	r.Body = b
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.Header.Set("Content-Length", strconv.FormatInt(b.Length, 10))
	return nil
}

// SetProtobuf marshals v (which must implement proto.Message) and sets it
// as the body, and sets Content-Type to "application/protobuf".
func (r *Response) SetProtobuf(v interface{}) error {
	b, err := protobufBody(v)
	if err != nil {
		return err
	}
	r.Body = b
	r.Header.Set("Content-Type", "application/protobuf")
	r.Header.Set("Content-Length", strconv.FormatInt(b.Length, 10))
	return nil
}

// SetMsgpack marshals v as MessagePack, sets it as the body, and sets
// Content-Type to "application/msgpack".
func (r *Response) SetMsgpack(v interface{}) error {
	b, err := msgpackBody(v)
	if err != nil {
		return err
	}
	r.Body = b
	r.Header.Set("Content-Type", "application/msgpack")
	r.Header.Set("Content-Length", strconv.FormatInt(b.Length, 10))
	return nil
}

// SetYAML marshals v as YAML, sets it as the body, and sets Content-Type to
// "application/yaml".
func (r *Response) SetYAML(v interface{}) error {
	b, err := yamlBody(v)
	if err != nil {
		return err
	}
	r.Body = b
	r.Header.Set("Content-Type", "application/yaml; charset=utf-8")
	r.Header.Set("Content-Length", strconv.FormatInt(b.Length, 10))
	return nil
}

// SetTOML marshals v as TOML, sets it as the body, and sets Content-Type to
// "application/toml".
func (r *Response) SetTOML(v interface{}) error {
	b, err := tomlBody(v)
	if err != nil {
		return err
	}
	r.Body = b
	r.Header.Set("Content-Type", "application/toml; charset=utf-8")
	r.Header.Set("Content-Length", strconv.FormatInt(b.Length, 10))
	return nil
}

// SetStream sets a chunked body reading from the given Body's Reader. The
// caller is responsible for the stream producing io.EOF when exhausted.
func (r *Response) SetStream(b Body) *Response {
	r.Body = ChunkedBody(b.Reader)
	r.Header.Set("Transfer-Encoding", "chunked")
	r.Header.Del("Content-Length")
	return r
}

// Write is the low-level body setter: it stores b as-is (preserving
// whatever Kind it already carries) and returns r for chaining.
func (r *Response) Write(b Body) *Response {
	r.Body = b
	return r
}

// Redirect sets status (defaulting to 302 if not a redirection status) and
// a Location header pointing at url.
func (r *Response) Redirect(status int, url string) *Response {
	if status < 300 || status >= 400 {
		status = 302
	}
	r.Status = status
	r.Header.Set("Location", url)
	return r
}
