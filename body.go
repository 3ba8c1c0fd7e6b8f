package loom

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/golang/protobuf/proto"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// BodyKind tags how a Body is framed on the wire.
type BodyKind uint8

const (
	// BodyNull means no body at all; the serializer emits neither
	// Content-Length nor Transfer-Encoding.
	BodyNull BodyKind = iota

	// BodySized means the body is framed by Content-Length.
	BodySized

	// BodyChunked means the body is framed by Transfer-Encoding: chunked.
	BodyChunked
)

// Sizer is implemented by byte sources that know their own total length in
// advance, the size_hint of the core's byte-stream abstraction.
type Sizer interface {
	Size() (n int64, ok bool)
}

// Body is a tagged framing kind paired with a byte-stream source. Its
// Reader is consumed at most once; after it reports io.EOF, further reads
// must also report io.EOF.
type Body struct {
	Kind   BodyKind
	Length int64 // valid only when Kind == BodySized and >= 0
	Reader io.Reader
}

// NullBody returns the empty, bodyless Body.
func NullBody() Body {
	return Body{Kind: BodyNull, Reader: http_NoBody{}}
}

// SizedBody returns a Body of known length n framed by Content-Length.
func SizedBody(r io.Reader, n int64) Body {
	return Body{Kind: BodySized, Length: n, Reader: r}
}

// ChunkedBody returns a Body framed by Transfer-Encoding: chunked, whose
// length is not known in advance.
func ChunkedBody(r io.Reader) Body {
	return Body{Kind: BodyChunked, Length: -1, Reader: r}
}

// BytesBody returns a sized Body wrapping an in-memory buffer; this is the
// "vector source" adapter of the byte-stream abstraction.
func BytesBody(b []byte) Body {
	return SizedBody(bytes.NewReader(b), int64(len(b)))
}

// Read implements io.Reader by delegating to the underlying Reader, or
// reporting io.EOF immediately for a BodyNull.
func (b Body) Read(p []byte) (int, error) {
	if b.Reader == nil {
		return 0, io.EOF
	}
	return b.Reader.Read(p)
}

// Close closes the underlying Reader if it implements io.Closer.
func (b Body) Close() error {
	if c, ok := b.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// http_NoBody is a zero-byte io.Reader, analogous to http.NoBody.
type http_NoBody struct{}

func (http_NoBody) Read([]byte) (int, error) { return 0, io.EOF }

// jsonBody marshals v (indented when pretty is true) into a BytesBody.
func jsonBody(v interface{}, pretty bool) (Body, error) {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(v, "", "\t")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return Body{}, err
	}
	return BytesBody(b), nil
}

// protobufBody marshals v (which must implement proto.Message) into a
// BytesBody, grounded on the teacher's WriteProtobuf.
func protobufBody(v interface{}) (Body, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return Body{}, NewError(KindBadRequest, "loom: value does not implement proto.Message", nil)
	}
	b, err := proto.Marshal(m)
	if err != nil {
		return Body{}, err
	}
	return BytesBody(b), nil
}

// msgpackBody marshals v into a BytesBody, grounded on the teacher's
// WriteMsgpack.
func msgpackBody(v interface{}) (Body, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return Body{}, err
	}
	return BytesBody(b), nil
}

// yamlBody marshals v into a BytesBody, grounded on the teacher's
// WriteYAML.
func yamlBody(v interface{}) (Body, error) {
	var buf bytes.Buffer
	if err := yaml.NewEncoder(&buf).Encode(v); err != nil {
		return Body{}, err
	}
	return BytesBody(buf.Bytes()), nil
}

// tomlBody marshals v into a BytesBody, grounded on the teacher's
// WriteTOML.
func tomlBody(v interface{}) (Body, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return Body{}, err
	}
	return BytesBody(buf.Bytes()), nil
}

// ReadAllLimited drains r until io.EOF, returning at most max bytes. If r
// produces more than max bytes before EOF, it returns ErrBodyTooLarge. This
// is the core's read_until_eof utility.
func ReadAllLimited(r io.Reader, max int64) ([]byte, error) {
	lr := &io.LimitedReader{R: r, N: max + 1}
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, NewError(KindNetwork, "", err)
	}
	if int64(len(b)) > max {
		return nil, ErrBodyTooLarge
	}
	return b, nil
}
