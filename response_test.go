package loom

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewResponseDefaults(t *testing.T) {
	res := NewResponse()
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "HTTP/1.1", res.Version)
	assert.Equal(t, BodyNull, res.Body.Kind)
	assert.False(t, res.Committed)
}

func TestResponseSetBodySetsContentLength(t *testing.T) {
	res := NewResponse()
	res.SetBody([]byte("hello"))
	assert.Equal(t, "5", res.Header.Get("Content-Length"))
	assert.Equal(t, BodySized, res.Body.Kind)
}

func TestResponseSetPlaintextSetsContentType(t *testing.T) {
	res := NewResponse()
	res.SetPlaintext("hi")
	assert.Equal(t, "text/plain; charset=utf-8", res.Header.Get("Content-Type"))
	got, err := res.AsString(1 << 10)
	assert.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestResponseSetJSONSetsContentTypeAndBody(t *testing.T) {
	res := NewResponse()
	err := res.SetJSON(map[string]int{"n": 1})
	assert.NoError(t, err)
	assert.Equal(t, "application/json; charset=utf-8", res.Header.Get("Content-Type"))
	got, err := res.AsBytes(1 << 10)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(got))
}

func TestResponseSetMsgpackSetsContentType(t *testing.T) {
	res := NewResponse()
	err := res.SetMsgpack(map[string]int{"n": 1})
	assert.NoError(t, err)
	assert.Equal(t, "application/msgpack", res.Header.Get("Content-Type"))
}

func TestResponseSetYAMLSetsContentType(t *testing.T) {
	res := NewResponse()
	err := res.SetYAML(map[string]int{"n": 1})
	assert.NoError(t, err)
	assert.Equal(t, "application/yaml; charset=utf-8", res.Header.Get("Content-Type"))
}

func TestResponseSetTOMLSetsContentType(t *testing.T) {
	res := NewResponse()
	err := res.SetTOML(map[string]interface{}{"n": 1})
	assert.NoError(t, err)
	assert.Equal(t, "application/toml; charset=utf-8", res.Header.Get("Content-Type"))
}

func TestResponseSetProtobufRejectsNonProtoMessage(t *testing.T) {
	res := NewResponse()
	err := res.SetProtobuf(map[string]int{"n": 1})
	assert.Error(t, err)
}

func TestResponseSetStreamUsesChunkedEncoding(t *testing.T) {
	res := NewResponse()
	res.SetBody([]byte("placeholder"))
	res.SetStream(BytesBody([]byte("streamed")))
	assert.Equal(t, "chunked", res.Header.Get("Transfer-Encoding"))
	assert.Empty(t, res.Header.Get("Content-Length"))
	assert.Equal(t, BodyChunked, res.Body.Kind)
}

func TestResponseWritePreservesBodyKind(t *testing.T) {
	res := NewResponse()
	res.Write(ChunkedBody(nullReader{}))
	assert.Equal(t, BodyChunked, res.Body.Kind)
}

func TestResponseRedirectDefaultsTo302(t *testing.T) {
	res := NewResponse()
	res.Redirect(200, "/elsewhere")
	assert.Equal(t, 302, res.Status)
	assert.Equal(t, "/elsewhere", res.Header.Get("Location"))
}

func TestResponseRedirectKeepsValidStatus(t *testing.T) {
	res := NewResponse()
	res.Redirect(301, "/moved")
	assert.Equal(t, 301, res.Status)
}

type nullReader struct{}

func (nullReader) Read(p []byte) (int, error) { return 0, io.EOF }
