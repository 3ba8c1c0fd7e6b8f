package middleware

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/loomhq/loom"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type bufLevelWriter struct{ buf bytes.Buffer }

func (w *bufLevelWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *bufLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	return w.buf.Write(p)
}

func TestLoggerEmitsRequestFields(t *testing.T) {
	out := &bufLevelWriter{}
	h := LoggerWithConfig(LoggerConfig{Output: out})(func(req *loom.Request, res *loom.Response) error {
		return res.SetPlaintext("ok")
	})

	req, err := loom.NewRequest("GET", "http://example.com/ping")
	assert.NoError(t, err)
	req.Conn.RemoteAddr = "127.0.0.1:1234"
	res := loom.NewResponse()

	assert.NoError(t, h(req, res))

	var entry map[string]interface{}
	assert.NoError(t, json.Unmarshal(out.buf.Bytes(), &entry))
	assert.Equal(t, "127.0.0.1:1234", entry["remote_ip"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/ping", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
}

func TestLoggerRecordsHandlerError(t *testing.T) {
	out := &bufLevelWriter{}
	want := loom.NewError(loom.KindBadRequest, "nope", nil)
	h := LoggerWithConfig(LoggerConfig{Output: out})(func(req *loom.Request, res *loom.Response) error {
		return want
	})

	req, err := loom.NewRequest("GET", "http://example.com/fail")
	assert.NoError(t, err)
	res := loom.NewResponse()

	assert.Equal(t, want, h(req, res))

	var entry map[string]interface{}
	assert.NoError(t, json.Unmarshal(out.buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "nope", entry["error"])
}
