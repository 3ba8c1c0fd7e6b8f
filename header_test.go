package loom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderSetGet(t *testing.T) {
	h := NewHeader()
	h.Set("content-type", "text/plain")
	assert.Equal(t, "text/plain", h.Get("Content-Type"))
	assert.Equal(t, []string{"text/plain"}, h.Values("Content-Type"))
}

func TestHeaderAddPreservesOrder(t *testing.T) {
	h := NewHeader()
	h.Add("X-B", "1")
	h.Add("X-A", "2")
	h.Add("X-B", "3")
	assert.Equal(t, []string{"X-B", "X-A"}, h.Names())
	assert.Equal(t, []string{"1", "3"}, h.Values("X-B"))
}

func TestHeaderSetReplacesAllValuesKeepsPosition(t *testing.T) {
	h := NewHeader()
	h.Add("X-A", "1")
	h.Add("X-B", "2")
	h.Set("X-A", "3")
	assert.Equal(t, []string{"X-A", "X-B"}, h.Names())
	assert.Equal(t, []string{"3"}, h.Values("X-A"))
}

func TestHeaderDel(t *testing.T) {
	h := NewHeader()
	h.Set("X-A", "1")
	h.Set("X-B", "2")
	h.Del("X-A")
	assert.False(t, h.Has("X-A"))
	assert.Equal(t, []string{"X-B"}, h.Names())
}

func TestHeaderHasToken(t *testing.T) {
	h := NewHeader()
	h.Set("Connection", "keep-alive, Upgrade")
	assert.True(t, h.HasToken("Connection", "upgrade"))
	assert.True(t, h.HasToken("Connection", "keep-alive"))
	assert.False(t, h.HasToken("Connection", "close"))

	h.Set("Accept-Encoding", "gzip;q=1.0, deflate")
	assert.True(t, h.HasToken("Accept-Encoding", "gzip"))
	assert.True(t, h.HasToken("Accept-Encoding", "deflate"))
}

func TestHeaderClone(t *testing.T) {
	h := NewHeader()
	h.Add("X-A", "1")
	c := h.Clone()
	c.Add("X-A", "2")
	assert.Equal(t, []string{"1"}, h.Values("X-A"))
	assert.Equal(t, []string{"1", "2"}, c.Values("X-A"))
}

func TestHeaderWriteTo(t *testing.T) {
	h := NewHeader()
	h.Set("Content-Type", "text/plain")
	h.Add("X-Multi", "a")
	h.Add("X-Multi", "b")

	buf := &bytes.Buffer{}
	n, err := h.WriteTo(buf)
	assert.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "Content-Type: text/plain\r\nX-Multi: a\r\nX-Multi: b\r\n", buf.String())
}
