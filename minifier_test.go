package loom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinifyShrinksMatchingContentType(t *testing.T) {
	h := Minify("text/html")(func(req *Request, res *Response) error {
		res.Header.Set("Content-Type", "text/html; charset=utf-8")
		return res.SetBody([]byte("<html>   <body>  hi  </body>   </html>"))
	})

	req, err := NewRequest("GET", "http://example.com/")
	assert.NoError(t, err)
	res := NewResponse()

	assert.NoError(t, h(req, res))
	got, err := res.AsBytes(1 << 20)
	assert.NoError(t, err)
	assert.Less(t, len(got), len("<html>   <body>  hi  </body>   </html>"))
}

func TestMinifySkipsUnlistedContentType(t *testing.T) {
	h := Minify("text/html")(func(req *Request, res *Response) error {
		res.Header.Set("Content-Type", "image/png")
		return res.SetBody([]byte("binarydata"))
	})

	req, err := NewRequest("GET", "http://example.com/")
	assert.NoError(t, err)
	res := NewResponse()

	assert.NoError(t, h(req, res))
	got, err := res.AsBytes(1 << 20)
	assert.NoError(t, err)
	assert.Equal(t, "binarydata", string(got))
}

func TestMinifyWithNoMIMETypesIsANoOp(t *testing.T) {
	h := Minify()(func(req *Request, res *Response) error {
		res.Header.Set("Content-Type", "text/html")
		return res.SetBody([]byte("<html>  </html>"))
	})

	req, err := NewRequest("GET", "http://example.com/")
	assert.NoError(t, err)
	res := NewResponse()

	assert.NoError(t, h(req, res))
	got, err := res.AsBytes(1 << 20)
	assert.NoError(t, err)
	assert.Equal(t, "<html>  </html>", string(got))
}

func TestMinifierPassesThroughUnregisteredMIMEType(t *testing.T) {
	mi := newMinifier()
	out, err := mi.minify("application/x-unregistered", []byte("raw"))
	assert.NoError(t, err)
	assert.Equal(t, "raw", string(out))
}

func TestMinifierStripsCharsetSuffix(t *testing.T) {
	mi := newMinifier()
	out, err := mi.minify("application/json; charset=utf-8", []byte(`{"a":   1}`))
	assert.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(out))
}
