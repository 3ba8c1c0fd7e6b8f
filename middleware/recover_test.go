package middleware

import (
	"testing"

	"github.com/loomhq/loom"
	"github.com/stretchr/testify/assert"
)

func TestRecoverTurnsPanicIntoError(t *testing.T) {
	h := Recover()(func(req *loom.Request, res *loom.Response) error {
		panic("boom")
	})

	req, err := loom.NewRequest("GET", "http://example.com/")
	assert.NoError(t, err)
	res := loom.NewResponse()

	err = h(req, res)
	assert.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestRecoverPassesThroughNormalErrors(t *testing.T) {
	want := loom.NewError(loom.KindBadRequest, "nope", nil)
	h := Recover()(func(req *loom.Request, res *loom.Response) error {
		return want
	})

	req, err := loom.NewRequest("GET", "http://example.com/")
	assert.NoError(t, err)
	res := loom.NewResponse()

	assert.Equal(t, want, h(req, res))
}

func TestRecoverNoPanicIsANoOp(t *testing.T) {
	h := Recover()(func(req *loom.Request, res *loom.Response) error {
		return res.SetPlaintext("ok")
	})

	req, err := loom.NewRequest("GET", "http://example.com/")
	assert.NoError(t, err)
	res := loom.NewResponse()

	assert.NoError(t, h(req, res))
}
