package loom

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageFallsBackToWrapped(t *testing.T) {
	cause := errors.New("boom")
	e := NewError(KindInternal, "", cause)
	assert.Equal(t, "boom", e.Error())
}

func TestErrorMessageWinsOverWrapped(t *testing.T) {
	e := NewError(KindInternal, "custom", errors.New("boom"))
	assert.Equal(t, "custom", e.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := NewError(KindNetwork, "", cause)
	assert.True(t, errors.Is(e, cause))
}

func TestKindOfRecognizesPlainEOF(t *testing.T) {
	k, ok := KindOf(io.EOF)
	assert.True(t, ok)
	assert.Equal(t, KindEOF, k)
}

func TestKindOfIgnoresErrorsThatOnlyCopyText(t *testing.T) {
	e := NewError(KindBadRequest, "bad", nil)
	wrapped := errors.New("outer: " + e.Error())
	_, ok := KindOf(wrapped)
	assert.False(t, ok)

	k, ok := KindOf(e)
	assert.True(t, ok)
	assert.Equal(t, KindBadRequest, k)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusForKind(KindNotFound))
	assert.Equal(t, http.StatusConflict, StatusForKind(KindConflict))
	assert.Equal(t, http.StatusBadRequest, StatusForKind(KindParseError))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(KindInternal))
}

func TestStatusForErrorDefaultsTo500ForUnrecognized(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusForError(errors.New("plain")))
}
