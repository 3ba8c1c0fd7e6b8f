package loom

import (
	"encoding/json"
	"net/url"
	"strings"
)

// pathOf destructures a Request's path captures into T by struct tag
// path:"Name" (falling back to the Go field name), grounded on the
// teacher's binder.go bindData generalized from url.Values to the
// path-capture map.
type pathOf[T any] struct{}

// PathOf returns an Extractor that destructures the matched route's path
// captures into a value of type T.
func PathOf[T any]() Extractor[T] {
	return pathOf[T]{}
}

func (pathOf[T]) FromRequest(req *Request) (T, error) {
	var v T
	if err := bindSingleValues(&v, req.PathInfo.Params, "path"); err != nil {
		return v, err
	}
	return v, nil
}

// queryOf destructures the query string into T by struct tag
// query:"name".
type queryOf[T any] struct{}

// QueryOf returns an Extractor that destructures the query string into a
// value of type T.
func QueryOf[T any]() Extractor[T] {
	return queryOf[T]{}
}

func (queryOf[T]) FromRequest(req *Request) (T, error) {
	var v T
	if err := bindValues(&v, req.QueryValues(), "query"); err != nil {
		return v, err
	}
	return v, nil
}

// formOf destructures an "application/x-www-form-urlencoded" body into T
// by struct tag form:"name".
type formOf[T any] struct {
	MaxBytes int64
}

// FormOf returns an Extractor that requires
// "application/x-www-form-urlencoded" and destructures the decoded form
// into a value of type T.
func FormOf[T any](maxBytes int64) Extractor[T] {
	return formOf[T]{MaxBytes: maxBytes}
}

func (e formOf[T]) FromRequest(req *Request) (T, error) {
	var v T
	if !strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return v, NewError(KindBadRequest, "loom: expected application/x-www-form-urlencoded body", nil)
	}
	max := e.MaxBytes
	if max <= 0 {
		max = 1 << 20
	}
	b, err := ReadAllLimited(req.Body, max)
	if err != nil {
		return v, err
	}
	vals, err := url.ParseQuery(string(b))
	if err != nil {
		return v, NewError(KindParseError, "loom: malformed form body", err)
	}
	if err := bindValues(&v, vals, "form"); err != nil {
		return v, err
	}
	return v, nil
}

// jsonOf decodes an "application/json" body into T.
type jsonOf[T any] struct {
	MaxBytes int64
}

// JSONOf returns an Extractor that requires "application/json" and
// json.Unmarshals the bounded body into a value of type T.
func JSONOf[T any](maxBytes int64) Extractor[T] {
	return jsonOf[T]{MaxBytes: maxBytes}
}

func (e jsonOf[T]) FromRequest(req *Request) (T, error) {
	var v T
	if !strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
		return v, NewError(KindBadRequest, "loom: expected application/json body", nil)
	}
	max := e.MaxBytes
	if max <= 0 {
		max = 1 << 20
	}
	b, err := ReadAllLimited(req.Body, max)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, NewError(KindParseError, "loom: malformed JSON body", err)
	}
	return v, nil
}

// stateOf looks up a value of type T from the matched route's merged
// state map.
type stateOf[T any] struct {
	tag string
}

// StateOf returns an Extractor that looks up a value of type T
// (untagged) registered via Scope.UseState/Server.UseState.
func StateOf[T any]() Extractor[T] {
	return stateOf[T]{}
}

// StateOfTagged returns an Extractor that looks up a tagged value of type
// T, letting two values of the same type coexist under different tags.
func StateOfTagged[T any](tag string) Extractor[T] {
	return stateOf[T]{tag: tag}
}

func (e stateOf[T]) FromRequest(req *Request) (T, error) {
	var zero T
	if req.State == nil {
		return zero, NewError(KindInternal, "loom: no state available for this request", nil)
	}
	key := keyOfTagged(zero, e.tag)
	val, ok := req.State.values[key]
	if !ok {
		return zero, NewError(KindInternal, "loom: no state value registered for this type/tag", nil)
	}
	v, ok := val.(T)
	if !ok {
		return zero, NewError(KindInternal, "loom: state value type mismatch", nil)
	}
	return v, nil
}
