package loom

import (
	"encoding/json"
	"io"
	"os"
	"strings"
)

// AsString drains the Response body (bounded by max bytes) and returns it
// as a string, the client-side as_string convenience adapter.
func (r *Response) AsString(max int64) (string, error) {
	b, err := ReadAllLimited(r.Body, max)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AsBytes drains the Response body (bounded by max bytes) and returns the
// raw bytes, the client-side as_bytes convenience adapter.
func (r *Response) AsBytes(max int64) ([]byte, error) {
	return ReadAllLimited(r.Body, max)
}

// AsJSON drains the Response body (bounded by max bytes) and unmarshals it
// into a value of type T, the client-side as_json convenience adapter.
func AsJSON[T any](r *Response, max int64) (T, error) {
	var zero T
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return zero, NewError(KindBadRequest, "loom: expected application/json response", nil)
	}
	b, err := ReadAllLimited(r.Body, max)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return zero, NewError(KindParseError, "loom: response body is not valid JSON", err)
	}
	return v, nil
}

// AsFile streams the Response body directly to a file at path, the
// client-side as_file convenience adapter, avoiding buffering the whole
// body in memory.
func (r *Response) AsFile(path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, NewError(KindInternal, "loom: creating output file failed", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r.Body)
	if err != nil {
		return n, NewError(KindNetwork, "loom: streaming response body to file failed", err)
	}
	return n, nil
}
