// Package loomtest lets a handler be exercised through a live RouteTree
// and middleware chain without opening a socket, the test_request entry
// point of the core specification.
package loomtest

import (
	"net/url"

	"github.com/loomhq/loom"
)

// Option mutates the synthetic Request built by ServeRequest before
// dispatch.
type Option func(req *loom.Request)

// WithHeader sets a request header on the synthetic request.
func WithHeader(name, value string) Option {
	return func(req *loom.Request) { req.SetHeader(name, value) }
}

// WithQuery sets the synthetic request's query string.
func WithQuery(q url.Values) Option {
	return func(req *loom.Request) { req.SetQuery(q) }
}

// WithBody sets the synthetic request's body to exactly b.
func WithBody(b []byte) Option {
	return func(req *loom.Request) { req.SetBody(b) }
}

// WithJSON marshals v as JSON and sets it as the synthetic request's
// body. A marshal error is silently ignored here (surfacing it would
// change ServeRequest's signature for an error path tests don't expect);
// callers needing to assert on marshal failures should marshal and call
// WithBody themselves.
func WithJSON(v interface{}) Option {
	return func(req *loom.Request) { _ = req.SetJSON(v) }
}

// ServeRequest builds a synthetic Request for method and path, applies
// opts, and dispatches it through server's compiled route tree and
// middleware chain, returning the resulting Response. It never touches a
// network connection.
func ServeRequest(server *loom.Server, method, path string, opts ...Option) (*loom.Response, error) {
	req, err := loom.NewRequest(method, "http://loomtest.invalid"+path)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(req)
	}
	return server.Dispatch(req)
}
