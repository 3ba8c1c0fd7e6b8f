package loom

import "strings"

// Scope groups a path prefix, a middleware chain, and a set of state
// values applied to every route registered beneath it. Scopes nest: a
// child scope concatenates its prefix onto its parent's and merges its
// state on top of its parent's (child wins on key collision).
type Scope struct {
	server      *Server
	prefix      string
	middlewares []Middleware
	state       *State
}

// Scope returns a new top-level Scope rooted at the Server.
func (s *Server) Scope(prefix string) *Scope {
	return &Scope{server: s, prefix: prefix, state: newState()}
}

// Use appends middlewares to the scope's chain, outermost first.
func (sc *Scope) Use(mw ...Middleware) *Scope {
	sc.middlewares = append(sc.middlewares, mw...)
	return sc
}

// UseState registers a state value visible to every route under this
// scope, keyed by v's dynamic type.
func (sc *Scope) UseState(v interface{}) *Scope {
	sc.state.values[keyOf(v)] = v
	return sc
}

// Scope returns a child scope nesting prefix beneath sc, inheriting sc's
// middlewares and state.
func (sc *Scope) Scope(prefix string) *Scope {
	return &Scope{
		server:      sc.server,
		prefix:      joinPrefix(sc.prefix, prefix),
		middlewares: append([]Middleware(nil), sc.middlewares...),
		state:       mergeState(sc.state, nil),
	}
}

func joinPrefix(a, b string) string {
	a = strings.TrimSuffix(a, "/")
	b = strings.TrimPrefix(b, "/")
	if b == "" {
		if a == "" {
			return "/"
		}
		return a
	}
	return a + "/" + b
}

// handle registers one route under this scope, merging the scope's
// middlewares (outer) with route-level ones (inner) and the scope's state
// with route-level state.
func (sc *Scope) handle(method, pattern string, h Handler, routeMW []Middleware, routeState map[stateKey]interface{}) error {
	full := joinPrefix(sc.prefix, pattern)

	all := make([]Middleware, 0, len(sc.middlewares)+len(routeMW))
	all = append(all, sc.middlewares...)
	all = append(all, routeMW...)

	st := mergeState(sc.state, nil)
	for k, v := range routeState {
		st.values[k] = v
	}

	wrapped := Chain(h, all...)
	return sc.server.tree.Add(method, full, wrapped, st)
}

// GET registers a GET route under this scope.
func (sc *Scope) GET(pattern string, h Handler, mw ...Middleware) error {
	return sc.handle("GET", pattern, h, mw, nil)
}

// POST registers a POST route under this scope.
func (sc *Scope) POST(pattern string, h Handler, mw ...Middleware) error {
	return sc.handle("POST", pattern, h, mw, nil)
}

// PUT registers a PUT route under this scope.
func (sc *Scope) PUT(pattern string, h Handler, mw ...Middleware) error {
	return sc.handle("PUT", pattern, h, mw, nil)
}

// PATCH registers a PATCH route under this scope.
func (sc *Scope) PATCH(pattern string, h Handler, mw ...Middleware) error {
	return sc.handle("PATCH", pattern, h, mw, nil)
}

// DELETE registers a DELETE route under this scope.
func (sc *Scope) DELETE(pattern string, h Handler, mw ...Middleware) error {
	return sc.handle("DELETE", pattern, h, mw, nil)
}

// HEAD registers a HEAD route under this scope.
func (sc *Scope) HEAD(pattern string, h Handler, mw ...Middleware) error {
	return sc.handle("HEAD", pattern, h, mw, nil)
}

// OPTIONS registers an OPTIONS route under this scope.
func (sc *Scope) OPTIONS(pattern string, h Handler, mw ...Middleware) error {
	return sc.handle("OPTIONS", pattern, h, mw, nil)
}
