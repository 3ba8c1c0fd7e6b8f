package loom

import (
	"strings"
)

// segKind tags one path-pattern segment.
type segKind uint8

const (
	segLiteral segKind = iota
	segParam
	segWildcard
)

type segment struct {
	kind segKind
	text string // literal text, or the captured name for param/wildcard
}

// splitPattern parses a route pattern ("/users/{id}/posts/#rest") into its
// segments, validating the grammar: a wildcard segment may only be last.
func splitPattern(pattern string) ([]segment, error) {
	if pattern == "" || pattern[0] != '/' {
		return nil, NewError(KindInternal, "loom: route pattern must start with /", nil)
	}

	parts := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return []segment{}, nil
	}

	segs := make([]segment, 0, len(parts))
	for i, p := range parts {
		switch {
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") && len(p) > 2:
			segs = append(segs, segment{kind: segParam, text: p[1 : len(p)-1]})
		case strings.HasPrefix(p, "#") && len(p) > 1:
			if i != len(parts)-1 {
				return nil, NewError(KindInternal, "loom: # wildcard must be the last segment", nil)
			}
			segs = append(segs, segment{kind: segWildcard, text: p[1:]})
		case p == "":
			return nil, NewError(KindInternal, "loom: route pattern cannot contain an empty segment", nil)
		default:
			segs = append(segs, segment{kind: segLiteral, text: p})
		}
	}
	return segs, nil
}

// shape returns a pattern string with param/wildcard names erased, used to
// detect structurally-ambiguous registrations (same shape, different
// capture names) independent of the literal route text.
func shape(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		switch s.kind {
		case segParam:
			b.WriteString("{}")
		case segWildcard:
			b.WriteString("#")
		default:
			b.WriteString(s.text)
		}
	}
	return b.String()
}

// routeNode is one node of the RouteTree's per-segment trie.
type routeNode struct {
	literal  map[string]*routeNode
	param    *routeNode
	paramTag string
	wildcard *routeNode
	wildTag  string
	routes   map[string]*Route // method -> route, populated at terminal nodes
}

func newRouteNode() *routeNode {
	return &routeNode{literal: map[string]*routeNode{}}
}

// RouteTree is a trie of Routes indexed by method and pattern, built once
// and then read-only for the lifetime of the Server.
type RouteTree struct {
	root        *routeNode
	pending     []pendingRoute
	shapesByKey map[string]string // method+shape -> original pattern, for ambiguity detection
	built       bool
}

type pendingRoute struct {
	method  string
	pattern string
	segs    []segment
	handler Handler
	state   *State
}

// NewRouteTree returns an empty, unbuilt RouteTree.
func NewRouteTree() *RouteTree {
	return &RouteTree{root: newRouteNode(), shapesByKey: map[string]string{}}
}

// Add registers a route for later compilation by Build. Pattern syntax
// errors are returned immediately; duplicate/ambiguous (method, pattern)
// pairs are detected at Build time, once the whole set is known.
func (t *RouteTree) Add(method, pattern string, h Handler, state *State) error {
	if t.built {
		return NewError(KindInternal, "loom: RouteTree already built", nil)
	}
	segs, err := splitPattern(pattern)
	if err != nil {
		return err
	}
	t.pending = append(t.pending, pendingRoute{
		method: method, pattern: pattern, segs: segs, handler: h, state: state,
	})
	return nil
}

// Build validates and compiles every route added via Add into the trie.
// It returns ErrDuplicateRoute for an identical (method, pattern) pair
// registered twice, and ErrAmbiguousRoute for two patterns that share a
// method and shape (same segment structure, different capture names).
func (t *RouteTree) Build() error {
	if t.built {
		return NewError(KindInternal, "loom: RouteTree already built", nil)
	}

	exact := map[string]bool{}
	for _, pr := range t.pending {
		exactKey := pr.method + " " + pr.pattern
		if exact[exactKey] {
			return ErrDuplicateRoute
		}
		exact[exactKey] = true

		shapeKey := pr.method + " " + shape(pr.segs)
		if prev, ok := t.shapesByKey[shapeKey]; ok && prev != pr.pattern {
			return ErrAmbiguousRoute
		}
		t.shapesByKey[shapeKey] = pr.pattern
	}

	for _, pr := range t.pending {
		t.insert(pr)
	}

	t.built = true
	return nil
}

func (t *RouteTree) insert(pr pendingRoute) {
	n := t.root
	for _, s := range pr.segs {
		switch s.kind {
		case segLiteral:
			child, ok := n.literal[s.text]
			if !ok {
				child = newRouteNode()
				n.literal[s.text] = child
			}
			n = child
		case segParam:
			if n.param == nil {
				n.param = newRouteNode()
				n.paramTag = s.text
			}
			n = n.param
		case segWildcard:
			if n.wildcard == nil {
				n.wildcard = newRouteNode()
				n.wildTag = s.text
			}
			n = n.wildcard
		}
	}

	if n.routes == nil {
		n.routes = map[string]*Route{}
	}
	n.routes[pr.method] = &Route{
		Method: pr.method, Pattern: pr.pattern, Handler: pr.handler, State: pr.state,
	}
}

// Lookup walks path one segment at a time, preferring a literal child, then
// a parameter child, then a wildcard terminal, backtracking on a dead end.
// It returns (nil, false) when no pattern matches path at all, regardless
// of method. A match on path but not on method returns ok=true with a nil
// route, so the caller can emit 405 instead of 404.
func (t *RouteTree) Lookup(method, path string) (*Route, map[string]string, bool) {
	segs := splitConcretePath(path)

	var walk func(n *routeNode, idx int, params map[string]string) (map[string]*Route, map[string]string, bool)
	walk = func(n *routeNode, idx int, params map[string]string) (map[string]*Route, map[string]string, bool) {
		if idx == len(segs) {
			if n.routes != nil {
				return n.routes, params, true
			}
			return nil, nil, false
		}

		seg := segs[idx]

		if child, ok := n.literal[seg]; ok {
			if routes, p, ok := walk(child, idx+1, params); ok {
				return routes, p, true
			}
		}

		if n.param != nil {
			np := cloneParams(params)
			np[n.paramTag] = seg
			if routes, p, ok := walk(n.param, idx+1, np); ok {
				return routes, p, true
			}
		}

		if n.wildcard != nil {
			np := cloneParams(params)
			np[n.wildTag] = strings.Join(segs[idx:], "/")
			if n.wildcard.routes != nil {
				return n.wildcard.routes, np, true
			}
		}

		return nil, nil, false
	}

	routes, params, ok := walk(t.root, 0, map[string]string{})
	if !ok {
		return nil, nil, false
	}

	if r, ok := routes[method]; ok {
		return r, params, true
	}

	// A pattern matched but not for this method: signal "matched path,
	// wrong method" by returning ok=true with a nil route so the caller
	// can emit 405 instead of 404.
	return nil, params, true
}

// splitConcretePath splits a request path into segments after trimming
// leading and trailing slashes. Duplicate inner slashes are not collapsed:
// "a//b" yields an empty middle segment.
func splitConcretePath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func cloneParams(p map[string]string) map[string]string {
	np := make(map[string]string, len(p)+1)
	for k, v := range p {
		np[k] = v
	}
	return np
}
