package loom

import "fmt"

// PathInfo is the matched pattern, the concrete request path, and the
// captured path parameters, held by a Request for its handler.
type PathInfo struct {
	Pattern string
	Path    string
	Params  map[string]string
}

// ConnectInfo carries the semantic local/remote endpoints of a connection.
type ConnectInfo struct {
	LocalAddr  string
	RemoteAddr string
}

// State is a type-keyed, optionally-tagged bag of values shared by
// reference across every request dispatched through the route or scope
// that registered them. The core imposes no mutability policy: values
// needing mutation must be internally synchronized by the caller.
type State struct {
	values map[stateKey]interface{}
}

type stateKey struct {
	typ string
	tag string
}

// newState returns an empty State.
func newState() *State {
	return &State{values: map[stateKey]interface{}{}}
}

// mergeState returns a new State combining base and override, with override's
// keys taking precedence on collision. Either argument may be nil.
func mergeState(base, override *State) *State {
	s := newState()
	if base != nil {
		for k, v := range base.values {
			s.values[k] = v
		}
	}
	if override != nil {
		for k, v := range override.values {
			s.values[k] = v
		}
	}
	return s
}

// keyOf returns the untagged stateKey for v's dynamic type.
func keyOf(v interface{}) stateKey {
	return stateKey{typ: fmt.Sprintf("%T", v)}
}

// keyOfTagged returns the stateKey for v's dynamic type qualified by tag,
// letting two values of the same type coexist in one State under
// different tags (StateOf's tagged form).
func keyOfTagged(v interface{}, tag string) stateKey {
	return stateKey{typ: fmt.Sprintf("%T", v), tag: tag}
}

// Get looks up a state value by its dynamic type, the untagged form.
func (s *State) Get(v interface{}) (interface{}, bool) {
	val, ok := s.values[keyOf(v)]
	return val, ok
}

// Route is an immutable, fully-resolved endpoint: a method, a pattern, the
// middleware chain and handler that serve it, and the state map merged
// down from its enclosing scopes.
type Route struct {
	Method  string
	Pattern string
	Handler Handler
	State   *State
}
