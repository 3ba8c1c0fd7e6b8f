package loom

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Address pairs a TCP listen address with its own, optional TLS
// configuration, letting a single Server mix plain and TLS listeners
// instead of upgrading every address with one shared policy.
type Address struct {
	// Addr is the TCP address to listen on, e.g. ":8080" or
	// "localhost:0".
	Addr string

	// TLSConfig, when non-nil, upgrades this listener to TLS. A nil
	// TLSConfig means this address is served as plain TCP.
	TLSConfig *tls.Config
}

// Server is the top-level struct of this framework. It owns the route
// tree, listens on one or more addresses, and runs the connection state
// machine for each accepted connection.
//
// It is recommended not to mutate any field of Server after calling Run.
type Server struct {
	// Addresses are the addresses the server listens on, each plain or
	// TLS depending on its own TLSConfig. At least one is required
	// before Run.
	Addresses []Address `mapstructure:"addresses"`

	// MaxListenConnections caps the number of simultaneously open
	// connections accepted across all Addresses. Zero means unbounded.
	MaxListenConnections int `mapstructure:"max_listen_connections"`

	// ClientRequestTimeout is the default per-phase deadline the
	// connection resets before each read or write phase (head, body,
	// response): the single knob spec.md's state machine names.
	//
	// Default value: 5s
	ClientRequestTimeout time.Duration `mapstructure:"client_request_timeout"`

	// ReadHeaderTimeout bounds how long the connection waits to finish
	// reading a request's head once any byte of it has arrived. Zero
	// falls back to ClientRequestTimeout.
	//
	// Default value: 0 (use ClientRequestTimeout)
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`

	// ReadBodyTimeout bounds draining whatever part of a request body the
	// handler left unread, once the response has been written. Zero falls
	// back to ClientRequestTimeout.
	//
	// Default value: 0 (use ClientRequestTimeout)
	ReadBodyTimeout time.Duration `mapstructure:"read_body_timeout"`

	// WriteTimeout bounds how long the connection waits while writing a
	// response. Zero falls back to ClientRequestTimeout.
	//
	// Default value: 0 (use ClientRequestTimeout)
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout bounds how long a keep-alive connection may sit between
	// requests before the server closes it.
	//
	// Default value: 90s
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// MaxHeaderBytes caps the size of a request's serialized head.
	//
	// Default value: 1 << 20 (1 MiB)
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`

	// ExceptionHandler is invoked whenever a Handler returns an error.
	// An error while serializing the response is not passed to it; the
	// connection is closed instead.
	// It may further mutate res; the connection writes whatever is in res
	// after it returns.
	//
	// Default value: DefaultExceptionHandler
	ExceptionHandler func(err error, req *Request, res *Response) `mapstructure:"-"`

	// ConfigFile is the path to a JSON/TOML/YAML/INI configuration file
	// parsed and merged into the Server's mapstructure-tagged fields
	// before Run. See LoadConfig.
	//
	// Default value: ""
	ConfigFile string `mapstructure:"-"`

	// Logger is the structured logger used for the server's own
	// diagnostics (accept errors, panics recovered by the connection loop,
	// and so on). Handlers are free to use it or their own.
	Logger Logger `mapstructure:"-"`

	tree *RouteTree
	root *Scope

	mu        sync.Mutex
	listeners []net.Listener
	closing   bool
}

// NewServer returns a Server with sane defaults and an empty, unbuilt
// RouteTree, listening plainly on each of addresses. Use ListenTLS to add
// a TLS-configured address.
func NewServer(addresses ...string) *Server {
	addrs := make([]Address, len(addresses))
	for i, a := range addresses {
		addrs[i] = Address{Addr: a}
	}
	s := &Server{
		Addresses:            addrs,
		MaxListenConnections: 0,
		ClientRequestTimeout: 5 * time.Second,
		IdleTimeout:          90 * time.Second,
		MaxHeaderBytes:       1 << 20,
		ExceptionHandler:     DefaultExceptionHandler,
		Logger:               NewLogger(),
		tree:                 NewRouteTree(),
	}
	s.root = &Scope{server: s, prefix: "", state: newState()}
	return s
}

// ListenTLS appends a TLS-configured listen address to s.Addresses.
func (s *Server) ListenTLS(addr string, cfg *tls.Config) *Server {
	s.Addresses = append(s.Addresses, Address{Addr: addr, TLSConfig: cfg})
	return s
}

// Listen appends a plain listen address to s.Addresses.
func (s *Server) Listen(addr string) *Server {
	s.Addresses = append(s.Addresses, Address{Addr: addr})
	return s
}

func (s *Server) readHeaderTimeout() time.Duration {
	if s.ReadHeaderTimeout > 0 {
		return s.ReadHeaderTimeout
	}
	return s.ClientRequestTimeout
}

func (s *Server) readBodyTimeout() time.Duration {
	if s.ReadBodyTimeout > 0 {
		return s.ReadBodyTimeout
	}
	return s.ClientRequestTimeout
}

func (s *Server) writeTimeout() time.Duration {
	if s.WriteTimeout > 0 {
		return s.WriteTimeout
	}
	return s.ClientRequestTimeout
}

// DefaultExceptionHandler writes err's mapped status and a minimal JSON
// error body to res, mirroring the teacher's DefaultErrorHandler. A status
// of 400 or above already set by the handler (such as the 405 of
// MethodNotAllowedHandler) is kept instead of the mapped one.
func DefaultExceptionHandler(err error, req *Request, res *Response) {
	if res.Status < 400 {
		res.Status = StatusForError(err)
	}
	_ = res.SetJSON(map[string]string{"error": err.Error()})
}

// Use appends middlewares to the server's root scope. They wrap routes
// registered on the root scope (s.GET and the like) after the call; routes
// registered earlier, and routes of scopes made with Server.Scope, do not
// get them.
func (s *Server) Use(mw ...Middleware) *Server {
	s.root.Use(mw...)
	return s
}

// UseState registers a state value on the server's root scope, visible to
// routes registered on it after the call. Scopes made with Server.Scope
// start with their own empty state and do not see it.
func (s *Server) UseState(v interface{}) *Server {
	s.root.UseState(v)
	return s
}

// GET registers a GET route on the server's root scope.
func (s *Server) GET(pattern string, h Handler, mw ...Middleware) error {
	return s.root.GET(pattern, h, mw...)
}

// POST registers a POST route on the server's root scope.
func (s *Server) POST(pattern string, h Handler, mw ...Middleware) error {
	return s.root.POST(pattern, h, mw...)
}

// PUT registers a PUT route on the server's root scope.
func (s *Server) PUT(pattern string, h Handler, mw ...Middleware) error {
	return s.root.PUT(pattern, h, mw...)
}

// PATCH registers a PATCH route on the server's root scope.
func (s *Server) PATCH(pattern string, h Handler, mw ...Middleware) error {
	return s.root.PATCH(pattern, h, mw...)
}

// DELETE registers a DELETE route on the server's root scope.
func (s *Server) DELETE(pattern string, h Handler, mw ...Middleware) error {
	return s.root.DELETE(pattern, h, mw...)
}

// HEAD registers a HEAD route on the server's root scope.
func (s *Server) HEAD(pattern string, h Handler, mw ...Middleware) error {
	return s.root.HEAD(pattern, h, mw...)
}

// OPTIONS registers an OPTIONS route on the server's root scope.
func (s *Server) OPTIONS(pattern string, h Handler, mw ...Middleware) error {
	return s.root.OPTIONS(pattern, h, mw...)
}

// Build compiles the route tree, surfacing any duplicate or ambiguous
// route registered along the way. Run calls Build if it hasn't been
// called already.
func (s *Server) Build() error {
	if s.ConfigFile != "" {
		if err := LoadConfig(s.ConfigFile, s); err != nil {
			return err
		}
	}
	return s.tree.Build()
}

// Run listens on every address in s.Addresses and serves connections
// until ctx is canceled or a listener returns a fatal error. It returns
// the first such error, or nil on a clean shutdown via ctx.
func (s *Server) Run(ctx context.Context) error {
	if !s.tree.built {
		if err := s.Build(); err != nil {
			return err
		}
	}

	var lc net.ListenConfig
	listeners := make([]net.Listener, 0, len(s.Addresses))
	for _, addr := range s.Addresses {
		ln, err := lc.Listen(ctx, "tcp", addr.Addr)
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return NewError(KindNetwork, "loom: listen failed", err)
		}
		if addr.TLSConfig != nil {
			ln = tls.NewListener(ln, addr.TLSConfig)
		}
		if s.MaxListenConnections > 0 {
			ln = newLimitListener(ln, s.MaxListenConnections)
		}
		listeners = append(listeners, ln)
	}

	s.mu.Lock()
	s.listeners = listeners
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ln := range listeners {
		ln := ln
		g.Go(func() error {
			return s.acceptLoop(gctx, ln)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closing {
			return nil
		}
		s.closing = true
		for _, l := range s.listeners {
			l.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() != nil {
		return nil
	} else if err != nil {
		return err
	}
	return nil
}

// Dispatch runs req through the compiled route tree and the matched
// route's middleware chain without a socket, producing a Response. It
// powers loomtest.ServeRequest and is also usable directly by any caller
// wanting to drive a handler in-process. Dispatch calls Build if the
// route tree hasn't been compiled yet.
func (s *Server) Dispatch(req *Request) (*Response, error) {
	if !s.tree.built {
		if err := s.Build(); err != nil {
			return nil, err
		}
	}

	res := NewResponse()

	route, params, ok := s.tree.Lookup(req.Method, req.Path)
	var h Handler
	switch {
	case ok && route != nil:
		req.PathInfo = PathInfo{Pattern: route.Pattern, Path: req.Path, Params: params}
		req.State = mergeState(route.State, nil)
		h = route.Handler
	case ok && route == nil:
		h = MethodNotAllowedHandler
		if req.State == nil {
			req.State = newState()
		}
	default:
		h = NotFoundHandler
		if req.State == nil {
			req.State = newState()
		}
	}

	if err := h(req, res); err != nil {
		s.ExceptionHandler(err, req, res)
	}

	return res, nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if isTemporary(err) {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return NewError(KindNetwork, "loom: accept failed", err)
		}
		go s.serveConn(ctx, c)
	}
}

func isTemporary(err error) bool {
	type temporary interface{ Temporary() bool }
	t, ok := err.(temporary)
	return ok && t.Temporary()
}

func (s *Server) serveConn(ctx context.Context, c net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("loom: panic recovered in connection loop", "panic", r)
		}
	}()
	conn := newConn(s, c)
	conn.serve(ctx)
}

// Shutdown closes every active listener and waits for ctx's deadline for
// in-flight connections to finish on their own, matching the teacher's
// Close/Shutdown split.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closing {
		s.closing = true
		for _, l := range s.listeners {
			l.Close()
		}
	}
	s.mu.Unlock()

	<-ctx.Done()
	return nil
}
