package loom

// Extractor pulls one typed value out of an incoming Request. It is the
// generics-based stand-in for the spec's reflection-free variadic handler
// argument list: Go has no equivalent language feature, so instead each
// argument position is a small, independently testable value satisfying
// this interface, and H0..H3 below compose them into a plain Handler.
type Extractor[T any] interface {
	FromRequest(req *Request) (T, error)
}

// ExtractorFunc adapts a plain function into an Extractor.
type ExtractorFunc[T any] func(req *Request) (T, error)

// FromRequest implements Extractor.
func (f ExtractorFunc[T]) FromRequest(req *Request) (T, error) { return f(req) }

// H0 adapts a handler with no typed arguments into a Handler. It exists
// for symmetry with H1..H3, letting call sites register handlers
// uniformly regardless of argument count.
func H0(f func(req *Request, res *Response) error) Handler {
	return Handler(f)
}

// H1 adapts a function taking one extracted value into a Handler.
func H1[A any](a Extractor[A], f func(req *Request, res *Response, av A) error) Handler {
	return func(req *Request, res *Response) error {
		av, err := a.FromRequest(req)
		if err != nil {
			return err
		}
		return f(req, res, av)
	}
}

// H2 adapts a function taking two extracted values into a Handler.
func H2[A, B any](a Extractor[A], b Extractor[B], f func(req *Request, res *Response, av A, bv B) error) Handler {
	return func(req *Request, res *Response) error {
		av, err := a.FromRequest(req)
		if err != nil {
			return err
		}
		bv, err := b.FromRequest(req)
		if err != nil {
			return err
		}
		return f(req, res, av, bv)
	}
}

// H3 adapts a function taking three extracted values into a Handler.
func H3[A, B, C any](a Extractor[A], b Extractor[B], c Extractor[C], f func(req *Request, res *Response, av A, bv B, cv C) error) Handler {
	return func(req *Request, res *Response) error {
		av, err := a.FromRequest(req)
		if err != nil {
			return err
		}
		bv, err := b.FromRequest(req)
		if err != nil {
			return err
		}
		cv, err := c.FromRequest(req)
		if err != nil {
			return err
		}
		return f(req, res, av, bv, cv)
	}
}
