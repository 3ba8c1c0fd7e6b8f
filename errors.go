package loom

import (
	"errors"
	"io"
	"net/http"
)

// Kind identifies the abstract category of a failure raised anywhere in the
// core. It is the thing the connection state machine actually switches on
// when it has to turn an unhandled error into a status code.
type Kind int

// Error kinds, matching the taxonomy of the core error handling design.
const (
	// KindParseError means a malformed HTTP head, URL, or JSON payload.
	KindParseError Kind = iota + 1

	// KindBadRequest means syntactically valid input that was
	// semantically rejected (missing field, wrong Content-Type, ...).
	KindBadRequest

	// KindNotFound means a route lookup miss.
	KindNotFound

	// KindConflict means a duplicate route was registered.
	KindConflict

	// KindEOF means the expected end of a stream; reported as io.EOF.
	KindEOF

	// KindTimedOut means a per-phase deadline elapsed.
	KindTimedOut

	// KindNetwork means a transport failure (reset, abort, TLS error).
	KindNetwork

	// KindDecoderError means an inflate/gzip stream was invalid.
	KindDecoderError

	// KindRangeNotSatisfiable means a file Range fell outside the file.
	KindRangeNotSatisfiable

	// KindInternal means required state was missing, or a handler
	// produced an unrecoverable error.
	KindInternal
)

// String returns a short lowercase name for k, used in log output.
func (k Kind) String() string {
	switch k {
	case KindParseError:
		return "parse_error"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindEOF:
		return "eof"
	case KindTimedOut:
		return "timed_out"
	case KindNetwork:
		return "network"
	case KindDecoderError:
		return "decoder_error"
	case KindRangeNotSatisfiable:
		return "range_not_satisfiable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the single error type that crosses subsystem boundaries inside
// the core. It always carries a Kind so the connection state machine can
// decide what to do with it without type-switching on arbitrary errors.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError returns a new *Error of the given kind wrapping err. If msg is
// non-empty it is used as the Error() text instead of err's text.
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind carried by err, if any. A plain io.EOF is reported
// as KindEOF even though it was never wrapped in an *Error, since io.EOF is
// the idiomatic Go spelling of the eof error kind.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return 0, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	if errors.Is(err, io.EOF) {
		return KindEOF, true
	}
	return 0, false
}

// StatusForKind returns the HTTP status code the connection state machine
// uses to report an unhandled error of the given kind. KindTimedOut has no
// entry of its own and maps to 500 like any unlisted kind; nothing here
// closes the connection for it.
func StatusForKind(k Kind) int {
	switch k {
	case KindParseError, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	case KindInternal:
		return http.StatusInternalServerError
	case KindNetwork, KindDecoderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// StatusForError is a convenience wrapper combining KindOf and
// StatusForKind; it returns 500 for errors carrying no recognized Kind.
func StatusForError(err error) int {
	k, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	return StatusForKind(k)
}

// ErrBodyTooLarge is returned by ReadAllLimited when a body exceeds its
// caller-supplied maximum size.
var ErrBodyTooLarge = NewError(KindBadRequest, "loom: body exceeds maximum size", nil)

// ErrDuplicateRoute is returned by RouteTree.Build when two routes share a
// (method, pattern) pair.
var ErrDuplicateRoute = NewError(KindConflict, "loom: duplicate route", nil)

// ErrAmbiguousRoute is returned by RouteTree.Build when two patterns could
// match the same concrete path with no deterministic winner.
var ErrAmbiguousRoute = NewError(KindConflict, "loom: ambiguous route", nil)
