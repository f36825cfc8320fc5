package media

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. A Kind is itself an error so it can be used as
// an errors.Is target: errors.Is(err, media.ErrMux).
type Kind string

// Error kinds surfaced at the session boundary.
const (
	KindOpen              Kind = "OpenError"
	KindProbe             Kind = "ProbeError"
	KindNoStream          Kind = "NoStreamError"
	KindUnsupportedFormat Kind = "UnsupportedFormatError"
	KindMux               Kind = "MuxError"
	KindCodec             Kind = "CodecError"
	KindPrecondition      Kind = "PreconditionError"
)

// Error implements error.
func (k Kind) Error() string {
	return string(k)
}

// Sentinels for errors.Is.
var (
	// ErrOpen indicates the input bytes match no known container syntax.
	ErrOpen error = KindOpen
	// ErrProbe indicates stream information could not be determined after open.
	ErrProbe error = KindProbe
	// ErrNoStream indicates no matching audio stream exists.
	ErrNoStream error = KindNoStream
	// ErrUnsupportedFormat indicates an unknown target container or codec name.
	ErrUnsupportedFormat error = KindUnsupportedFormat
	// ErrMux indicates a header, packet or trailer write failure.
	ErrMux error = KindMux
	// ErrCodec indicates a decoder/encoder open or send/receive failure.
	ErrCodec error = KindCodec
	// ErrPrecondition indicates a caller-supplied input violated a precondition.
	ErrPrecondition error = KindPrecondition
)

// Error is a classified failure carrying the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Wrap classifies err as kind. An error that already carries a Kind keeps
// its original classification. Wrap returns nil for a nil err.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind carried by err, or "" when err is unclassified.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}

// KindName returns the kind name for structured egress: "" for nil,
// "Error" for an unclassified failure.
func KindName(err error) string {
	if err == nil {
		return ""
	}
	if k := KindOf(err); k != "" {
		return string(k)
	}
	return "Error"
}
