// License: MIT Copyright: 2026, jxltk contributors

package jxl

import "fmt"

// Kind is the closed taxonomy of failures the facade can report. The
// underlying library organises errors as a class hierarchy; we flatten that
// into one error type carrying a Kind instead, see DESIGN.md.
type Kind int

const (
	// Io is an underlying read/seek failure.
	Io Kind = iota
	// NotJxl means the signature check failed.
	NotJxl
	// NotSeekable means a second pass was required but the source refused to seek.
	NotSeekable
	// CorruptedStream means the codec returned an error, an out-of-contract
	// event, or stalled (consumed zero bytes of a non-empty buffer).
	CorruptedStream
	// IndexOutOfRange means a frame/box/JPEG index is beyond a known-complete enumeration.
	IndexOutOfRange
	// BufferTooSmall means a caller-provided sink is smaller than the computed minimum.
	BufferTooSmall
	// BufferTooLarge means size/stride arithmetic overflowed.
	BufferTooLarge
	// Usage means a method was called in an invalid state.
	Usage
	// NoBrotli means decompression was requested but the backend lacks Brotli support.
	NoBrotli
	// InvalidConfig means merge-composer inputs violate a documented constraint.
	InvalidConfig
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "Io"
	case NotJxl:
		return "NotJxl"
	case NotSeekable:
		return "NotSeekable"
	case CorruptedStream:
		return "CorruptedStream"
	case IndexOutOfRange:
		return "IndexOutOfRange"
	case BufferTooSmall:
		return "BufferTooSmall"
	case BufferTooLarge:
		return "BufferTooLarge"
	case Usage:
		return "Usage"
	case NoBrotli:
		return "NoBrotli"
	case InvalidConfig:
		return "InvalidConfig"
	default:
		return "Unknown"
	}
}

// Error is the single error type used across the module. Use Kind(),
// KindOf or Is below to match it, rather than type-switching on a hierarchy
// of concrete types.
type Error struct {
	kind    Kind
	msg     string
	wrapped error
}

func newError(k Kind, msg string) *Error { return &Error{kind: k, msg: msg} }

func wrapError(k Kind, msg string, wrapped error) *Error {
	return &Error{kind: k, msg: msg, wrapped: wrapped}
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Kind reports which taxonomy member an error belongs to. Use KindOf for an
// arbitrary error that may not be one of ours.
func (e *Error) Kind() Kind { return e.kind }

// KindOf extracts the Kind from any error by unwrapping it to a *Error. For
// an error that is not (and does not wrap) a *Error it returns the zero
// Kind (Io) and false.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.kind, true
	}
	return 0, false
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func ioErr(msg string, wrapped error) error           { return wrapError(Io, msg, wrapped) }
func notJxlErr(msg string) error                       { return newError(NotJxl, msg) }
func notSeekableErr(msg string) error                   { return newError(NotSeekable, msg) }
func corruptedErr(msg string) error                     { return newError(CorruptedStream, msg) }
func corruptedErrw(msg string, wrapped error) error     { return wrapError(CorruptedStream, msg, wrapped) }
func indexOutOfRangeErr(msg string) error               { return newError(IndexOutOfRange, msg) }
func bufferTooSmallErr(msg string) error                { return newError(BufferTooSmall, msg) }
func bufferTooLargeErr(msg string) error                { return newError(BufferTooLarge, msg) }
func usageErr(msg string) error                         { return newError(Usage, msg) }
func noBrotliErr(msg string) error                       { return newError(NoBrotli, msg) }

// ErrCodecUnavailable is returned by the Decoder's Open functions when the
// module was built without the cgo libjxl backend: the stub session
// constructor (jxl/codec/libjxl_stub.go) returns codec.ErrUnavailable, which
// the Decoder translates into this error.
var ErrCodecUnavailable = newError(Usage, "jxl: built without a libjxl codec backend (cgo disabled)")
