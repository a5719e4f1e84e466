package bsdiff

import "github.com/pkg/errors"

// ErrorKind classifies why a Compare or Apply call failed, per spec.md §7.
type ErrorKind int

const (
	// BadMagic means the patch header does not start with "BSDIFF40".
	BadMagic ErrorKind = iota
	// MalformedHeader means a header length field is negative or exceeds
	// the available patch bytes.
	MalformedHeader
	// DecompressError means a bzip2 sub-stream was rejected by the
	// decompressor.
	DecompressError
	// TruncatedControl means the control stream ended before the output
	// was fully produced.
	TruncatedControl
	// TruncatedDiff means the diff stream ended before an instruction's
	// add_len bytes were available.
	TruncatedDiff
	// TruncatedExtra means the extra stream ended before an
	// instruction's extra_len bytes were available.
	TruncatedExtra
	// TrailingData means a sub-stream had unread bytes once the
	// instruction list was exhausted.
	TrailingData
	// SourceOutOfRange means an instruction would read outside the
	// source buffer or leave the source cursor negative.
	SourceOutOfRange
	// PatchOverflow means cumulative output would exceed the header's
	// declared target length.
	PatchOverflow
	// IOError wraps a failure from the caller's underlying reader or
	// writer.
	IOError
)

func (k ErrorKind) String() string {
	switch k {
	case BadMagic:
		return "BadMagic"
	case MalformedHeader:
		return "MalformedHeader"
	case DecompressError:
		return "DecompressError"
	case TruncatedControl:
		return "TruncatedControl"
	case TruncatedDiff:
		return "TruncatedDiff"
	case TruncatedExtra:
		return "TruncatedExtra"
	case TrailingData:
		return "TrailingData"
	case SourceOutOfRange:
		return "SourceOutOfRange"
	case PatchOverflow:
		return "PatchOverflow"
	case IOError:
		return "IOError"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by every exported Compare/Apply entry
// point in this package. Kind identifies the failure category from spec.md
// §7; Err, when non-nil, is the underlying cause (an I/O failure, a bzip2
// decode error, ...) and can be reached with errors.Unwrap/errors.As.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// wrapIO turns an underlying reader/writer failure into an *Error of kind
// IOError, attaching a stack trace via github.com/pkg/errors so the caller
// can tell where in Compare/Apply the failure originated rather than just
// seeing "short write".
func wrapIO(err error, msg string) error {
	return wrapKind(IOError, err, msg)
}

// wrapKind is wrapIO generalized to an arbitrary ErrorKind, for failures
// that aren't plain I/O (a rejected bzip2 stream is a DecompressError, not
// an IOError, even though it surfaces through a Read call).
func wrapKind(kind ErrorKind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: errors.Wrap(err, msg)}
}
