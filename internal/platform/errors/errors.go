// Package errors provides a structured error type with wrapping and metadata
package errors

// Always import the project errors package as perr (platform/errors)

import (
	stderrs "errors"
	"fmt"
)

// ErrorCode is the closed set of failure classes the pipeline reasons about
// Values are stable because they end up in logs and metric labels; add sparingly
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for anything that did not match an explicit class
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodeTransientService is for origin outages, 5xx and rate limiting
	ErrorCodeTransientService

	// ErrorCodeTransientNetwork is for connection level failures and timeouts
	ErrorCodeTransientNetwork

	// ErrorCodeEncoding is for values that cannot be serialized
	ErrorCodeEncoding

	// ErrorCodeParse is for malformed input lines or payloads
	ErrorCodeParse

	// ErrorCodeIO is for filesystem failures
	ErrorCodeIO

	// ErrorCodeInvalidArgument is for bad parameters and configuration
	ErrorCodeInvalidArgument

	// ErrorCodeCanceled is for graceful stop requests
	ErrorCodeCanceled

	// ErrorCodeNotFound is for missing files or resources
	ErrorCodeNotFound
)

var codeNames = [...]string{
	ErrorCodeUnknown:          "unknown",
	ErrorCodeTransientService: "transient_service",
	ErrorCodeTransientNetwork: "transient_network",
	ErrorCodeEncoding:         "encoding",
	ErrorCodeParse:            "parse",
	ErrorCodeIO:               "io",
	ErrorCodeInvalidArgument:  "invalid_argument",
	ErrorCodeCanceled:         "canceled",
	ErrorCodeNotFound:         "not_found",
}

// String returns the snake case name used in logs and metric labels
func (c ErrorCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code_%d", uint16(c))
}

// ErrCanceled is returned when work stops because the caller asked it to
var ErrCanceled = New(ErrorCodeCanceled, "canceled")

// Error is the structured error type with wrapping and metadata
// msg is human/developer facing; code is machine facing
// field is optional (offending key or identifier); op is optional operation tag
// orig is the wrapped cause
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
	op    string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// TypeName returns the Go type of the deepest cause, e.g. "*net.OpError"
func TypeName(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T", Root(err))
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is forwards to the standard library
func Is(err, target error) bool { return stderrs.Is(err, target) }

// Mutators (copy-on-write)

// WithField attaches a field to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp attaches an operation label to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf wraps only when err != nil (helper for 1-liners)
func WrapIf(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, msg)
}

// Sugar

// TransientServicef returns an origin side transient error
func TransientServicef(format string, a ...any) error {
	return Newf(ErrorCodeTransientService, format, a...)
}

// TransientNetworkf returns a connection level transient error
func TransientNetworkf(format string, a ...any) error {
	return Newf(ErrorCodeTransientNetwork, format, a...)
}

// Encodingf returns an encoding error
func Encodingf(format string, a ...any) error { return Newf(ErrorCodeEncoding, format, a...) }

// Parsef returns a parse error
func Parsef(format string, a ...any) error { return Newf(ErrorCodeParse, format, a...) }

// IOf returns a filesystem error
func IOf(format string, a ...any) error { return Newf(ErrorCodeIO, format, a...) }

// InvalidArgf returns an invalid argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// NotFoundf returns a not found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// Internalf returns an unclassified error
func Internalf(format string, a ...any) error { return Newf(ErrorCodeUnknown, format, a...) }

// Retry semantics

// Retryable reports whether the caller should sleep and try again
// All three origin classes are retried; local failures are not
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err) {
	case ErrorCodeTransientService, ErrorCodeTransientNetwork, ErrorCodeUnknown:
		return true
	default:
		return false
	}
}

// IsCanceled reports whether err is a stop request rather than a failure
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err) == ErrorCodeCanceled
}
