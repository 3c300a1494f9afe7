package errors

import (
	"context"
	"encoding/json"
	stderrs "errors"
	"io"
	"io/fs"
	"net"
	"syscall"
)

// Classify maps any error into the closed ErrorCode set
// Our own *Error wins unless it is Unknown; foreign errors are matched by shape
// Anything left over is Unknown and callers should log TypeName(err) next to it
func Classify(err error) ErrorCode {
	if err == nil {
		return ErrorCodeUnknown
	}

	// a stop request beats whatever layer it surfaced through
	if stderrs.Is(err, context.Canceled) {
		return ErrorCodeCanceled
	}

	if e, ok := As(err); ok && e.code != ErrorCodeUnknown {
		return e.code
	}

	if stderrs.Is(err, context.DeadlineExceeded) {
		return ErrorCodeTransientNetwork
	}

	var ne net.Error
	if stderrs.As(err, &ne) {
		return ErrorCodeTransientNetwork
	}
	if stderrs.Is(err, syscall.ECONNRESET) ||
		stderrs.Is(err, syscall.ECONNREFUSED) ||
		stderrs.Is(err, syscall.EPIPE) ||
		stderrs.Is(err, io.ErrUnexpectedEOF) {
		return ErrorCodeTransientNetwork
	}

	if stderrs.Is(err, fs.ErrNotExist) {
		return ErrorCodeNotFound
	}
	var pe *fs.PathError
	if stderrs.As(err, &pe) {
		return ErrorCodeIO
	}

	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	if stderrs.As(err, &se) || stderrs.As(err, &te) {
		return ErrorCodeParse
	}
	var ue *json.UnsupportedValueError
	if stderrs.As(err, &ue) {
		return ErrorCodeEncoding
	}

	return ErrorCodeUnknown
}

// Classified wraps err into an *Error carrying its classified code
// If err already carries that code it is returned unchanged
func Classified(err error, msg string) error {
	if err == nil {
		return nil
	}
	code := Classify(err)
	if e, ok := As(err); ok && e.code == code {
		return err
	}
	return Wrap(err, code, msg)
}

// CodeName is the snake_case class of err, used as a log field and metric label
func CodeName(err error) string {
	if err == nil {
		return ""
	}
	return Classify(err).String()
}
