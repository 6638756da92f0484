package errs

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ErrorWrapper attaches a message to an underlying error without hiding it
// from errors.Is / errors.As.
type ErrorWrapper struct {
	Err error
	Msg string
}

func NewErrorWrapper(err error, msg string) *ErrorWrapper {
	return &ErrorWrapper{Err: err, Msg: msg}
}

func (w *ErrorWrapper) Error() string {
	if w.Msg == "" {
		return w.Err.Error()
	}
	return w.Msg + ": " + w.Err.Error()
}

func (w *ErrorWrapper) Unwrap() error { return w.Err }

// New builds a plain error from msg and key/value pairs, with a stack.
func New(msg string, kv ...any) error {
	return pkgerrors.New(toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			sb.WriteString("MISSING")
		}
	}
	return sb.String()
}

// WrapErr tags cause with e's code. errors.Is matches both e and cause.
func (e *CodeError) WrapErr(cause error, msg string, kv ...any) error {
	if cause == nil {
		return nil
	}
	ce := e.clone()
	if msg != "" || len(kv) > 0 {
		ce.Detail = toString(msg, kv)
	}
	return pkgerrors.WithStack(&causeError{code: ce, cause: cause})
}

type causeError struct {
	code  *CodeError
	cause error
}

func (c *causeError) Error() string   { return c.code.Error() + ": " + c.cause.Error() }
func (c *causeError) Unwrap() []error { return []error{c.code, c.cause} }
