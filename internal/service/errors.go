package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	// KindInput means a required identifier or field was missing; no request was sent.
	KindInput ErrorKind = "input"

	// KindTransport means the request never produced a response.
	KindTransport ErrorKind = "transport"

	// KindStatus means the backend answered with a non-success status.
	KindStatus ErrorKind = "status"

	// KindDecode means the response body had an unexpected shape.
	KindDecode ErrorKind = "decode"
)

// Error is returned by every gateway operation that fails.
type Error struct {
	Kind    ErrorKind
	Op      string // operation name, e.g. "list tasks"
	Status  int    // HTTP status for KindStatus
	Message string // backend error message, if any
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		msg := e.Message
		if msg == "" {
			msg = http.StatusText(e.Status)
		}
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, msg)
	case KindInput:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": " + string(e.Kind) + " error"
}

func (e *Error) Unwrap() error { return e.Err }

// InputError builds a KindInput error.
func InputError(op, msg string) *Error {
	return &Error{Kind: KindInput, Op: op, Message: msg}
}

// StatusError builds a KindStatus error.
func StatusError(op string, status int, msg string) *Error {
	return &Error{Kind: KindStatus, Op: op, Status: status, Message: msg}
}

// Require returns an input error naming the first empty field.
// Fields are given as name, value pairs.
func Require(op string, fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] == "" {
			return InputError(op, "missing "+fields[i])
		}
	}
	return nil
}

func kindOf(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	e, ok := kindOf(err)
	return ok && e.Kind == KindStatus && e.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err is an authorization failure (401 or 403).
func IsUnauthorized(err error) bool {
	e, ok := kindOf(err)
	return ok && e.Kind == KindStatus && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// IsUserError reports whether err was caused by the caller: bad input or a 4xx
// other than authorization.
func IsUserError(err error) bool {
	e, ok := kindOf(err)
	if !ok {
		return false
	}
	if e.Kind == KindInput {
		return true
	}
	return e.Kind == KindStatus && e.Status >= 400 && e.Status < 500 && !IsUnauthorized(err)
}
