package session

import (
	"fmt"
	"net/http"
)

// Status codes reported to the browser. StatusProtocol is returned when the
// device rejects a <get>.
const (
	StatusRequest    = http.StatusInternalServerError
	StatusNotFound   = http.StatusNotFound
	StatusGone       = http.StatusGone
	StatusProtocol   = http.StatusTeapot
	StatusCommit     = http.StatusInternalServerError
	StatusConnection = http.StatusInternalServerError
)

// Error is a failure reported to the caller with a status code.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code int, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

func errorf(code int, format string, args ...any) *Error {
	return newError(code, fmt.Errorf(format, args...))
}

// Messages of the errors the browser acts on.
const (
	msgMissingKey      = "Missing session key."
	msgInvalidKey      = "Invalid session key."
	msgSessionNotFound = "Session not found"
	msgDeviceNotFound  = "Device not found."
)
