package netconf

import (
	"errors"
	"fmt"
	"strings"
)

// RPCError is one <rpc-error> entry of a reply.
type RPCError struct {
	Type     string `xml:"error-type"`
	Tag      string `xml:"error-tag"`
	Severity string `xml:"error-severity"`
	AppTag   string `xml:"error-app-tag"`
	Path     string `xml:"error-path"`
	Message  string `xml:"error-message"`
}

func (e RPCError) String() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = e.Tag
	}
	if e.Path != "" {
		msg += " (" + strings.TrimSpace(e.Path) + ")"
	}
	return msg
}

// ReplyError is returned when the device answered an RPC with one or more
// errors. The session stays usable.
type ReplyError struct {
	Errors []RPCError
}

// Error concatenates every entry, each followed by "; ".
func (e *ReplyError) Error() string {
	var b strings.Builder
	for _, entry := range e.Errors {
		b.WriteString(entry.String())
		b.WriteString("; ")
	}
	return b.String()
}

// ConnectionError is returned when the transport is gone. The session must
// be discarded.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection lost: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ErrClosed is wrapped by ConnectionError for calls on a closed session.
var ErrClosed = errors.New("session closed")

// IsConnectionError reports whether err is, or wraps, a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
