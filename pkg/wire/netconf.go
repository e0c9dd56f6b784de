// Package wire holds the socket.io payloads exchanged with the browser while
// a NETCONF session is being opened.
package wire

import (
	"encoding/json"
	"errors"
)

// SocketAuthPayload is the socket.io handshake auth payload.
type SocketAuthPayload struct {
	// Token is the bearer token of the logged in user; its session id
	// scopes the socket.
	Token string `json:"token"`
}

// Server -> browser events.
const (
	EventHostCheck  = "hostcheck"
	EventDeviceAuth = "device_auth"
	EventGetSchema  = "getschema"
)

// Browser -> server answer events.
const (
	EventHostCheckResult    = "hostcheck_result"
	EventDeviceAuthPassword = "device_auth_password"
	EventGetSchemaResult    = "getschema_result"
)

// DeviceInfo identifies the device a prompt is about. Credentials are never
// included.
type DeviceInfo struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
	Username string `json:"username"`
}

// HostCheckRequest is the server -> browser payload for "hostcheck".
type HostCheckRequest struct {
	ID       string `json:"id"`
	Hostname string `json:"hostname"`
	// State follows the libssh known-hosts states (0 not known, 2 changed, ...).
	State   int    `json:"state"`
	KeyType string `json:"keytype"`
	// Hexa is the colon separated MD5 fingerprint.
	Hexa   string      `json:"hexa"`
	Device *DeviceInfo `json:"device,omitempty"`
}

// HostCheckResult is the browser -> server answer to "hostcheck".
type HostCheckResult struct {
	ID     string `json:"id"`
	Result bool   `json:"result"`
}

// DeviceAuthRequest is the server -> browser payload for "device_auth".
type DeviceAuthRequest struct {
	ID     string      `json:"id"`
	Type   string      `json:"type"`
	Msg    string      `json:"msg"`
	Prompt string      `json:"prompt,omitempty"`
	Device *DeviceInfo `json:"device,omitempty"`
}

// DeviceAuthAnswer is the browser -> server answer to "device_auth". A nil
// Password means the field was missing.
type DeviceAuthAnswer struct {
	ID       string  `json:"id"`
	Password *string `json:"password"`
}

// SchemaRequest is the server -> browser payload for "getschema".
type SchemaRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Revision       string `json:"revision"`
	SubmodName     string `json:"submod_name"`
	SubmodRevision string `json:"submod_revision"`
}

// SchemaResult is the browser -> server answer to "getschema".
type SchemaResult struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// ErrMissingID is returned by Decode when the answer carries no id.
var ErrMissingID = errors.New("answer has no id")

// Answer is implemented by every browser -> server answer payload.
type Answer interface {
	AnswerID() string
}

func (a HostCheckResult) AnswerID() string  { return a.ID }
func (a DeviceAuthAnswer) AnswerID() string { return a.ID }
func (a SchemaResult) AnswerID() string     { return a.ID }
func (a Envelope) AnswerID() string         { return a.ID }

// Envelope is the part common to every answer; it is decoded first to route
// an answer before its event specific payload is checked.
type Envelope struct {
	ID string `json:"id"`
}

// Decode converts a loosely typed socket payload into an answer struct.
func Decode[T Answer](v any) (T, error) {
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	if out.AnswerID() == "" {
		return out, ErrMissingID
	}
	return out, nil
}
